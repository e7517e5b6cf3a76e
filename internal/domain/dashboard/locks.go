package dashboard

import "sync"

// userLocks serializes work per user id. Entries are dropped once nobody
// holds or waits on them.
type userLocks struct {
	mu sync.Mutex
	m  map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{m: make(map[string]*userLock)}
}

// lock blocks until uid is free and returns the matching unlock.
func (l *userLocks) lock(uid string) func() {
	l.mu.Lock()
	ul, ok := l.m[uid]
	if !ok {
		ul = &userLock{}
		l.m[uid] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.m, uid)
		}
		l.mu.Unlock()
	}
}

func (l *userLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
