package signup

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DevPhoneCode is the confirmation code DevProvider accepts for every phone.
const DevPhoneCode = "123456"

// DevProvider is an in-memory identity provider for development mode. The ID
// token it hands out is the uid itself, which DevAuthMiddleware accepts from
// the session cookie.
type DevProvider struct {
	mu       sync.Mutex
	byEmail  map[string]*User
	byPhone  map[string]*User
	byUID    map[string]*User
	sessions map[string]string
}

func NewDevProvider() *DevProvider {
	return &DevProvider{
		byEmail:  make(map[string]*User),
		byPhone:  make(map[string]*User),
		byUID:    make(map[string]*User),
		sessions: make(map[string]string),
	}
}

func (p *DevProvider) SignUpWithPassword(_ context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, &ProviderError{Code: CodeInvalidEmail}
	}
	if password == "" {
		return nil, &ProviderError{Code: CodeMissingPassword}
	}
	if len(password) < 6 {
		return nil, &ProviderError{Code: CodeWeakPassword, Detail: "Password should be at least 6 characters"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.byEmail[email]; exists {
		return nil, &ProviderError{Code: CodeEmailInUse}
	}
	u := p.newUserLocked()
	u.Email = email
	p.byEmail[email] = u
	return copyUser(u), nil
}

// SignInWithIDP treats the credential as the federated account's subject.
func (p *DevProvider) SignInWithIDP(_ context.Context, providerID, idToken, _ string) (*User, error) {
	if idToken == "" {
		return nil, &ProviderError{Code: CodeInvalidIDPToken}
	}
	key := providerID + ":" + idToken

	p.mu.Lock()
	defer p.mu.Unlock()
	if u, ok := p.byEmail[key]; ok {
		return copyUser(u), nil
	}
	u := p.newUserLocked()
	p.byEmail[key] = u
	return copyUser(u), nil
}

func (p *DevProvider) SendPhoneCode(_ context.Context, phoneNumber, _ string) (string, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if !strings.HasPrefix(phoneNumber, "+") || len(phoneNumber) < 8 {
		return "", &ProviderError{Code: CodeInvalidPhone}
	}
	session := uuid.NewString()

	p.mu.Lock()
	p.sessions[session] = phoneNumber
	p.mu.Unlock()
	return session, nil
}

func (p *DevProvider) SignInWithPhone(_ context.Context, sessionInfo, code string) (*User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	phone, ok := p.sessions[sessionInfo]
	if !ok {
		return nil, &ProviderError{Code: CodeSessionExpired}
	}
	if code != DevPhoneCode {
		return nil, &ProviderError{Code: CodeInvalidCode}
	}
	delete(p.sessions, sessionInfo)

	if u, ok := p.byPhone[phone]; ok {
		return copyUser(u), nil
	}
	u := p.newUserLocked()
	u.PhoneNumber = phone
	p.byPhone[phone] = u
	return copyUser(u), nil
}

func (p *DevProvider) UpdateProfile(_ context.Context, idToken, displayName string) (*User, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	u, ok := p.byUID[idToken]
	if !ok {
		return nil, &ProviderError{Code: CodeInternal, Detail: "INVALID_ID_TOKEN"}
	}
	u.DisplayName = displayName
	return copyUser(u), nil
}

func (p *DevProvider) newUserLocked() *User {
	uid := uuid.NewString()
	u := &User{UID: uid, IDToken: uid}
	p.byUID[uid] = u
	return u
}

func copyUser(u *User) *User {
	c := *u
	return &c
}
