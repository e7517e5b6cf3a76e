package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manan-gakkhar/Doc-Plus/internal/domain/records"
	"github.com/manan-gakkhar/Doc-Plus/internal/platform/sessionstore"
)

type recordingObserver struct {
	mu          sync.Mutex
	transitions []string
}

func (o *recordingObserver) ObserveTransition(from, to string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, from+"->"+to)
}

// failingStore wraps a store and fails every Save.
type failingStore struct {
	sessionstore.Store
}

func (failingStore) Save(context.Context, string, []byte, time.Duration) error {
	return errors.New("store unavailable")
}

func newTestService(t *testing.T) (*Service, *fakeFetcher, *sessionstore.MemoryStore, *recordingObserver) {
	t.Helper()
	f := newFakeFetcher()
	store := sessionstore.NewMemoryStore()
	obs := &recordingObserver{}
	svc := NewService(NewLoader(f, zerolog.Nop()), store, zerolog.Nop(), Options{
		SessionTTL: time.Hour,
		CacheTTL:   24 * time.Hour,
		Location:   time.UTC,
		Now:        func() time.Time { return jan10 },
		Observer:   obs,
	})
	return svc, f, store, obs
}

func TestService_ViewFetchesOnFirstAccess(t *testing.T) {
	svc, f, store, obs := newTestService(t)
	ctx := context.Background()

	view, err := svc.View(ctx, "uid-1")
	require.NoError(t, err)

	assert.Equal(t, StateReady, view.State)
	assert.Equal(t, SourceFetch, view.Source)
	assert.Equal(t, "Asha Rao", view.Patient.Name)
	assert.Equal(t, "AR", view.Initials())
	assert.Equal(t, 3, view.TotalVisits)
	require.Len(t, view.Ongoing, 1)
	assert.Equal(t, 6, view.Ongoing[0].RemainingDays)
	assert.Equal(t, "Ray (Cardiology)", view.Visits[0].Doctor)
	assert.Equal(t, jan10, view.FetchedAt)
	assert.Equal(t, []string{"uninitialized->hydrating", "hydrating->ready"}, obs.transitions)

	_, err = store.Load(ctx, cacheKey("uid-1"))
	assert.NoError(t, err, "a complete fetch should be cached")

	// Second access reuses the live session.
	_, err = svc.View(ctx, "uid-1")
	require.NoError(t, err)
	p, i, d := f.calls()
	assert.Equal(t, [3]int{1, 1, 1}, [3]int{p, i, d})
}

func TestService_NewSessionFetchesFresh(t *testing.T) {
	svc, f, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.View(ctx, "uid-1")
	require.NoError(t, err)
	require.NoError(t, svc.EndSession(ctx, "uid-1"))

	// A doctor records a visit between the two sessions.
	f.mu.Lock()
	f.interactions = append(f.interactions, records.Interaction{
		ID: "d", PatientID: "P1", DoctorID: 7, MeetingDate: records.Timestamp{Time: jan10}, Hospital: "City",
	})
	f.mu.Unlock()

	view, err := svc.View(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, SourceFetch, view.Source)
	assert.Equal(t, StateReady, view.State)
	assert.Equal(t, 4, view.TotalVisits)

	p, i, d := f.calls()
	assert.Equal(t, [3]int{2, 2, 2}, [3]int{p, i, d})
}

func TestService_NewSessionFallsBackToCache(t *testing.T) {
	svc, f, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.View(ctx, "uid-1")
	require.NoError(t, err)
	require.NoError(t, svc.EndSession(ctx, "uid-1"))

	f.mu.Lock()
	f.patientErr = errors.New("records api down")
	f.doctorsErr = errors.New("records api down")
	f.mu.Unlock()

	view, err := svc.View(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, view.Source)
	assert.Equal(t, StateReady, view.State)
	assert.Equal(t, "Asha Rao", view.Patient.Name)
	assert.Equal(t, 3, view.TotalVisits)
	assert.Equal(t, "Ray (Cardiology)", view.Visits[0].Doctor)
	assert.Empty(t, view.Errors)

	p, _, _ := f.calls()
	assert.Equal(t, 2, p, "the new session still tries a fresh fetch")
}

func TestService_NewSessionWithoutCacheShowsErrors(t *testing.T) {
	svc, f, _, _ := newTestService(t)
	f.patientErr = errors.New("records api down")

	view, err := svc.View(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Nil(t, view.Patient)
	assert.Equal(t, 0, view.TotalVisits)
	assert.NotEmpty(t, view.ErrorFor(SourcePatient))
}

func TestService_PartialFetchIsNotCached(t *testing.T) {
	svc, f, store, _ := newTestService(t)
	f.doctorsErr = errors.New("boom")
	ctx := context.Background()

	view, err := svc.View(ctx, "uid-1")
	require.NoError(t, err)
	assert.NotEmpty(t, view.ErrorFor(SourceDoctors))
	assert.Equal(t, "Unknown", view.Visits[0].Doctor)
	assert.Equal(t, 3, view.TotalVisits)

	_, err = store.Load(ctx, cacheKey("uid-1"))
	assert.ErrorIs(t, err, sessionstore.ErrNotFound)
}

func TestService_ToggleVisit(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	view, err := svc.ToggleVisit(ctx, "uid-1", "b")
	require.NoError(t, err)
	expanded := map[string]bool{}
	for _, r := range view.Visits {
		expanded[r.ID] = r.Expanded
	}
	assert.Equal(t, map[string]bool{"a": false, "b": true, "c": false}, expanded)

	view, err = svc.ToggleVisit(ctx, "uid-1", "b")
	require.NoError(t, err)
	for _, r := range view.Visits {
		assert.False(t, r.Expanded, r.ID)
	}

	_, err = svc.ToggleVisit(ctx, "uid-1", "nope")
	assert.ErrorIs(t, err, ErrUnknownInteraction)
}

func TestService_FilterPersistsAcrossRequests(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetFilter(ctx, "uid-1", FilterDoctor, "7")
	require.NoError(t, err)

	view, err := svc.View(ctx, "uid-1")
	require.NoError(t, err)
	assert.Len(t, view.Visits, 2)
	assert.Equal(t, 3, view.TotalVisits)
	assert.Equal(t, Filter{FilterDoctor: "7"}, view.Filter)

	_, err = svc.SetFilter(ctx, "uid-1", "colour", "red")
	assert.True(t, IsValidationError(err))

	view, err = svc.ClearFilters(ctx, "uid-1")
	require.NoError(t, err)
	assert.Len(t, view.Visits, 3)
}

func TestService_RefreshResetsExpandedKeepsFilter(t *testing.T) {
	svc, f, _, obs := newTestService(t)
	ctx := context.Background()

	_, err := svc.ToggleVisit(ctx, "uid-1", "a")
	require.NoError(t, err)
	_, err = svc.SetFilter(ctx, "uid-1", FilterHospital, "city hospital")
	require.NoError(t, err)

	view, err := svc.Refresh(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, StateReady, view.State)
	assert.Len(t, view.Visits, 2)
	for _, r := range view.Visits {
		assert.False(t, r.Expanded)
	}
	p, _, _ := f.calls()
	assert.Equal(t, 2, p)
	assert.Contains(t, obs.transitions, "ready->hydrating")
}

func TestService_RefreshKeepsProfileAndVisitsWhenPatientFails(t *testing.T) {
	svc, f, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ToggleVisit(ctx, "uid-1", "a")
	require.NoError(t, err)

	f.mu.Lock()
	f.patientErr = errors.New("patient service down")
	f.mu.Unlock()

	view, err := svc.Refresh(ctx, "uid-1")
	require.NoError(t, err)
	require.NotNil(t, view.Patient)
	assert.Equal(t, "Asha Rao", view.Patient.Name)
	assert.Equal(t, 3, view.TotalVisits)
	assert.True(t, view.Visits[0].Expanded)
	assert.NotEmpty(t, view.ErrorFor(SourcePatient))
}

func TestService_RefreshOfNewSessionFetchesOnce(t *testing.T) {
	svc, f, _, _ := newTestService(t)

	_, err := svc.Refresh(context.Background(), "uid-1")
	require.NoError(t, err)
	p, _, _ := f.calls()
	assert.Equal(t, 1, p)
}

func TestService_StoreFailureIsNotFatal(t *testing.T) {
	f := newFakeFetcher()
	svc := NewService(NewLoader(f, zerolog.Nop()), failingStore{sessionstore.NewMemoryStore()}, zerolog.Nop(), Options{
		Now: func() time.Time { return jan10 },
	})

	view, err := svc.View(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, 3, view.TotalVisits)
}

func TestService_MissingUser(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.View(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingUser)
	assert.ErrorIs(t, svc.EndSession(context.Background(), ""), ErrMissingUser)
}

func TestService_UsersAreIsolated(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.ToggleVisit(ctx, "uid-1", "a")
	require.NoError(t, err)

	view, err := svc.View(ctx, "uid-2")
	require.NoError(t, err)
	assert.False(t, view.Visits[0].Expanded)
}

func TestService_ConcurrentToggles(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.View(ctx, "uid-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for n := 0; n < 10; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.ToggleVisit(ctx, "uid-1", "a")
		}()
	}
	wg.Wait()

	view, err := svc.View(ctx, "uid-1")
	require.NoError(t, err)
	// An even number of toggles leaves the visit collapsed.
	assert.False(t, view.Visits[0].Expanded)
	assert.Equal(t, 0, svc.locks.len())
}
