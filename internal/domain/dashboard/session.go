package dashboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/manan-gakkhar/Doc-Plus/internal/domain/records"
)

// State is the hydration state of a dashboard session.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateHydrating     State = "hydrating"
	StateReady         State = "ready"
)

var ErrInvalidTransition = errors.New("invalid session state transition")

// allowed lists the legal transitions. ready -> hydrating is a refresh.
var allowed = map[State][]State{
	StateUninitialized: {StateHydrating},
	StateHydrating:     {StateReady},
	StateReady:         {StateHydrating},
}

// Source records where the session's data came from.
type Source string

const (
	SourceNone  Source = ""
	SourceFetch Source = "fetch"
	SourceCache Source = "cache"
)

// Session is the per-user dashboard state kept between requests.
type Session struct {
	ID           string                `json:"id"`
	UserID       string                `json:"user_id"`
	State        State                 `json:"state"`
	Source       Source                `json:"source"`
	Patient      *records.Patient      `json:"patient,omitempty"`
	Interactions []records.Interaction `json:"interactions"`
	Doctors      []records.Doctor      `json:"doctors"`
	Visits       VisitState            `json:"visits"`
	Errors       map[string]string     `json:"errors,omitempty"`
	StartedAt    time.Time             `json:"started_at"`
	FetchedAt    time.Time             `json:"fetched_at"`
}

func NewSession(userID string, now time.Time) *Session {
	return &Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		State:        StateUninitialized,
		Interactions: []records.Interaction{},
		Doctors:      []records.Doctor{},
		Visits:       NewVisitState(),
		StartedAt:    now,
	}
}

// Transition moves the session to next, or returns ErrInvalidTransition.
func (s *Session) Transition(next State) error {
	for _, to := range allowed[s.State] {
		if to == next {
			s.State = next
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.State, next)
}

// Begin starts the one-time hydration of a new session.
func (s *Session) Begin() error {
	if s.State != StateUninitialized {
		return fmt.Errorf("%w: begin from %s", ErrInvalidTransition, s.State)
	}
	return s.Transition(StateHydrating)
}

// Complete marks hydration or a refresh as finished.
func (s *Session) Complete() error {
	return s.Transition(StateReady)
}

// BeginRefresh re-enters hydrating from ready.
func (s *Session) BeginRefresh() error {
	if s.State != StateReady {
		return fmt.Errorf("%w: refresh from %s", ErrInvalidTransition, s.State)
	}
	return s.Transition(StateHydrating)
}

// HasInteraction reports whether id is one of the session's interactions.
func (s *Session) HasInteraction(id string) bool {
	for _, i := range s.Interactions {
		if i.ID == id {
			return true
		}
	}
	return false
}

// applyFetch replaces the session data with a fetch result. Sections whose
// fetch failed come back empty, except interactions that could not be
// requested at all: those keep their previous value and expanded flags.
func (s *Session) applyFetch(res FetchResult, now time.Time) {
	// Without a patient the interactions cannot be requested, so the previous
	// profile stays together with the previous visits.
	if _, failed := res.Errors[SourcePatient]; !failed {
		s.Patient = res.Patient
	}
	s.Doctors = nonNilDoctors(res.Doctors)
	if res.InteractionsRequested {
		s.Interactions = nonNilInteractions(res.Interactions)
		s.Visits.ResetExpanded()
	}
	s.Errors = make(map[string]string, len(res.Errors))
	for k, v := range res.Errors {
		s.Errors[k] = v
	}
	s.Source = SourceFetch
	s.FetchedAt = now
}

// fillFromSnapshot loads the sources a fetch could not reach from the cached
// snapshot and drops their errors. When no source was fetched at all the
// session is marked as served from the cache.
func (s *Session) fillFromSnapshot(res FetchResult, snap Snapshot) {
	_, patientFailed := res.Errors[SourcePatient]
	_, interactionsFailed := res.Errors[SourceInteractions]
	_, doctorsFailed := res.Errors[SourceDoctors]

	if patientFailed && snap.Patient != nil {
		s.Patient = snap.Patient
		s.Interactions = nonNilInteractions(snap.Interactions)
		s.Visits.ResetExpanded()
		delete(s.Errors, SourcePatient)
	}
	if interactionsFailed && snap.Patient != nil && res.Patient != nil && snap.Patient.ID == res.Patient.ID {
		s.Interactions = nonNilInteractions(snap.Interactions)
		s.Visits.ResetExpanded()
		delete(s.Errors, SourceInteractions)
	}
	if doctorsFailed && snap.Doctors != nil {
		s.Doctors = nonNilDoctors(snap.Doctors)
		delete(s.Errors, SourceDoctors)
	}

	if patientFailed && doctorsFailed && len(s.Errors) == 0 {
		s.Source = SourceCache
		s.FetchedAt = snap.FetchedAt
	}
}

// Snapshot is the cached copy of the last successful fetch for a user. It
// outlives the session so the next session can fall back to it.
type Snapshot struct {
	Patient      *records.Patient      `json:"patient"`
	Interactions []records.Interaction `json:"interactions"`
	Doctors      []records.Doctor      `json:"doctors"`
	FetchedAt    time.Time             `json:"fetched_at"`
}

func nonNilInteractions(l []records.Interaction) []records.Interaction {
	if l == nil {
		return []records.Interaction{}
	}
	return l
}

func nonNilDoctors(l []records.Doctor) []records.Doctor {
	if l == nil {
		return []records.Doctor{}
	}
	return l
}
