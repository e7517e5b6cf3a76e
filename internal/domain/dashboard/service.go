package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/manan-gakkhar/Doc-Plus/internal/domain/records"
	"github.com/manan-gakkhar/Doc-Plus/internal/platform/sessionstore"
)

var (
	ErrUnknownInteraction = errors.New("unknown interaction")
	ErrMissingUser        = errors.New("user id is required")
)

// TransitionObserver is told about every session state change.
type TransitionObserver interface {
	ObserveTransition(from, to string)
}

type Options struct {
	SessionTTL time.Duration
	CacheTTL   time.Duration
	Location   *time.Location
	Now        func() time.Time
	Observer   TransitionObserver
}

func (o *Options) applyDefaults() {
	if o.SessionTTL <= 0 {
		o.SessionTTL = 12 * time.Hour
	}
	if o.CacheTTL < o.SessionTTL {
		o.CacheTTL = o.SessionTTL
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Service owns the per-user dashboard sessions.
type Service struct {
	loader *Loader
	store  sessionstore.Store
	logger zerolog.Logger
	opts   Options
	locks  *userLocks
}

func NewService(loader *Loader, store sessionstore.Store, logger zerolog.Logger, opts Options) *Service {
	opts.applyDefaults()
	return &Service{
		loader: loader,
		store:  store,
		logger: logger,
		opts:   opts,
		locks:  newUserLocks(),
	}
}

func sessionKey(uid string) string { return "session:" + uid }
func cacheKey(uid string) string   { return "cache:" + uid }

// View is everything the dashboard page renders.
type View struct {
	SessionID   string            `json:"session_id"`
	State       State             `json:"state"`
	Source      Source            `json:"source"`
	Patient     *records.Patient  `json:"patient"`
	Ongoing     []TreatmentRow    `json:"ongoing"`
	Visits      []VisitRow        `json:"visits"`
	TotalVisits int               `json:"total_visits"`
	Filter      Filter            `json:"filter"`
	Options     FilterOptions     `json:"filter_options"`
	Errors      map[string]string `json:"errors,omitempty"`
	FetchedAt   time.Time         `json:"fetched_at"`
}

// ErrorFor returns the fetch error message for a source, if any.
func (v *View) ErrorFor(source string) string {
	return v.Errors[source]
}

// View returns the dashboard for uid, starting a session if needed.
func (s *Service) View(ctx context.Context, uid string) (*View, error) {
	return s.with(ctx, uid, func(*Session) (bool, error) { return false, nil })
}

// Refresh refetches every source. The filter survives, the expanded flags
// do not.
func (s *Service) Refresh(ctx context.Context, uid string) (*View, error) {
	if uid == "" {
		return nil, ErrMissingUser
	}
	unlock := s.locks.lock(uid)
	defer unlock()

	// A session that was just started by a fetch is already current.
	sess, fresh := s.session(ctx, uid)
	if !fresh || sess.Source != SourceFetch {
		if err := s.move(sess, sess.BeginRefresh); err != nil {
			return nil, err
		}
		res := s.loader.Fetch(ctx, uid)
		sess.applyFetch(res, s.opts.Now())
		s.cache(ctx, sess, res)
		if err := s.move(sess, sess.Complete); err != nil {
			return nil, err
		}
	}
	s.save(ctx, sess)
	return s.view(sess), nil
}

// ToggleVisit flips the expanded flag of one visit.
func (s *Service) ToggleVisit(ctx context.Context, uid, interactionID string) (*View, error) {
	return s.with(ctx, uid, func(sess *Session) (bool, error) {
		if !sess.HasInteraction(interactionID) {
			return false, fmt.Errorf("%w: %s", ErrUnknownInteraction, interactionID)
		}
		sess.Visits.Toggle(interactionID)
		return true, nil
	})
}

func (s *Service) SetFilter(ctx context.Context, uid, name, value string) (*View, error) {
	return s.UpdateFilter(ctx, uid, map[string]string{name: value})
}

// UpdateFilter applies several filter fields at once; on a validation
// error the session is unchanged.
func (s *Service) UpdateFilter(ctx context.Context, uid string, fields map[string]string) (*View, error) {
	return s.with(ctx, uid, func(sess *Session) (bool, error) {
		if len(fields) == 0 {
			return false, nil
		}
		if err := sess.Visits.SetFilters(fields); err != nil {
			return false, err
		}
		return true, nil
	})
}

func (s *Service) ClearFilters(ctx context.Context, uid string) (*View, error) {
	return s.with(ctx, uid, func(sess *Session) (bool, error) {
		sess.Visits.ClearFilters()
		return true, nil
	})
}

// EndSession forgets the user's session. The cached snapshot is kept as the
// next session's fallback.
func (s *Service) EndSession(ctx context.Context, uid string) error {
	if uid == "" {
		return ErrMissingUser
	}
	unlock := s.locks.lock(uid)
	defer unlock()
	if err := s.store.Delete(ctx, sessionKey(uid)); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	return nil
}

// with runs fn on the user's session under the user's lock and persists the
// session when it is new or fn reports a change.
func (s *Service) with(ctx context.Context, uid string, fn func(*Session) (bool, error)) (*View, error) {
	if uid == "" {
		return nil, ErrMissingUser
	}
	unlock := s.locks.lock(uid)
	defer unlock()

	sess, fresh := s.session(ctx, uid)
	changed, err := fn(sess)
	if err != nil {
		if fresh {
			s.save(ctx, sess)
		}
		return nil, err
	}
	if fresh || changed {
		s.save(ctx, sess)
	}
	return s.view(sess), nil
}

// session loads the live session for uid or starts a new one. The second
// result is true for a session started by this call.
func (s *Service) session(ctx context.Context, uid string) (*Session, bool) {
	var sess Session
	err := sessionstore.LoadJSON(ctx, s.store, sessionKey(uid), &sess)
	if err == nil && sess.State == StateReady {
		sess.Visits.ensure()
		return &sess, false
	}
	if err != nil && !errors.Is(err, sessionstore.ErrNotFound) {
		s.logger.Error().Err(err).Str("user_id", uid).Msg("load session failed, starting a new one")
	}
	return s.start(ctx, uid), true
}

// start opens a new session with a fresh fetch. Sources the fetch could not
// reach fall back to the snapshot cached by an earlier session.
func (s *Service) start(ctx context.Context, uid string) *Session {
	sess := NewSession(uid, s.opts.Now())
	// A fresh session is always uninitialized, so these cannot fail.
	_ = s.move(sess, sess.Begin)

	res := s.loader.Fetch(ctx, uid)
	sess.applyFetch(res, s.opts.Now())
	if res.Complete() {
		s.cache(ctx, sess, res)
	} else {
		s.fallback(ctx, sess, res)
	}

	_ = s.move(sess, sess.Complete)
	return sess
}

func (s *Service) fallback(ctx context.Context, sess *Session, res FetchResult) {
	var snap Snapshot
	err := sessionstore.LoadJSON(ctx, s.store, cacheKey(sess.UserID), &snap)
	if err != nil {
		if !errors.Is(err, sessionstore.ErrNotFound) {
			s.logger.Error().Err(err).Str("user_id", sess.UserID).Msg("load cached snapshot failed")
		}
		return
	}
	sess.fillFromSnapshot(res, snap)
	s.logger.Info().
		Str("user_id", sess.UserID).
		Time("snapshot_fetched_at", snap.FetchedAt).
		Msg("filled failed sources from cached snapshot")
}

// cache stores the session data as the snapshot for later sessions, but only
// after a fetch where every source succeeded.
func (s *Service) cache(ctx context.Context, sess *Session, res FetchResult) {
	if !res.Complete() {
		return
	}
	snap := Snapshot{
		Patient:      sess.Patient,
		Interactions: sess.Interactions,
		Doctors:      sess.Doctors,
		FetchedAt:    sess.FetchedAt,
	}
	if err := sessionstore.SaveJSON(ctx, s.store, cacheKey(sess.UserID), snap, s.opts.CacheTTL); err != nil {
		s.logger.Error().Err(err).Str("user_id", sess.UserID).Msg("save cached snapshot failed")
	}
}

func (s *Service) save(ctx context.Context, sess *Session) {
	if err := sessionstore.SaveJSON(ctx, s.store, sessionKey(sess.UserID), sess, s.opts.SessionTTL); err != nil {
		s.logger.Error().Err(err).Str("user_id", sess.UserID).Msg("save session failed")
	}
}

func (s *Service) move(sess *Session, step func() error) error {
	from := sess.State
	if err := step(); err != nil {
		return err
	}
	if s.opts.Observer != nil {
		s.opts.Observer.ObserveTransition(string(from), string(sess.State))
	}
	return nil
}

func (s *Service) view(sess *Session) *View {
	now := s.opts.Now()
	loc := s.opts.Location
	var errs map[string]string
	if len(sess.Errors) > 0 {
		errs = make(map[string]string, len(sess.Errors))
		for k, v := range sess.Errors {
			errs[k] = v
		}
	}
	return &View{
		SessionID:   sess.ID,
		State:       sess.State,
		Source:      sess.Source,
		Patient:     sess.Patient,
		Ongoing:     TreatmentRows(sess.Interactions, now, loc),
		Visits:      sess.Visits.Rows(sess.Interactions, sess.Doctors, now, loc),
		TotalVisits: len(sess.Interactions),
		Filter:      sess.Visits.Filter.Clone(),
		Options:     BuildFilterOptions(sess.Interactions, NewDoctorIndex(sess.Doctors)),
		Errors:      errs,
		FetchedAt:   sess.FetchedAt,
	}
}

// IsValidationError reports whether err came from bad user input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrUnknownFilter) || errors.Is(err, ErrInvalidFilterValue)
}

// Initials is shown on the profile card when the patient has no avatar.
func (v *View) Initials() string {
	if v.Patient == nil {
		return ""
	}
	var out []rune
	for _, f := range strings.Fields(v.Patient.Name) {
		r := []rune(f)
		out = append(out, unicode.ToUpper(r[0]))
		if len(out) == 2 {
			break
		}
	}
	return string(out)
}
