package dashboard

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/manan-gakkhar/Doc-Plus/internal/domain/records"
	"github.com/manan-gakkhar/Doc-Plus/internal/platform/recordsclient"
)

// Fetch sources, as used in FetchResult.Errors and log lines.
const (
	SourcePatient      = "patient"
	SourceInteractions = "interactions"
	SourceDoctors      = "doctors"
)

// Fetcher is implemented by *recordsclient.Client.
type Fetcher interface {
	GetPatientByUID(ctx context.Context, uid string) (*records.Patient, error)
	ListInteractions(ctx context.Context, patientID string) ([]records.Interaction, error)
	ListDoctors(ctx context.Context) ([]records.Doctor, error)
}

// FetchResult is the outcome of one refresh cycle. A failed source leaves its
// field empty and an entry in Errors.
type FetchResult struct {
	Patient               *records.Patient
	Interactions          []records.Interaction
	InteractionsRequested bool
	Doctors               []records.Doctor
	Errors                map[string]string
}

// Complete reports whether every source was fetched.
func (r FetchResult) Complete() bool {
	return len(r.Errors) == 0 && r.InteractionsRequested
}

type Loader struct {
	fetcher Fetcher
	logger  zerolog.Logger
}

func NewLoader(f Fetcher, logger zerolog.Logger) *Loader {
	return &Loader{fetcher: f, logger: logger}
}

// Fetch looks up the patient and the doctors concurrently; the interactions
// follow the patient because they are keyed by its id. A failure of one
// lookup never stops the others.
func (l *Loader) Fetch(ctx context.Context, uid string) FetchResult {
	var (
		g                                   errgroup.Group
		patient                             *records.Patient
		interactions                        []records.Interaction
		doctors                             []records.Doctor
		patientErr, interactionsErr, docErr error
		requested                           bool
	)

	g.Go(func() error {
		patient, patientErr = l.fetcher.GetPatientByUID(ctx, uid)
		if patientErr != nil {
			patient = nil
			return nil
		}
		requested = true
		interactions, interactionsErr = l.fetcher.ListInteractions(ctx, patient.ID)
		return nil
	})
	g.Go(func() error {
		doctors, docErr = l.fetcher.ListDoctors(ctx)
		return nil
	})
	_ = g.Wait()

	res := FetchResult{
		Patient:               patient,
		InteractionsRequested: requested,
		Errors:                map[string]string{},
	}
	if patientErr != nil {
		l.warn(uid, SourcePatient, patientErr)
		res.Errors[SourcePatient] = userMessage(patientErr)
	}
	if interactionsErr != nil {
		l.warn(uid, SourceInteractions, interactionsErr)
		res.Errors[SourceInteractions] = userMessage(interactionsErr)
	} else if requested {
		res.Interactions = interactions
	}
	if docErr != nil {
		l.warn(uid, SourceDoctors, docErr)
		res.Errors[SourceDoctors] = userMessage(docErr)
	} else {
		res.Doctors = doctors
	}
	return res
}

func (l *Loader) warn(uid, source string, err error) {
	l.logger.Warn().Err(err).
		Str("user_id", uid).
		Str("source", source).
		Msg("records fetch failed")
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, recordsclient.ErrNotFound):
		return "No patient record is linked to this account yet."
	case errors.Is(err, context.DeadlineExceeded):
		return "The records service took too long to respond."
	default:
		return "Could not load this section."
	}
}
