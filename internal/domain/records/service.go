package records

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	patients     PatientRepository
	doctors      DoctorRepository
	interactions InteractionRepository
}

func NewService(p PatientRepository, d DoctorRepository, i InteractionRepository) *Service {
	return &Service{patients: p, doctors: d, interactions: i}
}

// PatientsByFirebaseUID returns every patient linked to the uid. The records
// API returns an array; callers use the first element.
func (s *Service) PatientsByFirebaseUID(ctx context.Context, uid string) ([]Patient, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, fmt.Errorf("firebaseUid is required")
	}
	return s.patients.ListByFirebaseUID(ctx, uid)
}

func (s *Service) InteractionsByPatient(ctx context.Context, patientID string) ([]Interaction, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, fmt.Errorf("patientId is required")
	}
	return s.interactions.ListByPatient(ctx, patientID)
}

func (s *Service) ListDoctors(ctx context.Context) ([]Doctor, error) {
	return s.doctors.List(ctx)
}

// Dataset is the fixture format accepted by Seed.
type Dataset struct {
	Patients     []Patient     `json:"patients"`
	Doctors      []Doctor      `json:"doctors"`
	Interactions []Interaction `json:"interactions"`
}

// SeedResult counts the rows written by Seed.
type SeedResult struct {
	Patients     int
	Doctors      int
	Interactions int
}

// Seed upserts a JSON Dataset. Interactions without an _id get a fresh one.
func (s *Service) Seed(ctx context.Context, r io.Reader) (SeedResult, error) {
	var ds Dataset
	var res SeedResult
	if err := json.NewDecoder(r).Decode(&ds); err != nil {
		return res, fmt.Errorf("decode dataset: %w", err)
	}

	for i := range ds.Patients {
		p := &ds.Patients[i]
		if p.ID == "" || p.FirebaseUID == "" {
			return res, fmt.Errorf("patient %d: p_id and firebaseUid are required", i)
		}
		if err := s.patients.Upsert(ctx, p); err != nil {
			return res, err
		}
		res.Patients++
	}
	for i := range ds.Doctors {
		if err := s.doctors.Upsert(ctx, &ds.Doctors[i]); err != nil {
			return res, err
		}
		res.Doctors++
	}
	for i := range ds.Interactions {
		in := &ds.Interactions[i]
		if in.PatientID == "" {
			return res, fmt.Errorf("interaction %d: p_id is required", i)
		}
		if in.TreatmentDuration < 0 {
			return res, fmt.Errorf("interaction %d: treatment_duration must not be negative", i)
		}
		if in.ID == "" {
			in.ID = uuid.NewString()
		}
		if err := s.interactions.Upsert(ctx, in); err != nil {
			return res, err
		}
		res.Interactions++
	}
	return res, nil
}
