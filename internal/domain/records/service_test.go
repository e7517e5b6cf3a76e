package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
)

// -- Mock Repositories --

type mockPatientRepo struct {
	mu       sync.Mutex
	patients map[string]Patient
	err      error
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[string]Patient)}
}

func (m *mockPatientRepo) ListByFirebaseUID(_ context.Context, uid string) ([]Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []Patient{}
	for _, p := range m.patients {
		if p.FirebaseUID == uid {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockPatientRepo) Upsert(_ context.Context, p *Patient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = *p
	return nil
}

type mockDoctorRepo struct {
	doctors map[int]Doctor
	err     error
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{doctors: make(map[int]Doctor)}
}

func (m *mockDoctorRepo) List(_ context.Context) ([]Doctor, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := []Doctor{}
	for _, d := range m.doctors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockDoctorRepo) Upsert(_ context.Context, d *Doctor) error {
	m.doctors[d.ID] = *d
	return nil
}

type mockInteractionRepo struct {
	interactions []Interaction
}

func (m *mockInteractionRepo) ListByPatient(_ context.Context, patientID string) ([]Interaction, error) {
	out := []Interaction{}
	for _, i := range m.interactions {
		if i.PatientID == patientID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *mockInteractionRepo) Upsert(_ context.Context, i *Interaction) error {
	if i.ID == "" {
		return fmt.Errorf("missing id")
	}
	for n := range m.interactions {
		if m.interactions[n].ID == i.ID {
			m.interactions[n] = *i
			return nil
		}
	}
	m.interactions = append(m.interactions, *i)
	return nil
}

func newTestService() (*Service, *mockPatientRepo, *mockDoctorRepo, *mockInteractionRepo) {
	p, d, i := newMockPatientRepo(), newMockDoctorRepo(), &mockInteractionRepo{}
	return NewService(p, d, i), p, d, i
}

func TestService_PatientsByFirebaseUID(t *testing.T) {
	svc, patients, _, _ := newTestService()
	patients.Upsert(context.Background(), &Patient{ID: "P1", FirebaseUID: "uid-1", Name: "Asha"})
	patients.Upsert(context.Background(), &Patient{ID: "P2", FirebaseUID: "uid-2", Name: "Ravi"})

	got, err := svc.PatientsByFirebaseUID(context.Background(), "uid-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "P1" {
		t.Errorf("expected [P1], got %+v", got)
	}

	got, err = svc.PatientsByFirebaseUID(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestService_PatientsByFirebaseUID_Required(t *testing.T) {
	svc, _, _, _ := newTestService()
	if _, err := svc.PatientsByFirebaseUID(context.Background(), "  "); err == nil {
		t.Fatal("expected error for blank uid")
	}
}

func TestService_InteractionsByPatient(t *testing.T) {
	svc, _, _, interactions := newTestService()
	interactions.Upsert(context.Background(), &Interaction{ID: "a", PatientID: "P1"})
	interactions.Upsert(context.Background(), &Interaction{ID: "b", PatientID: "P2"})

	got, err := svc.InteractionsByPatient(context.Background(), "P1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("expected [a], got %+v", got)
	}
	if _, err := svc.InteractionsByPatient(context.Background(), ""); err == nil {
		t.Error("expected error for blank patient id")
	}
}

func TestService_ListDoctors_Error(t *testing.T) {
	svc, _, doctors, _ := newTestService()
	doctors.err = errors.New("db down")
	if _, err := svc.ListDoctors(context.Background()); err == nil {
		t.Fatal("expected repository error to propagate")
	}
}

const seedFixture = `{
  "patients": [{"p_id": "P1", "firebaseUid": "uid-1", "p_name": "Asha", "p_age": 34}],
  "doctors": [{"d_id": 7, "d_name": "Ray", "d_specialization": "Cardiology"}],
  "interactions": [
    {"_id": "int-1", "p_id": "P1", "d_id": 7, "meeting_date": "2024-01-01T09:30:00Z", "treatment_duration": 15},
    {"p_id": "P1", "d_id": 7, "meeting_date": "2024-01-05", "treatment_duration": 5}
  ]
}`

func TestService_Seed(t *testing.T) {
	svc, patients, doctors, interactions := newTestService()

	res, err := svc.Seed(context.Background(), strings.NewReader(seedFixture))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Patients != 1 || res.Doctors != 1 || res.Interactions != 2 {
		t.Errorf("unexpected counts: %+v", res)
	}
	if patients.patients["P1"].Age != 34 {
		t.Errorf("expected patient age 34, got %d", patients.patients["P1"].Age)
	}
	if doctors.doctors[7].Name != "Ray" {
		t.Errorf("expected doctor Ray, got %q", doctors.doctors[7].Name)
	}
	if interactions.interactions[0].ID != "int-1" {
		t.Errorf("expected explicit id to be kept, got %q", interactions.interactions[0].ID)
	}
	if interactions.interactions[1].ID == "" {
		t.Error("expected generated id for interaction without _id")
	}
}

func TestService_Seed_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"patients": [`},
		{"patient without uid", `{"patients": [{"p_id": "P1"}]}`},
		{"interaction without patient", `{"interactions": [{"_id": "x"}]}`},
		{"negative duration", `{"interactions": [{"_id": "x", "p_id": "P1", "treatment_duration": -1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _, _ := newTestService()
			if _, err := svc.Seed(context.Background(), strings.NewReader(tt.body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
