package records

import (
	"context"
)

type PatientRepository interface {
	ListByFirebaseUID(ctx context.Context, uid string) ([]Patient, error)
	Upsert(ctx context.Context, p *Patient) error
}

type DoctorRepository interface {
	List(ctx context.Context) ([]Doctor, error)
	Upsert(ctx context.Context, d *Doctor) error
}

type InteractionRepository interface {
	ListByPatient(ctx context.Context, patientID string) ([]Interaction, error)
	Upsert(ctx context.Context, i *Interaction) error
}
