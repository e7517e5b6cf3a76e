package records

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/manan-gakkhar/Doc-Plus/internal/platform/db"
)

// -- Patient Repository --

type patientRepoPG struct {
	db db.Querier
}

func NewPatientRepo(q db.Querier) PatientRepository {
	return &patientRepoPG{db: q}
}

const patientCols = `p_id, firebase_uid, p_name, p_gender, p_age, p_bloodgroup, p_address,
	family_history, allergies, avatar`

func (r *patientRepoPG) ListByFirebaseUID(ctx context.Context, uid string) ([]Patient, error) {
	rows, err := r.db.Query(ctx, `SELECT `+patientCols+` FROM patients WHERE firebase_uid = $1 ORDER BY p_id`, uid)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()

	out := []Patient{}
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.FirebaseUID, &p.Name, &p.Gender, &p.Age, &p.BloodGroup,
			&p.Address, &p.FamilyHistory, &p.Allergies, &p.Avatar); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *patientRepoPG) Upsert(ctx context.Context, p *Patient) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO patients (`+patientCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (p_id) DO UPDATE SET
			firebase_uid = EXCLUDED.firebase_uid, p_name = EXCLUDED.p_name,
			p_gender = EXCLUDED.p_gender, p_age = EXCLUDED.p_age,
			p_bloodgroup = EXCLUDED.p_bloodgroup, p_address = EXCLUDED.p_address,
			family_history = EXCLUDED.family_history, allergies = EXCLUDED.allergies,
			avatar = EXCLUDED.avatar`,
		p.ID, p.FirebaseUID, p.Name, p.Gender, p.Age, p.BloodGroup, p.Address,
		p.FamilyHistory, p.Allergies, p.Avatar,
	)
	if err != nil {
		return fmt.Errorf("upsert patient %s: %w", p.ID, err)
	}
	return nil
}

// -- Doctor Repository --

type doctorRepoPG struct {
	db db.Querier
}

func NewDoctorRepo(q db.Querier) DoctorRepository {
	return &doctorRepoPG{db: q}
}

func (r *doctorRepoPG) List(ctx context.Context) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `SELECT d_id, d_name, d_specialization FROM doctors ORDER BY d_id`)
	if err != nil {
		return nil, fmt.Errorf("query doctors: %w", err)
	}
	defer rows.Close()

	out := []Doctor{}
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialization); err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *doctorRepoPG) Upsert(ctx context.Context, d *Doctor) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO doctors (d_id, d_name, d_specialization) VALUES ($1, $2, $3)
		ON CONFLICT (d_id) DO UPDATE SET d_name = EXCLUDED.d_name, d_specialization = EXCLUDED.d_specialization`,
		d.ID, d.Name, d.Specialization,
	)
	if err != nil {
		return fmt.Errorf("upsert doctor %d: %w", d.ID, err)
	}
	return nil
}

// -- Interaction Repository --

type interactionRepoPG struct {
	db db.Querier
}

func NewInteractionRepo(q db.Querier) InteractionRepository {
	return &interactionRepoPG{db: q}
}

const interactionCols = `id, p_id, d_id, meeting_date, hospital, symptoms, medicines_provided,
	documents, treatment_name, treatment_duration`

func (r *interactionRepoPG) ListByPatient(ctx context.Context, patientID string) ([]Interaction, error) {
	rows, err := r.db.Query(ctx, `SELECT `+interactionCols+` FROM interactions
		WHERE p_id = $1 ORDER BY meeting_date DESC, id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	out := []Interaction{}
	for rows.Next() {
		i, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

func (r *interactionRepoPG) Upsert(ctx context.Context, i *Interaction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO interactions (`+interactionCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			p_id = EXCLUDED.p_id, d_id = EXCLUDED.d_id, meeting_date = EXCLUDED.meeting_date,
			hospital = EXCLUDED.hospital, symptoms = EXCLUDED.symptoms,
			medicines_provided = EXCLUDED.medicines_provided, documents = EXCLUDED.documents,
			treatment_name = EXCLUDED.treatment_name, treatment_duration = EXCLUDED.treatment_duration`,
		i.ID, i.PatientID, i.DoctorID, i.MeetingDate.Time, i.Hospital,
		nonNil(i.Symptoms), nonNil(i.MedicinesProvided), nonNil(i.Documents),
		i.TreatmentName, i.TreatmentDuration,
	)
	if err != nil {
		return fmt.Errorf("upsert interaction %s: %w", i.ID, err)
	}
	return nil
}

func scanInteraction(row pgx.Row) (*Interaction, error) {
	var i Interaction
	err := row.Scan(
		&i.ID, &i.PatientID, &i.DoctorID, &i.MeetingDate.Time, &i.Hospital,
		&i.Symptoms, &i.MedicinesProvided, &i.Documents,
		&i.TreatmentName, &i.TreatmentDuration,
	)
	if err != nil {
		return nil, fmt.Errorf("scan interaction: %w", err)
	}
	return &i, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
