package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Patient is the profile the records API keeps for one signed-in user.
type Patient struct {
	ID            string `json:"p_id"`
	FirebaseUID   string `json:"firebaseUid"`
	Name          string `json:"p_name"`
	Gender        string `json:"p_gender"`
	Age           int    `json:"p_age"`
	BloodGroup    string `json:"p_bloodgroup"`
	Address       string `json:"p_address"`
	FamilyHistory string `json:"Family_History"`
	Allergies     string `json:"Allergies"`
	Avatar        string `json:"avatar"`
}

type Doctor struct {
	ID             int    `json:"d_id"`
	Name           string `json:"d_name"`
	Specialization string `json:"d_specialization"`
}

// Interaction is one recorded doctor visit.
type Interaction struct {
	ID                string    `json:"_id"`
	PatientID         string    `json:"p_id"`
	DoctorID          int       `json:"d_id"`
	MeetingDate       Timestamp `json:"meeting_date"`
	Hospital          string    `json:"hospital"`
	Symptoms          []string  `json:"symptoms"`
	MedicinesProvided []string  `json:"medicines_provided"`
	Documents         []string  `json:"documents"`
	TreatmentName     string    `json:"treatment_name"`
	TreatmentDuration int       `json:"treatment_duration"`
}

// Timestamp accepts both RFC 3339 timestamps and bare YYYY-MM-DD dates, which
// the records API emits depending on how a visit was entered. Bare dates are
// midnight UTC.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("meeting_date: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("meeting_date: unrecognized time %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// Clone returns a deep copy, so callers can hand out slices without sharing
// the backing arrays of the list fields.
func (i Interaction) Clone() Interaction {
	i.Symptoms = append([]string(nil), i.Symptoms...)
	i.MedicinesProvided = append([]string(nil), i.MedicinesProvided...)
	i.Documents = append([]string(nil), i.Documents...)
	return i
}
