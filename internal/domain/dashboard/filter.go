package dashboard

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/manan-gakkhar/Doc-Plus/internal/domain/records"
)

var (
	ErrUnknownFilter      = errors.New("unknown filter field")
	ErrInvalidFilterValue = errors.New("invalid filter value")
)

const (
	FilterDoctor    = "doctor"
	FilterHospital  = "hospital"
	FilterTreatment = "treatment"
	FilterSymptom   = "symptom"
	FilterMedicine  = "medicine"
	FilterStatus    = "status"
	FilterFrom      = "from"
	FilterTo        = "to"

	StatusOngoing = "ongoing"
	StatusPast    = "past"

	filterDateLayout = "2006-01-02"
)

// FilterFields lists the supported fields in display order.
var FilterFields = []string{
	FilterDoctor, FilterHospital, FilterTreatment, FilterSymptom,
	FilterMedicine, FilterStatus, FilterFrom, FilterTo,
}

func isFilterField(name string) bool {
	for _, f := range FilterFields {
		if f == name {
			return true
		}
	}
	return false
}

// Filter maps a field name to the selected value. Absent fields match
// everything.
type Filter map[string]string

// validateFilterValue checks value for field name. An empty value is always
// valid and clears the field.
func validateFilterValue(name, value string) error {
	if !isFilterField(name) {
		return fmt.Errorf("%w: %q", ErrUnknownFilter, name)
	}
	if value == "" {
		return nil
	}
	switch name {
	case FilterDoctor:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("%w: doctor must be a numeric id", ErrInvalidFilterValue)
		}
	case FilterStatus:
		if value != StatusOngoing && value != StatusPast {
			return fmt.Errorf("%w: status must be %q or %q", ErrInvalidFilterValue, StatusOngoing, StatusPast)
		}
	case FilterFrom, FilterTo:
		if _, err := time.Parse(filterDateLayout, value); err != nil {
			return fmt.Errorf("%w: %s must be YYYY-MM-DD", ErrInvalidFilterValue, name)
		}
	}
	return nil
}

// Clone copies the filter so callers cannot alias session state.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Active reports whether any field is set.
func (f Filter) Active() bool {
	return len(f) > 0
}

// Matches reports whether i satisfies every set field.
func (f Filter) Matches(i records.Interaction, now time.Time, loc *time.Location) bool {
	for name, value := range f {
		if value == "" {
			continue
		}
		if !matchField(name, value, i, now, loc) {
			return false
		}
	}
	return true
}

func matchField(name, value string, i records.Interaction, now time.Time, loc *time.Location) bool {
	switch name {
	case FilterDoctor:
		id, err := strconv.Atoi(value)
		return err == nil && i.DoctorID == id
	case FilterHospital:
		return equalFold(i.Hospital, value)
	case FilterTreatment:
		return equalFold(i.TreatmentName, value)
	case FilterSymptom:
		return containsFold(i.Symptoms, value)
	case FilterMedicine:
		return containsFold(i.MedicinesProvided, value)
	case FilterStatus:
		return IsOngoing(i, now, loc) == (value == StatusOngoing)
	case FilterFrom:
		from, err := time.ParseInLocation(filterDateLayout, value, locOrUTC(loc))
		return err == nil && !dateOnly(i.MeetingDate.Time, loc).Before(from)
	case FilterTo:
		to, err := time.ParseInLocation(filterDateLayout, value, locOrUTC(loc))
		return err == nil && !dateOnly(i.MeetingDate.Time, loc).After(to)
	}
	return false
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if equalFold(s, v) {
			return true
		}
	}
	return false
}

// Option is one selectable filter value.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// FilterOptions are the values present in the fetched interactions, for
// populating the filter controls.
type FilterOptions struct {
	Doctors    []Option `json:"doctors"`
	Hospitals  []string `json:"hospitals"`
	Treatments []string `json:"treatments"`
	Symptoms   []string `json:"symptoms"`
	Medicines  []string `json:"medicines"`
}

func BuildFilterOptions(list []records.Interaction, doctors DoctorIndex) FilterOptions {
	seenDoctor := map[int]bool{}
	hospitals := newStringSet()
	treatments := newStringSet()
	symptoms := newStringSet()
	medicines := newStringSet()

	opts := FilterOptions{Doctors: []Option{}}
	for _, i := range list {
		if !seenDoctor[i.DoctorID] {
			seenDoctor[i.DoctorID] = true
			opts.Doctors = append(opts.Doctors, Option{Value: strconv.Itoa(i.DoctorID), Label: doctors.Label(i.DoctorID)})
		}
		hospitals.add(i.Hospital)
		treatments.add(i.TreatmentName)
		for _, s := range i.Symptoms {
			symptoms.add(s)
		}
		for _, m := range i.MedicinesProvided {
			medicines.add(m)
		}
	}
	sort.Slice(opts.Doctors, func(a, b int) bool { return opts.Doctors[a].Label < opts.Doctors[b].Label })
	opts.Hospitals = hospitals.sorted()
	opts.Treatments = treatments.sorted()
	opts.Symptoms = symptoms.sorted()
	opts.Medicines = medicines.sorted()
	return opts
}

// stringSet dedupes case-insensitively and keeps the first spelling seen.
type stringSet map[string]string

func newStringSet() stringSet { return stringSet{} }

func (s stringSet) add(v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	key := strings.ToLower(v)
	if _, ok := s[key]; !ok {
		s[key] = v
	}
}

func (s stringSet) sorted() []string {
	out := make([]string, 0, len(s))
	for _, v := range s {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}
