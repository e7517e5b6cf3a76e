package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/manan-gakkhar/Doc-Plus/internal/domain/records"
)

const visitDateLayout = "02/01/2006"

// VisitState is the view state of the visit history: which visits are
// expanded and which filter is selected. It never holds interaction data, so
// refetching the list and toggling a visit cannot interfere with each other.
type VisitState struct {
	Expanded map[string]bool `json:"expanded"`
	Filter   Filter          `json:"filter"`
}

func NewVisitState() VisitState {
	return VisitState{Expanded: map[string]bool{}, Filter: Filter{}}
}

func (v *VisitState) ensure() {
	if v.Expanded == nil {
		v.Expanded = map[string]bool{}
	}
	if v.Filter == nil {
		v.Filter = Filter{}
	}
}

// Toggle flips the expanded flag of the visit with id and returns the new
// value. No other visit is affected.
func (v *VisitState) Toggle(id string) bool {
	v.ensure()
	if v.Expanded[id] {
		delete(v.Expanded, id)
		return false
	}
	v.Expanded[id] = true
	return true
}

func (v *VisitState) IsExpanded(id string) bool {
	return v.Expanded[id]
}

// ResetExpanded collapses every visit.
func (v *VisitState) ResetExpanded() {
	v.Expanded = map[string]bool{}
}

// SetFilter sets one field; an empty value clears it.
func (v *VisitState) SetFilter(name, value string) error {
	return v.SetFilters(map[string]string{name: value})
}

// SetFilters applies several fields at once. Nothing changes unless every
// field is valid.
func (v *VisitState) SetFilters(fields map[string]string) error {
	for name, value := range fields {
		if err := validateFilterValue(name, strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	v.ensure()
	for name, value := range fields {
		value = strings.TrimSpace(value)
		if value == "" {
			delete(v.Filter, name)
			continue
		}
		v.Filter[name] = value
	}
	return nil
}

func (v *VisitState) ClearFilters() {
	v.Filter = Filter{}
}

// Apply returns the visits matching the filter, in list order. list and the
// expanded flags are left untouched.
func (v *VisitState) Apply(list []records.Interaction, now time.Time, loc *time.Location) []records.Interaction {
	out := make([]records.Interaction, 0, len(list))
	for _, i := range list {
		if v.Filter.Matches(i, now, loc) {
			out = append(out, i)
		}
	}
	return out
}

// VisitRow is one rendered entry of the visit history.
type VisitRow struct {
	ID            string `json:"id"`
	Date          string `json:"date"`
	Doctor        string `json:"doctor"`
	Hospital      string `json:"hospital"`
	TreatmentName string `json:"treatment_name"`
	Ongoing       bool   `json:"ongoing"`
	Expanded      bool   `json:"expanded"`
	Symptoms      string `json:"symptoms"`
	Medicines     string `json:"medicines"`
	Documents     string `json:"documents"`
}

// Rows renders the filtered visit history.
func (v *VisitState) Rows(list []records.Interaction, doctors []records.Doctor, now time.Time, loc *time.Location) []VisitRow {
	ix := NewDoctorIndex(doctors)
	shown := v.Apply(list, now, loc)
	rows := make([]VisitRow, 0, len(shown))
	for _, i := range shown {
		rows = append(rows, VisitRow{
			ID:            i.ID,
			Date:          FormatVisitDate(i.MeetingDate.Time, loc),
			Doctor:        ix.Label(i.DoctorID),
			Hospital:      i.Hospital,
			TreatmentName: i.TreatmentName,
			Ongoing:       IsOngoing(i, now, loc),
			Expanded:      v.IsExpanded(i.ID),
			Symptoms:      strings.Join(i.Symptoms, ", "),
			Medicines:     strings.Join(i.MedicinesProvided, ", "),
			Documents:     strings.Join(i.Documents, ", "),
		})
	}
	return rows
}

// FormatVisitDate renders t as DD/MM/YYYY in loc.
func FormatVisitDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(locOrUTC(loc)).Format(visitDateLayout)
}

// TreatmentRow is one entry of the ongoing treatments panel.
type TreatmentRow struct {
	ID            string `json:"id"`
	TreatmentName string `json:"treatment_name"`
	Medicines     string `json:"medicines"`
	EndDate       string `json:"end_date"`
	RemainingDays int    `json:"remaining_days"`
}

func (r TreatmentRow) Remaining() string {
	return fmt.Sprintf("%d days", r.RemainingDays)
}

// TreatmentRows renders the ongoing subset of list.
func TreatmentRows(list []records.Interaction, now time.Time, loc *time.Location) []TreatmentRow {
	ongoing := OngoingTreatments(list, now, loc)
	rows := make([]TreatmentRow, 0, len(ongoing))
	for _, i := range ongoing {
		rows = append(rows, TreatmentRow{
			ID:            i.ID,
			TreatmentName: i.TreatmentName,
			Medicines:     strings.Join(i.MedicinesProvided, ", "),
			EndDate:       EndDate(i, loc).Format(visitDateLayout),
			RemainingDays: RemainingDays(i, now, loc),
		})
	}
	return rows
}
