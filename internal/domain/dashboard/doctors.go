package dashboard

import (
	"fmt"

	"github.com/manan-gakkhar/Doc-Plus/internal/domain/records"
)

// UnknownDoctor is shown for interactions whose doctor is not in the list,
// including while the doctor list has not loaded.
const UnknownDoctor = "Unknown"

// DoctorLabel returns "name (specialization)" for the first doctor with id.
func DoctorLabel(doctors []records.Doctor, id int) string {
	for _, d := range doctors {
		if d.ID == id {
			return formatDoctor(d)
		}
	}
	return UnknownDoctor
}

// DoctorIndex answers the same lookup as DoctorLabel from a map.
type DoctorIndex map[int]records.Doctor

func NewDoctorIndex(doctors []records.Doctor) DoctorIndex {
	ix := make(DoctorIndex, len(doctors))
	for _, d := range doctors {
		if _, dup := ix[d.ID]; !dup {
			ix[d.ID] = d
		}
	}
	return ix
}

func (ix DoctorIndex) Label(id int) string {
	d, ok := ix[id]
	if !ok {
		return UnknownDoctor
	}
	return formatDoctor(d)
}

func formatDoctor(d records.Doctor) string {
	return fmt.Sprintf("%s (%s)", d.Name, d.Specialization)
}
