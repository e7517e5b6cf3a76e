package dashboard

import (
	"math"
	"time"

	"github.com/manan-gakkhar/Doc-Plus/internal/domain/records"
)

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}

// dateOnly drops the time of day of t as seen in loc.
func dateOnly(t time.Time, loc *time.Location) time.Time {
	loc = locOrUTC(loc)
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndDate is the meeting date, truncated to a calendar day in loc, plus the
// treatment duration in calendar days.
func EndDate(i records.Interaction, loc *time.Location) time.Time {
	return dateOnly(i.MeetingDate.Time, loc).AddDate(0, 0, i.TreatmentDuration)
}

// IsOngoing reports whether the treatment's end date is still ahead of now.
func IsOngoing(i records.Interaction, now time.Time, loc *time.Location) bool {
	return EndDate(i, loc).After(now)
}

// OngoingTreatments returns the ongoing interactions in their original order.
func OngoingTreatments(list []records.Interaction, now time.Time, loc *time.Location) []records.Interaction {
	out := make([]records.Interaction, 0, len(list))
	for _, i := range list {
		if IsOngoing(i, now, loc) {
			out = append(out, i)
		}
	}
	return out
}

// RemainingDays is ceil((end date - now) / 24h). It is zero or negative once
// the treatment has ended.
func RemainingDays(i records.Interaction, now time.Time, loc *time.Location) int {
	left := EndDate(i, loc).Sub(now)
	return int(math.Ceil(left.Hours() / 24))
}
