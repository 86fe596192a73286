package engine

import (
	"time"

	"github.com/classtrace/classtrace-api/internal/models"
)

// Presence aggregates one student's join/leave records for a meeting.
type Presence struct {
	TotalMinutes float64
	FirstJoin    time.Time
}

// AggregatePresence sums interval durations and finds the earliest join per
// student. Overlapping or duplicate intervals are summed, not merged, so a
// student's total can exceed the scheduled meeting length.
func AggregatePresence(intervals []models.AttendanceInterval) map[string]Presence {
	presence := make(map[string]Presence)
	for _, iv := range intervals {
		p, ok := presence[iv.Name]
		if !ok {
			presence[iv.Name] = Presence{TotalMinutes: iv.DurationMinutes, FirstJoin: iv.Join}
			continue
		}
		p.TotalMinutes += iv.DurationMinutes
		if iv.Join.Before(p.FirstJoin) {
			p.FirstJoin = iv.Join
		}
		presence[iv.Name] = p
	}
	return presence
}
