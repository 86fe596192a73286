package engine

import (
	"time"

	"github.com/classtrace/classtrace-api/internal/models"
)

// ClassifyInput carries the per-student aggregates feeding the final verdict.
type ClassifyInput struct {
	Names       []string            // canonical names in ID order
	Presence    map[string]Presence // students with at least one interval
	Unanswered  map[string]int      // question periods missed per student
	NumPeriods  int
	Start       time.Time // scheduled meeting start
	End         time.Time // scheduled meeting end
	Grace       time.Duration
	MinDuration float64 // minimum duration fraction
	MaxMissed   int     // unanswered periods tolerated
}

// Classify evaluates each student independently and produces the summary
// rows. The verdict is a pure disjunction of red flags: any one of lateness,
// never joining, too many unanswered periods or insufficient duration marks
// the student absent. Students missing from an aggregate get zero/false
// defaults before the disjunction is evaluated.
func Classify(in ClassifyInput) []models.StudentSummary {
	classMinutes := in.End.Sub(in.Start).Minutes()
	lateDeadline := in.Start.Add(in.Grace)

	summaries := make([]models.StudentSummary, 0, len(in.Names))
	for id, name := range in.Names {
		row := models.StudentSummary{StudentID: id, Name: name}

		if p, ok := in.Presence[name]; ok {
			row.Joined = true
			firstJoin := p.FirstJoin
			row.FirstJoin = &firstJoin
			row.DurationMinutes = p.TotalMinutes
			if classMinutes > 0 {
				row.DurationFraction = p.TotalMinutes / classMinutes
			}
			// Lateness is meaningful only relative to an observed join.
			row.IsLate = firstJoin.After(lateDeadline)
		}

		row.NumUnanswered = in.Unanswered[name]
		if in.NumPeriods > 0 {
			row.FractionUnanswered = float64(row.NumUnanswered) / float64(in.NumPeriods)
		}

		row.IsAbsent = row.IsLate ||
			!row.Joined ||
			row.NumUnanswered > in.MaxMissed ||
			row.DurationFraction < in.MinDuration

		summaries = append(summaries, row)
	}
	return summaries
}
