package engine

import (
	"time"

	"github.com/classtrace/classtrace-api/internal/models"
)

// Unanswered returns the subset of known students with no private chat inside
// the period's closed interval [start, end]. A nil period end is treated as
// extending through fallbackEnd (the scheduled meeting end), so a degenerate
// single-point burst never marks the whole class unanswered on its own.
// The returned names keep the order of the known slice.
func Unanswered(chat []models.ChatEvent, period models.QuestionPeriod, known []string, fallbackEnd time.Time) []string {
	end := fallbackEnd
	if period.End != nil {
		end = *period.End
	}

	answered := make(map[string]struct{})
	for _, ev := range chat {
		if !ev.Private {
			continue
		}
		if ev.At.Before(period.Start) || ev.At.After(end) {
			continue
		}
		answered[ev.Name] = struct{}{}
	}

	unanswered := make([]string, 0, len(known))
	for _, name := range known {
		if _, ok := answered[name]; !ok {
			unanswered = append(unanswered, name)
		}
	}
	return unanswered
}
