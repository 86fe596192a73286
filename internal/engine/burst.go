package engine

import (
	"sort"
	"time"

	"github.com/classtrace/classtrace-api/internal/models"
)

// Segmenter detects question-answering periods in a stream of private-chat
// timestamps. A period is a maximal stretch during which the event-anchored
// window count never falls back to a fresh start, and whose peak count
// strictly exceeds the threshold.
type Segmenter struct {
	threshold int
	window    time.Duration
}

// NewSegmenter constructs a segmenter. threshold is the peak count a period
// must strictly exceed to be emitted; window is the trailing lookback for the
// per-event count.
func NewSegmenter(threshold int, window time.Duration) *Segmenter {
	if window <= 0 {
		window = 45 * time.Second
	}
	return &Segmenter{threshold: threshold, window: window}
}

// Segment walks the private-chat timestamps in order and emits question
// periods. The window count for an event at time t is the number of events in
// the half-open interval (t-w, t]; counts are only evaluated at event times,
// never on a wall-clock grid. The sort is stable so events sharing a
// timestamp keep their input order and output is deterministic.
func (s *Segmenter) Segment(times []time.Time) []models.QuestionPeriod {
	if len(times) == 0 {
		return nil
	}

	sorted := make([]time.Time, len(times))
	copy(sorted, times)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var periods []models.QuestionPeriod
	var start time.Time
	var end *time.Time
	maxCount := 0

	// left is the head of the trailing window; events before it have expired.
	left := 0
	for i, t := range sorted {
		for !sorted[left].Add(s.window).After(t) {
			left++
		}
		count := i - left + 1

		if count == 1 {
			// Fresh window: the previous burst, if any, has ended.
			if maxCount > s.threshold {
				periods = append(periods, models.QuestionPeriod{Start: start, End: end, PeakCount: maxCount})
			}
			start = t
			end = nil
			maxCount = 1
			continue
		}

		et := t
		end = &et
		if count > maxCount {
			maxCount = count
		}
	}

	if maxCount > s.threshold {
		periods = append(periods, models.QuestionPeriod{Start: start, End: end, PeakCount: maxCount})
	}

	return periods
}
