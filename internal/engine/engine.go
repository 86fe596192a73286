// Package engine reconstructs per-student attendance and engagement for a
// single class meeting from three loosely-correlated sources: the course
// roster, join/leave interval records and the chat log. Processing is
// batch-oriented and single-threaded; a run is stateless with respect to
// prior runs and deterministic for identical inputs.
package engine

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/classtrace/classtrace-api/internal/models"
)

// Config holds the reconciliation thresholds. Values are injected per run so
// multiple threshold profiles can coexist without shared state.
type Config struct {
	GracePeriod         time.Duration
	MinDurationFraction float64
	MaxUnanswered       int
	BurstThreshold      int
	BurstWindow         time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		GracePeriod:         2 * time.Minute,
		MinDurationFraction: 0.9,
		MaxUnanswered:       1,
		BurstThreshold:      10,
		BurstWindow:         45 * time.Second,
	}
}

// Input is one meeting's worth of raw (already parsed) data.
type Input struct {
	Roster    []models.RosterEntry
	Intervals []models.AttendanceInterval
	Chat      []models.ChatEvent
	Meeting   models.Meeting
}

// Reconciler runs the full pipeline: identity resolution, interval
// aggregation, burst segmentation, unanswered-set folding and classification.
type Reconciler struct {
	cfg    Config
	logger *zap.Logger
}

// NewReconciler constructs a reconciler.
func NewReconciler(cfg Config, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BurstWindow <= 0 {
		cfg.BurstWindow = DefaultConfig().BurstWindow
	}
	return &Reconciler{cfg: cfg, logger: logger}
}

// Reconcile produces the per-student summary table, the detected question
// periods and the unknown-name diagnostic list for one meeting. Degenerate
// inputs (empty roster, no intervals, no chat, zero-length meeting) yield
// empty or zero-valued results, never errors.
func (r *Reconciler) Reconcile(in Input) (*models.MeetingResult, error) {
	resolver := NewResolver(in.Roster)

	intervals, unknownIntervals := r.resolveIntervals(resolver, in.Intervals)
	chat, unknownChat := r.resolveChat(resolver, in.Chat)
	unknown := mergeUnknown(unknownIntervals, unknownChat)
	if len(unknown) > 0 {
		r.logger.Warn("names not on roster", zap.Strings("names", unknown))
	}

	presence := AggregatePresence(intervals)

	private := make([]time.Time, 0, len(chat))
	for _, ev := range chat {
		if ev.Private {
			private = append(private, ev.At)
		}
	}
	segmenter := NewSegmenter(r.cfg.BurstThreshold, r.cfg.BurstWindow)
	periods := segmenter.Segment(private)

	// Only students observed in the interval data can answer questions; the
	// never-joined are flagged through the joined signal instead.
	joined := make([]string, 0, len(presence))
	for _, name := range resolver.Names() {
		if _, ok := presence[name]; ok {
			joined = append(joined, name)
		}
	}

	unansweredCounts := make(map[string]int)
	for _, period := range periods {
		for _, name := range Unanswered(chat, period, joined, in.Meeting.ScheduledEnd) {
			unansweredCounts[name]++
		}
	}

	summaries := Classify(ClassifyInput{
		Names:       resolver.Names(),
		Presence:    presence,
		Unanswered:  unansweredCounts,
		NumPeriods:  len(periods),
		Start:       in.Meeting.ScheduledStart,
		End:         in.Meeting.ScheduledEnd,
		Grace:       r.cfg.GracePeriod,
		MinDuration: r.cfg.MinDurationFraction,
		MaxMissed:   r.cfg.MaxUnanswered,
	})

	return &models.MeetingResult{
		MeetingID:    in.Meeting.ID,
		Summaries:    summaries,
		Periods:      periods,
		UnknownNames: unknown,
		GeneratedAt:  time.Now().UTC(),
	}, nil
}

// resolveIntervals applies alias substitution and splits off records whose
// resolved name is not on the roster. Unknown participants are excluded from
// roster-keyed aggregation but reported, never dropped silently.
func (r *Reconciler) resolveIntervals(resolver *Resolver, intervals []models.AttendanceInterval) ([]models.AttendanceInterval, map[string]struct{}) {
	known := make([]models.AttendanceInterval, 0, len(intervals))
	unknown := make(map[string]struct{})
	for _, iv := range intervals {
		iv.Name = resolver.Resolve(iv.Name)
		if !resolver.Known(iv.Name) {
			unknown[iv.Name] = struct{}{}
			continue
		}
		known = append(known, iv)
	}
	return known, unknown
}

// resolveChat applies alias substitution to chat events. Events from unknown
// senders are kept: they simply never match a roster-keyed set.
func (r *Reconciler) resolveChat(resolver *Resolver, chat []models.ChatEvent) ([]models.ChatEvent, map[string]struct{}) {
	resolved := make([]models.ChatEvent, 0, len(chat))
	unknown := make(map[string]struct{})
	for _, ev := range chat {
		ev.Name = resolver.Resolve(ev.Name)
		if !resolver.Known(ev.Name) {
			unknown[ev.Name] = struct{}{}
		}
		resolved = append(resolved, ev)
	}
	return resolved, unknown
}

func mergeUnknown(sets ...map[string]struct{}) []string {
	merged := make(map[string]struct{})
	for _, set := range sets {
		for name := range set {
			merged[name] = struct{}{}
		}
	}
	if len(merged) == 0 {
		return nil
	}
	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
