package models

import "time"

// Meeting represents a single class meeting whose attendance is reconstructed
// from roster, participation and chat data.
type Meeting struct {
	ID             string    `db:"id" json:"id"`
	RosterID       string    `db:"roster_id" json:"roster_id"`
	Course         string    `db:"course" json:"course"`
	MeetingDate    string    `db:"meeting_date" json:"meeting_date"`
	ScheduledStart time.Time `db:"scheduled_start" json:"scheduled_start"`
	ScheduledEnd   time.Time `db:"scheduled_end" json:"scheduled_end"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ScheduledMinutes returns the scheduled meeting length in minutes.
func (m Meeting) ScheduledMinutes() float64 {
	return m.ScheduledEnd.Sub(m.ScheduledStart).Minutes()
}

// AttendanceInterval is one join/leave record for a participant. A student
// may have zero, one or many intervals (rejoins).
type AttendanceInterval struct {
	Name            string    `json:"name"`
	Join            time.Time `json:"join"`
	Leave           time.Time `json:"leave"`
	DurationMinutes float64   `json:"duration_minutes"`
	Guest           bool      `json:"guest"`
}

// ChatEvent is a single parsed chat message. Private marks direct messages.
type ChatEvent struct {
	Name    string    `json:"name"`
	At      time.Time `json:"at"`
	Private bool      `json:"private"`
}

// QuestionPeriod is a maximal span of sustained private-chat activity dense
// enough to be considered question answering. End is nil only for the
// degenerate single-point burst, which can occur when the burst threshold
// is configured at or below one.
type QuestionPeriod struct {
	Start     time.Time  `json:"start"`
	End       *time.Time `json:"end,omitempty"`
	PeakCount int        `json:"peak_count"`
}

// StudentSummary is the per-student verdict row produced by reconciliation.
// Rows are created once per run from the roster, filled in by successive
// merge stages and read-only afterwards.
type StudentSummary struct {
	StudentID          int        `db:"student_id" json:"student_id"`
	Name               string     `db:"name" json:"name"`
	DurationMinutes    float64    `db:"duration_minutes" json:"duration_minutes"`
	DurationFraction   float64    `db:"duration_fraction" json:"duration_fraction"`
	Joined             bool       `db:"joined" json:"joined"`
	FirstJoin          *time.Time `db:"first_join" json:"first_join,omitempty"`
	IsLate             bool       `db:"is_late" json:"is_late"`
	NumUnanswered      int        `db:"num_unanswered" json:"num_unanswered"`
	FractionUnanswered float64    `db:"fraction_unanswered" json:"fraction_unanswered"`
	IsAbsent           bool       `db:"is_absent" json:"is_absent"`
}

/// MeetingResult bundles everything a reconciliation run produces: the summary
// table, the detected question periods and the diagnostic unknown-name list.
type MeetingResult struct {
	MeetingID    string           `json:"meeting_id"`
	Summaries    []StudentSummary `json:"summaries"`
	Periods      []QuestionPeriod `json:"periods"`
	UnknownNames []string         `json:"unknown_names"`
	GeneratedAt  time.Time        `json:"generated_at"`
}
