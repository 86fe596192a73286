package dto

// ReconcileRequest triggers reconciliation of one meeting from discovered
// data files. Start and End are wall-clock times ("15:04") on the meeting
// date. Threshold fields override the configured defaults when set.
type ReconcileRequest struct {
	Course string `json:"course"`
	Date   string `json:"date"`
	Start  string `json:"start"`
	End    string `json:"end"`

	GraceMinutes        *int     `json:"grace_minutes,omitempty"`
	MinDurationFraction *float64 `json:"min_duration_fraction,omitempty"`
	MaxUnanswered       *int     `json:"max_unanswered,omitempty"`
	BurstThreshold      *int     `json:"burst_threshold,omitempty"`
	BurstWindowSeconds  *int     `json:"burst_window_seconds,omitempty"`
}

// ListMeetingsQuery filters the meeting list endpoint.
type ListMeetingsQuery struct {
	Course   string `form:"course"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}
