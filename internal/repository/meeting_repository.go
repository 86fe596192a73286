package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/classtrace/classtrace-api/internal/models"
)

// MeetingRepository persists meetings and their reconciliation results.
type MeetingRepository struct {
	db *sqlx.DB
}

// NewMeetingRepository constructs the repository.
func NewMeetingRepository(db *sqlx.DB) *MeetingRepository {
	return &MeetingRepository{db: db}
}

// Upsert inserts a meeting row or refreshes the schedule of an existing one
// keyed by (course, meeting_date).
func (r *MeetingRepository) Upsert(ctx context.Context, meeting *models.Meeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if meeting.CreatedAt.IsZero() {
		meeting.CreatedAt = now
	}
	meeting.UpdatedAt = now

	const query = `INSERT INTO meetings (id, roster_id, course, meeting_date, scheduled_start, scheduled_end, created_at, updated_at)
VALUES (:id, :roster_id, :course, :meeting_date, :scheduled_start, :scheduled_end, :created_at, :updated_at)
ON CONFLICT (course, meeting_date) DO UPDATE SET
    roster_id = EXCLUDED.roster_id,
    scheduled_start = EXCLUDED.scheduled_start,
    scheduled_end = EXCLUDED.scheduled_end,
    updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, meeting); err != nil {
		return fmt.Errorf("upsert meeting: %w", err)
	}
	return nil
}

// FindByID returns a meeting by identifier.
func (r *MeetingRepository) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	const query = `SELECT id, roster_id, course, meeting_date, scheduled_start, scheduled_end, created_at, updated_at
FROM meetings WHERE id = $1 LIMIT 1`
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find meeting by id: %w", err)
	}
	return &meeting, nil
}

// FindByCourseDate returns a meeting by its natural key.
func (r *MeetingRepository) FindByCourseDate(ctx context.Context, course, meetingDate string) (*models.Meeting, error) {
	const query = `SELECT id, roster_id, course, meeting_date, scheduled_start, scheduled_end, created_at, updated_at
FROM meetings WHERE course = $1 AND meeting_date = $2 LIMIT 1`
	var meeting models.Meeting
	if err := r.db.GetContext(ctx, &meeting, query, course, meetingDate); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find meeting by course and date: %w", err)
	}
	return &meeting, nil
}

// List returns meetings, optionally filtered by course, newest first.
func (r *MeetingRepository) List(ctx context.Context, course string, page, pageSize int) ([]models.Meeting, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	baseQuery := "FROM meetings WHERE 1=1"
	var args []interface{}
	if course != "" {
		args = append(args, course)
		baseQuery += fmt.Sprintf(" AND course = $%d", len(args))
	}

	listQuery := fmt.Sprintf("SELECT id, roster_id, course, meeting_date, scheduled_start, scheduled_end, created_at, updated_at %s ORDER BY meeting_date DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)
	var meetings []models.Meeting
	if err := r.db.SelectContext(ctx, &meetings, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list meetings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count meetings: %w", err)
	}
	return meetings, total, nil
}

// SaveResult replaces the persisted reconciliation output for a meeting.
// Summaries, question periods and unknown names are rewritten atomically so
// a re-run never leaves a mix of old and new rows.
func (r *MeetingRepository) SaveResult(ctx context.Context, result *models.MeetingResult) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin result tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"meeting_summaries", "meeting_periods", "meeting_unknown_names"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE meeting_id = $1", table), result.MeetingID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	const summaryQuery = `INSERT INTO meeting_summaries (meeting_id, student_id, name, duration_minutes, duration_fraction, joined, first_join, is_late, num_unanswered, fraction_unanswered, is_absent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	for _, s := range result.Summaries {
		if _, err := tx.ExecContext(ctx, summaryQuery,
			result.MeetingID, s.StudentID, s.Name, s.DurationMinutes, s.DurationFraction,
			s.Joined, s.FirstJoin, s.IsLate, s.NumUnanswered, s.FractionUnanswered, s.IsAbsent); err != nil {
			return fmt.Errorf("insert meeting summary: %w", err)
		}
	}

	const periodQuery = `INSERT INTO meeting_periods (meeting_id, position, start_at, end_at, peak_count) VALUES ($1, $2, $3, $4, $5)`
	for i, p := range result.Periods {
		if _, err := tx.ExecContext(ctx, periodQuery, result.MeetingID, i, p.Start, p.End, p.PeakCount); err != nil {
			return fmt.Errorf("insert meeting period: %w", err)
		}
	}

	const unknownQuery = `INSERT INTO meeting_unknown_names (meeting_id, name) VALUES ($1, $2)`
	for _, name := range result.UnknownNames {
		if _, err := tx.ExecContext(ctx, unknownQuery, result.MeetingID, name); err != nil {
			return fmt.Errorf("insert unknown name: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, "UPDATE meetings SET updated_at = $2 WHERE id = $1", result.MeetingID, result.GeneratedAt); err != nil {
		return fmt.Errorf("touch meeting: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit result tx: %w", err)
	}
	return nil
}

// GetResult loads the persisted reconciliation output for a meeting.
func (r *MeetingRepository) GetResult(ctx context.Context, meetingID string) (*models.MeetingResult, error) {
	meeting, err := r.FindByID(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	const summaryQuery = `SELECT student_id, name, duration_minutes, duration_fraction, joined, first_join, is_late, num_unanswered, fraction_unanswered, is_absent
FROM meeting_summaries WHERE meeting_id = $1 ORDER BY student_id ASC`
	var summaries []models.StudentSummary
	if err := r.db.SelectContext(ctx, &summaries, summaryQuery, meetingID); err != nil {
		return nil, fmt.Errorf("load meeting summaries: %w", err)
	}

	const periodQuery = `SELECT start_at, end_at, peak_count FROM meeting_periods WHERE meeting_id = $1 ORDER BY position ASC`
	type periodRow struct {
		StartAt   time.Time  `db:"start_at"`
		EndAt     *time.Time `db:"end_at"`
		PeakCount int        `db:"peak_count"`
	}
	var periodRows []periodRow
	if err := r.db.SelectContext(ctx, &periodRows, periodQuery, meetingID); err != nil {
		return nil, fmt.Errorf("load meeting periods: %w", err)
	}
	periods := make([]models.QuestionPeriod, 0, len(periodRows))
	for _, row := range periodRows {
		periods = append(periods, models.QuestionPeriod{Start: row.StartAt, End: row.EndAt, PeakCount: row.PeakCount})
	}

	const unknownQuery = `SELECT name FROM meeting_unknown_names WHERE meeting_id = $1 ORDER BY name ASC`
	var unknown []string
	if err := r.db.SelectContext(ctx, &unknown, unknownQuery, meetingID); err != nil {
		return nil, fmt.Errorf("load unknown names: %w", err)
	}

	return &models.MeetingResult{
		MeetingID:    meetingID,
		Summaries:    summaries,
		Periods:      periods,
		UnknownNames: unknown,
		GeneratedAt:  meeting.UpdatedAt,
	}, nil
}
