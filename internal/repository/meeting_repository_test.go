package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/classtrace/classtrace-api/internal/models"
)

func TestMeetingRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO meetings")).
		WithArgs(sqlmock.AnyArg(), "roster-1", "cs101", "2026-03-09", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	start := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)
	meeting := &models.Meeting{
		RosterID:       "roster-1",
		Course:         "cs101",
		MeetingDate:    "2026-03-09",
		ScheduledStart: start,
		ScheduledEnd:   start.Add(110 * time.Minute),
	}
	require.NoError(t, repo.Upsert(context.Background(), meeting))
	require.NotEmpty(t, meeting.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositorySaveResult(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM meeting_summaries WHERE meeting_id = $1")).
		WithArgs("meeting-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM meeting_periods WHERE meeting_id = $1")).
		WithArgs("meeting-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM meeting_unknown_names WHERE meeting_id = $1")).
		WithArgs("meeting-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO meeting_summaries")).
		WithArgs("meeting-1", 0, "Alice Nguyen", 100.0, 1.0, true, sqlmock.AnyArg(), false, 0, 0.0, false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO meeting_periods")).
		WithArgs("meeting-1", 0, sqlmock.AnyArg(), sqlmock.AnyArg(), 12).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO meeting_unknown_names")).
		WithArgs("meeting-1", "Lecture Bot").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE meetings SET updated_at = $2 WHERE id = $1")).
		WithArgs("meeting-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	start := time.Date(2026, 3, 9, 14, 30, 0, 0, time.UTC)
	end := start.Add(3 * time.Minute)
	firstJoin := start.Add(-30 * time.Minute)
	result := &models.MeetingResult{
		MeetingID: "meeting-1",
		Summaries: []models.StudentSummary{{
			StudentID: 0, Name: "Alice Nguyen", DurationMinutes: 100.0, DurationFraction: 1.0,
			Joined: true, FirstJoin: &firstJoin,
		}},
		Periods:      []models.QuestionPeriod{{Start: start, End: &end, PeakCount: 12}},
		UnknownNames: []string{"Lecture Bot"},
		GeneratedAt:  time.Now().UTC(),
	}
	require.NoError(t, repo.SaveResult(context.Background(), result))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMeetingRepositoryGetResult(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewMeetingRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, roster_id, course, meeting_date, scheduled_start, scheduled_end, created_at, updated_at")).
		WithArgs("meeting-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "roster_id", "course", "meeting_date", "scheduled_start", "scheduled_end", "created_at", "updated_at"}).
			AddRow("meeting-1", "roster-1", "cs101", "2026-03-09", now, now.Add(110*time.Minute), now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM meeting_summaries WHERE meeting_id = $1 ORDER BY student_id ASC")).
		WithArgs("meeting-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "name", "duration_minutes", "duration_fraction", "joined", "first_join", "is_late", "num_unanswered", "fraction_unanswered", "is_absent"}).
			AddRow(0, "Alice Nguyen", 100.0, 1.0, true, now, false, 0, 0.0, false).
			AddRow(1, "Bob Jones", 30.0, 0.27, true, now, true, 1, 0.5, true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT start_at, end_at, peak_count FROM meeting_periods WHERE meeting_id = $1 ORDER BY position ASC")).
		WithArgs("meeting-1").
		WillReturnRows(sqlmock.NewRows([]string{"start_at", "end_at", "peak_count"}).
			AddRow(now, now.Add(3*time.Minute), 12))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM meeting_unknown_names WHERE meeting_id = $1 ORDER BY name ASC")).
		WithArgs("meeting-1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Lecture Bot"))

	result, err := repo.GetResult(context.Background(), "meeting-1")
	require.NoError(t, err)
	require.Len(t, result.Summaries, 2)
	require.Len(t, result.Periods, 1)
	require.Equal(t, []string{"Lecture Bot"}, result.UnknownNames)
	require.NoError(t, mock.ExpectationsWereMet())
}
