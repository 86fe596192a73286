package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/classtrace/classtrace-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRosterRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewRosterRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO rosters")).
		WithArgs(sqlmock.AnyArg(), "cs101", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO roster_entries")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "Alice", "Nguyen", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	roster := &models.Roster{Course: "cs101"}
	entries := []models.RosterEntry{{FirstName: "Alice", LastName: "Nguyen"}}
	require.NoError(t, repo.Create(context.Background(), roster, entries))
	require.NotEmpty(t, roster.ID)
	require.Equal(t, roster.ID, entries[0].RosterID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryFindByCourse(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	rows := sqlmock.NewRows([]string{"id", "course", "created_at", "updated_at"}).
		AddRow("roster-1", "cs101", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, course, created_at, updated_at FROM rosters WHERE course = $1 LIMIT 1")).
		WithArgs("cs101").
		WillReturnRows(rows)

	roster, err := repo.FindByCourse(context.Background(), "cs101")
	require.NoError(t, err)
	require.Equal(t, "roster-1", roster.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositoryCountAlias(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM roster_entries WHERE roster_id = $1 AND alias = $2 AND id <> $3")).
		WithArgs("roster-1", "Stevie", "entry-2").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	count, err := repo.CountAlias(context.Background(), "roster-1", "entry-2", "Stevie")
	require.NoError(t, err)
	require.Equal(t, 1, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRosterRepositorySetAlias(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewRosterRepository(db)

	alias := "Stevie"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE roster_entries SET alias = $2 WHERE id = $1")).
		WithArgs("entry-1", &alias).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetAlias(context.Background(), "entry-1", &alias))
	require.NoError(t, mock.ExpectationsWereMet())
}
