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

// RosterRepository provides database access for course rosters.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository creates a new instance of RosterRepository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// Create inserts a roster and its entries in one transaction.
func (r *RosterRepository) Create(ctx context.Context, roster *models.Roster, entries []models.RosterEntry) error {
	if roster.ID == "" {
		roster.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if roster.CreatedAt.IsZero() {
		roster.CreatedAt = now
	}
	roster.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const rosterQuery = `INSERT INTO rosters (id, course, created_at, updated_at) VALUES (:id, :course, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, rosterQuery, roster); err != nil {
		return fmt.Errorf("create roster: %w", err)
	}

	const entryQuery = `INSERT INTO roster_entries (id, roster_id, first_name, last_name, alias, created_at)
VALUES (:id, :roster_id, :first_name, :last_name, :alias, :created_at)`
	for i := range entries {
		entries[i].RosterID = roster.ID
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = now
		}
		if _, err := tx.NamedExecContext(ctx, entryQuery, entries[i]); err != nil {
			return fmt.Errorf("create roster entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roster tx: %w", err)
	}
	return nil
}

// FindByID returns a roster row by identifier.
func (r *RosterRepository) FindByID(ctx context.Context, id string) (*models.Roster, error) {
	const query = `SELECT id, course, created_at, updated_at FROM rosters WHERE id = $1 LIMIT 1`
	var roster models.Roster
	if err := r.db.GetContext(ctx, &roster, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find roster by id: %w", err)
	}
	return &roster, nil
}

// FindByCourse returns a roster row by course code.
func (r *RosterRepository) FindByCourse(ctx context.Context, course string) (*models.Roster, error) {
	const query = `SELECT id, course, created_at, updated_at FROM rosters WHERE course = $1 LIMIT 1`
	var roster models.Roster
	if err := r.db.GetContext(ctx, &roster, query, course); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find roster by course: %w", err)
	}
	return &roster, nil
}

// ListEntries returns roster entries ordered by last then first name.
func (r *RosterRepository) ListEntries(ctx context.Context, rosterID string) ([]models.RosterEntry, error) {
	const query = `SELECT id, roster_id, first_name, last_name, alias, created_at
FROM roster_entries WHERE roster_id = $1 ORDER BY last_name ASC, first_name ASC`
	var entries []models.RosterEntry
	if err := r.db.SelectContext(ctx, &entries, query, rosterID); err != nil {
		return nil, fmt.Errorf("list roster entries: %w", err)
	}
	return entries, nil
}

// List returns rosters with a total count for pagination.
func (r *RosterRepository) List(ctx context.Context, page, pageSize int) ([]models.Roster, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, course, created_at, updated_at FROM rosters ORDER BY course ASC LIMIT %d OFFSET %d", pageSize, offset)
	var rosters []models.Roster
	if err := r.db.SelectContext(ctx, &rosters, listQuery); err != nil {
		return nil, 0, fmt.Errorf("list rosters: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM rosters"); err != nil {
		return nil, 0, fmt.Errorf("count rosters: %w", err)
	}
	return rosters, total, nil
}

// FindEntry returns one roster entry by identifier.
func (r *RosterRepository) FindEntry(ctx context.Context, entryID string) (*models.RosterEntry, error) {
	const query = `SELECT id, roster_id, first_name, last_name, alias, created_at FROM roster_entries WHERE id = $1 LIMIT 1`
	var entry models.RosterEntry
	if err := r.db.GetContext(ctx, &entry, query, entryID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find roster entry: %w", err)
	}
	return &entry, nil
}

// CountAlias reports how many other entries in the roster already claim the alias.
func (r *RosterRepository) CountAlias(ctx context.Context, rosterID, entryID, alias string) (int, error) {
	const query = `SELECT COUNT(*) FROM roster_entries WHERE roster_id = $1 AND alias = $2 AND id <> $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, rosterID, alias, entryID); err != nil {
		return 0, fmt.Errorf("count alias usage: %w", err)
	}
	return count, nil
}

// SetAlias updates (or clears, with nil) the alias for an entry.
func (r *RosterRepository) SetAlias(ctx context.Context, entryID string, alias *string) error {
	const query = `UPDATE roster_entries SET alias = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, entryID, alias); err != nil {
		return fmt.Errorf("set roster entry alias: %w", err)
	}
	return nil
}

// Touch bumps the roster updated_at timestamp.
func (r *RosterRepository) Touch(ctx context.Context, rosterID string, ts time.Time) error {
	const query = `UPDATE rosters SET updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, rosterID, ts); err != nil {
		return fmt.Errorf("touch roster: %w", err)
	}
	return nil
}
