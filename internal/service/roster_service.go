package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/classtrace/classtrace-api/internal/dto"
	"github.com/classtrace/classtrace-api/internal/ingest"
	"github.com/classtrace/classtrace-api/internal/models"
	appErrors "github.com/classtrace/classtrace-api/pkg/errors"
)

type rosterStore interface {
	Create(ctx context.Context, roster *models.Roster, entries []models.RosterEntry) error
	FindByID(ctx context.Context, id string) (*models.Roster, error)
	FindByCourse(ctx context.Context, course string) (*models.Roster, error)
	ListEntries(ctx context.Context, rosterID string) ([]models.RosterEntry, error)
	List(ctx context.Context, page, pageSize int) ([]models.Roster, int, error)
	FindEntry(ctx context.Context, entryID string) (*models.RosterEntry, error)
	CountAlias(ctx context.Context, rosterID, entryID, alias string) (int, error)
	SetAlias(ctx context.Context, entryID string, alias *string) error
	Touch(ctx context.Context, rosterID string, ts time.Time) error
}

// RosterService manages course rosters and alias assignments.
type RosterService struct {
	repo   rosterStore
	cache  *CacheService
	logger *zap.Logger
}

// NewRosterService constructs the roster service.
func NewRosterService(repo rosterStore, cache *CacheService, logger *zap.Logger) *RosterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RosterService{repo: repo, cache: cache, logger: logger}
}

// Create stores a roster from an inline entry list.
func (s *RosterService) Create(ctx context.Context, req dto.CreateRosterRequest) (*models.RosterDetail, error) {
	if req.Course == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course is required")
	}
	if len(req.Entries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one roster entry is required")
	}
	if _, err := s.repo.FindByCourse(ctx, req.Course); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "roster already exists for course")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing roster")
	}

	entries := make([]models.RosterEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		if e.FirstName == "" && e.LastName == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "roster entries require a name")
		}
		entries = append(entries, models.RosterEntry{
			FirstName: e.FirstName,
			LastName:  e.LastName,
			Alias:     e.Alias,
		})
	}

	roster := &models.Roster{Course: req.Course}
	if err := s.repo.Create(ctx, roster, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create roster")
	}
	return &models.RosterDetail{Roster: *roster, Entries: entries}, nil
}

// Import reads a roster CSV stream and stores it for the course.
func (s *RosterService) Import(ctx context.Context, course string, r io.Reader) (*models.RosterDetail, error) {
	if course == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course is required")
	}
	entries, err := ingest.ReadRoster(r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMeetingData.Code, appErrors.ErrMeetingData.Status, "failed to parse roster file")
	}
	req := dto.CreateRosterRequest{Course: course}
	for _, e := range entries {
		req.Entries = append(req.Entries, dto.RosterEntryRequest{FirstName: e.FirstName, LastName: e.LastName, Alias: e.Alias})
	}
	return s.Create(ctx, req)
}

// Get returns a roster with its entries.
func (s *RosterService) Get(ctx context.Context, rosterID string) (*models.RosterDetail, error) {
	roster, err := s.repo.FindByID(ctx, rosterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "roster not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	entries, err := s.repo.ListEntries(ctx, roster.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster entries")
	}
	return &models.RosterDetail{Roster: *roster, Entries: entries}, nil
}

// List returns rosters with pagination metadata.
func (s *RosterService) List(ctx context.Context, page, pageSize int) ([]models.Roster, *models.Pagination, error) {
	rosters, total, err := s.repo.List(ctx, page, pageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rosters")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return rosters, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// SetAlias assigns or clears the alias on a roster entry. Each alias may map
// to at most one student within a roster.
func (s *RosterService) SetAlias(ctx context.Context, rosterID, entryID string, req dto.SetAliasRequest) (*models.RosterEntry, error) {
	entry, err := s.repo.FindEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "roster entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster entry")
	}
	if entry.RosterID != rosterID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "roster entry not found")
	}

	if req.Alias != nil {
		if *req.Alias == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "alias must not be empty; send null to clear")
		}
		taken, err := s.repo.CountAlias(ctx, rosterID, entryID, *req.Alias)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate alias")
		}
		if taken > 0 {
			return nil, appErrors.Clone(appErrors.ErrAliasTaken, "alias is already assigned to another student")
		}
	}

	if err := s.repo.SetAlias(ctx, entryID, req.Alias); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update alias")
	}
	if err := s.repo.Touch(ctx, rosterID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to touch roster", zap.String("roster_id", rosterID), zap.Error(err))
	}
	if s.cache.Enabled() {
		_ = s.cache.Invalidate(ctx, "meeting:result:*")
	}

	entry.Alias = req.Alias
	return entry, nil
}
