package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/classtrace/classtrace-api/internal/dto"
	"github.com/classtrace/classtrace-api/internal/engine"
	"github.com/classtrace/classtrace-api/internal/ingest"
	"github.com/classtrace/classtrace-api/internal/models"
	"github.com/classtrace/classtrace-api/pkg/config"
	appErrors "github.com/classtrace/classtrace-api/pkg/errors"
)

type meetingStore interface {
	Upsert(ctx context.Context, meeting *models.Meeting) error
	FindByID(ctx context.Context, id string) (*models.Meeting, error)
	FindByCourseDate(ctx context.Context, course, meetingDate string) (*models.Meeting, error)
	List(ctx context.Context, course string, page, pageSize int) ([]models.Meeting, int, error)
	SaveResult(ctx context.Context, result *models.MeetingResult) error
	GetResult(ctx context.Context, meetingID string) (*models.MeetingResult, error)
}

type meetingRosterStore interface {
	FindByCourse(ctx context.Context, course string) (*models.Roster, error)
	Create(ctx context.Context, roster *models.Roster, entries []models.RosterEntry) error
	ListEntries(ctx context.Context, rosterID string) ([]models.RosterEntry, error)
}

// MeetingService orchestrates meeting reconciliation: it discovers and parses
// the raw data files, runs the engine and persists the result.
type MeetingService struct {
	meetings meetingStore
	rosters  meetingRosterStore
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cfg      config.MeetingsConfig
}

// NewMeetingService constructs the meeting service.
func NewMeetingService(meetings meetingStore, rosters meetingRosterStore, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg config.MeetingsConfig) *MeetingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeetingService{
		meetings: meetings,
		rosters:  rosters,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

func meetingResultCacheKey(meetingID string) string {
	return "meeting:result:" + meetingID
}

// Reconcile runs the full pipeline for one meeting and persists the outcome.
// The roster is taken from the database when present; otherwise it is imported
// from the discovered roster file on first use.
func (s *MeetingService) Reconcile(ctx context.Context, req dto.ReconcileRequest) (*models.MeetingResult, error) {
	scheduledStart, scheduledEnd, err := parseSchedule(req)
	if err != nil {
		return nil, err
	}

	files, err := ingest.Discover(s.cfg.DataDir, req.Course, req.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMeetingData.Code, appErrors.ErrMeetingData.Status, err.Error())
	}

	roster, entries, err := s.loadOrImportRoster(ctx, req.Course, files.RosterFile)
	if err != nil {
		return nil, err
	}

	intervals, err := readParticipationFile(files.Participation)
	if err != nil {
		return nil, err
	}
	chat, err := readChatFile(files.ChatFile, req.Date)
	if err != nil {
		return nil, err
	}

	meeting := &models.Meeting{
		RosterID:       roster.ID,
		Course:         req.Course,
		MeetingDate:    req.Date,
		ScheduledStart: scheduledStart,
		ScheduledEnd:   scheduledEnd,
	}
	if existing, err := s.meetings.FindByCourseDate(ctx, req.Course, req.Date); err == nil {
		meeting.ID = existing.ID
		meeting.CreatedAt = existing.CreatedAt
	}
	if err := s.meetings.Upsert(ctx, meeting); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist meeting")
	}

	reconciler := engine.NewReconciler(s.engineConfig(req), s.logger)
	started := time.Now()
	result, err := reconciler.Reconcile(engine.Input{
		Roster:    entries,
		Intervals: intervals,
		Chat:      chat,
		Meeting:   *meeting,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reconciliation failed")
	}
	result.MeetingID = meeting.ID
	if s.metrics != nil {
		s.metrics.ObserveReconcile(req.Course, time.Since(started), len(result.UnknownNames))
	}

	if err := s.meetings.SaveResult(ctx, result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist meeting result")
	}

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, meetingResultCacheKey(meeting.ID), result, s.cfg.CacheTTL)
	}

	s.logger.Info("meeting reconciled",
		zap.String("meeting_id", meeting.ID),
		zap.String("course", req.Course),
		zap.String("date", req.Date),
		zap.Int("students", len(result.Summaries)),
		zap.Int("periods", len(result.Periods)),
		zap.Int("unknown_names", len(result.UnknownNames)),
	)
	return result, nil
}

// GetResult returns the persisted reconciliation output, consulting the cache first.
func (s *MeetingService) GetResult(ctx context.Context, meetingID string) (*models.MeetingResult, error) {
	var cached models.MeetingResult
	if hit, _ := s.cache.Get(ctx, meetingResultCacheKey(meetingID), &cached); hit {
		return &cached, nil
	}

	result, err := s.meetings.GetResult(ctx, meetingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meeting result")
	}

	if s.cache.Enabled() {
		_ = s.cache.Set(ctx, meetingResultCacheKey(meetingID), result, s.cfg.CacheTTL)
	}
	return result, nil
}

// Get returns meeting metadata.
func (s *MeetingService) Get(ctx context.Context, meetingID string) (*models.Meeting, error) {
	meeting, err := s.meetings.FindByID(ctx, meetingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "meeting not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load meeting")
	}
	return meeting, nil
}

// List returns meetings with pagination metadata.
func (s *MeetingService) List(ctx context.Context, query dto.ListMeetingsQuery) ([]models.Meeting, *models.Pagination, error) {
	meetings, total, err := s.meetings.List(ctx, query.Course, query.Page, query.PageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list meetings")
	}
	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return meetings, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

func (s *MeetingService) loadOrImportRoster(ctx context.Context, course, rosterFile string) (*models.Roster, []models.RosterEntry, error) {
	roster, err := s.rosters.FindByCourse(ctx, course)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
		}

		file, err := os.Open(rosterFile)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrMeetingData.Code, appErrors.ErrMeetingData.Status, "failed to open roster file")
		}
		defer file.Close() //nolint:errcheck

		parsed, err := ingest.ReadRoster(file)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrMeetingData.Code, appErrors.ErrMeetingData.Status, "failed to parse roster file")
		}

		roster = &models.Roster{Course: course}
		if err := s.rosters.Create(ctx, roster, parsed); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to import roster")
		}
		s.logger.Info("roster imported from file", zap.String("course", course), zap.Int("entries", len(parsed)))
	}

	entries, err := s.rosters.ListEntries(ctx, roster.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster entries")
	}
	return roster, entries, nil
}

func (s *MeetingService) engineConfig(req dto.ReconcileRequest) engine.Config {
	cfg := engine.Config{
		GracePeriod:         time.Duration(s.cfg.GraceMinutes) * time.Minute,
		MinDurationFraction: s.cfg.MinDurationFraction,
		MaxUnanswered:       s.cfg.MaxUnanswered,
		BurstThreshold:      s.cfg.BurstThreshold,
		BurstWindow:         s.cfg.BurstWindow,
	}
	if req.GraceMinutes != nil {
		cfg.GracePeriod = time.Duration(*req.GraceMinutes) * time.Minute
	}
	if req.MinDurationFraction != nil {
		cfg.MinDurationFraction = *req.MinDurationFraction
	}
	if req.MaxUnanswered != nil {
		cfg.MaxUnanswered = *req.MaxUnanswered
	}
	if req.BurstThreshold != nil {
		cfg.BurstThreshold = *req.BurstThreshold
	}
	if req.BurstWindowSeconds != nil {
		cfg.BurstWindow = time.Duration(*req.BurstWindowSeconds) * time.Second
	}
	return cfg
}

func parseSchedule(req dto.ReconcileRequest) (time.Time, time.Time, error) {
	if req.Course == "" || req.Date == "" {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "course and date are required")
	}
	day, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}
	start, err := parseClock(day, req.Start)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "start must be formatted as HH:MM")
	}
	end, err := parseClock(day, req.End)
	if err != nil {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end must be formatted as HH:MM")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end must be after start")
	}
	return start, end, nil
}

func parseClock(day time.Time, raw string) (time.Time, error) {
	clock, err := time.Parse("15:04", raw)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, time.UTC), nil
}

func readParticipationFile(path string) ([]models.AttendanceInterval, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMeetingData.Code, appErrors.ErrMeetingData.Status, "failed to open participation file")
	}
	defer file.Close() //nolint:errcheck

	intervals, err := ingest.ReadParticipation(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMeetingData.Code, appErrors.ErrMeetingData.Status, fmt.Sprintf("failed to parse participation file: %v", err))
	}
	return intervals, nil
}

func readChatFile(path, meetingDate string) ([]models.ChatEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMeetingData.Code, appErrors.ErrMeetingData.Status, "failed to open chat file")
	}
	defer file.Close() //nolint:errcheck

	chat, err := ingest.ReadChat(file, meetingDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrMeetingData.Code, appErrors.ErrMeetingData.Status, fmt.Sprintf("failed to parse chat file: %v", err))
	}
	return chat, nil
}
