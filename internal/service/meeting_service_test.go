package service

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classtrace/classtrace-api/internal/dto"
	"github.com/classtrace/classtrace-api/internal/models"
	"github.com/classtrace/classtrace-api/pkg/config"
	appErrors "github.com/classtrace/classtrace-api/pkg/errors"
)

type meetingStoreStub struct {
	meetings map[string]*models.Meeting
	byKey    map[string]*models.Meeting
	results  map[string]*models.MeetingResult
}

func newMeetingStoreStub() *meetingStoreStub {
	return &meetingStoreStub{
		meetings: map[string]*models.Meeting{},
		byKey:    map[string]*models.Meeting{},
		results:  map[string]*models.MeetingResult{},
	}
}

func (s *meetingStoreStub) Upsert(ctx context.Context, meeting *models.Meeting) error {
	if meeting.ID == "" {
		meeting.ID = uuid.NewString()
	}
	copied := *meeting
	s.meetings[meeting.ID] = &copied
	s.byKey[meeting.Course+"|"+meeting.MeetingDate] = &copied
	return nil
}

func (s *meetingStoreStub) FindByID(ctx context.Context, id string) (*models.Meeting, error) {
	meeting, ok := s.meetings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return meeting, nil
}

func (s *meetingStoreStub) FindByCourseDate(ctx context.Context, course, meetingDate string) (*models.Meeting, error) {
	meeting, ok := s.byKey[course+"|"+meetingDate]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return meeting, nil
}

func (s *meetingStoreStub) List(ctx context.Context, course string, page, pageSize int) ([]models.Meeting, int, error) {
	var meetings []models.Meeting
	for _, meeting := range s.meetings {
		if course == "" || meeting.Course == course {
			meetings = append(meetings, *meeting)
		}
	}
	return meetings, len(meetings), nil
}

func (s *meetingStoreStub) SaveResult(ctx context.Context, result *models.MeetingResult) error {
	copied := *result
	s.results[result.MeetingID] = &copied
	return nil
}

func (s *meetingStoreStub) GetResult(ctx context.Context, meetingID string) (*models.MeetingResult, error) {
	result, ok := s.results[meetingID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return result, nil
}

type rosterStoreStub struct {
	roster  *models.Roster
	entries []models.RosterEntry
	created bool
}

func (s *rosterStoreStub) FindByCourse(ctx context.Context, course string) (*models.Roster, error) {
	if s.roster == nil {
		return nil, sql.ErrNoRows
	}
	return s.roster, nil
}

func (s *rosterStoreStub) Create(ctx context.Context, roster *models.Roster, entries []models.RosterEntry) error {
	roster.ID = "roster-1"
	s.roster = roster
	s.entries = entries
	s.created = true
	return nil
}

func (s *rosterStoreStub) ListEntries(ctx context.Context, rosterID string) ([]models.RosterEntry, error) {
	return s.entries, nil
}

func writeFixtureFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// writeMeetingFixture lays out a data directory the discovery globs resolve:
// a roster CSV in the base dir plus a meeting directory with participation
// and chat files.
func writeMeetingFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	writeFixtureFile(t, filepath.Join(dir, "cs101.csv"),
		"First name,Last name,alias\n"+
			"Alice,Nguyen,\n"+
			"Bob,Jones,Bobby J\n")

	meetingDir := filepath.Join(dir, "2026-03-09 cs101")
	writeFixtureFile(t, filepath.Join(meetingDir, "participants.csv"),
		"Name (Original Name),Email,Join Time,Leave Time,Duration (Minutes),Guest\n"+
			"Alice Nguyen,alice@example.edu,03/09/2026 01:58:00 PM,03/09/2026 03:50:00 PM,112,No\n"+
			"Bobby J,bob@example.edu,03/09/2026 02:20:00 PM,03/09/2026 03:00:00 PM,40,No\n"+
			"Lecture Bot,,03/09/2026 02:00:00 PM,03/09/2026 03:50:00 PM,110,Yes\n")

	writeFixtureFile(t, filepath.Join(meetingDir, "chat.txt"),
		"14:05:00 From Bobby J : hello everyone\n"+
			"14:30:05 From Alice Nguyen to Instructor (Direct Message) : 42\n"+
			"this is a continuation line without a timestamp\n")

	return dir
}

func meetingCfgForTest(dataDir string) config.MeetingsConfig {
	return config.MeetingsConfig{
		DataDir:             dataDir,
		GraceMinutes:        2,
		MinDurationFraction: 0.9,
		MaxUnanswered:       1,
		BurstThreshold:      10,
		BurstWindow:         45 * time.Second,
	}
}

func newMeetingServiceForTest(t *testing.T) (*MeetingService, *meetingStoreStub, *rosterStoreStub) {
	t.Helper()
	dir := writeMeetingFixture(t)
	meetings := newMeetingStoreStub()
	rosters := &rosterStoreStub{}
	svc := NewMeetingService(meetings, rosters, nil, nil, zap.NewNop(), meetingCfgForTest(dir))
	return svc, meetings, rosters
}

func TestMeetingServiceReconcile(t *testing.T) {
	svc, meetings, rosters := newMeetingServiceForTest(t)

	result, err := svc.Reconcile(context.Background(), dto.ReconcileRequest{
		Course: "cs101",
		Date:   "2026-03-09",
		Start:  "14:00",
		End:    "15:50",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.MeetingID)

	require.Len(t, result.Summaries, 2)
	byName := map[string]models.StudentSummary{}
	for _, row := range result.Summaries {
		byName[row.Name] = row
	}

	alice := byName["Alice Nguyen"]
	assert.True(t, alice.Joined)
	assert.False(t, alice.IsLate)
	assert.False(t, alice.IsAbsent)
	assert.InDelta(t, 112.0, alice.DurationMinutes, 0.01)

	bob := byName["Bob Jones"]
	assert.True(t, bob.Joined)
	assert.True(t, bob.IsLate)
	assert.True(t, bob.IsAbsent)

	assert.Equal(t, []string{"Lecture Bot"}, result.UnknownNames)

	// The roster was imported from the discovered file and the result persisted.
	assert.True(t, rosters.created)
	assert.Contains(t, meetings.results, result.MeetingID)
}

func TestMeetingServiceReconcileUsesStoredRoster(t *testing.T) {
	svc, _, rosters := newMeetingServiceForTest(t)
	alias := "Bobby J"
	rosters.roster = &models.Roster{ID: "roster-9", Course: "cs101"}
	rosters.entries = []models.RosterEntry{
		{RosterID: "roster-9", FirstName: "Alice", LastName: "Nguyen"},
		{RosterID: "roster-9", FirstName: "Bob", LastName: "Jones", Alias: &alias},
	}

	result, err := svc.Reconcile(context.Background(), dto.ReconcileRequest{
		Course: "cs101",
		Date:   "2026-03-09",
		Start:  "14:00",
		End:    "15:50",
	})
	require.NoError(t, err)
	assert.False(t, rosters.created)
	require.Len(t, result.Summaries, 2)
}

func TestMeetingServiceReconcileValidation(t *testing.T) {
	svc, _, _ := newMeetingServiceForTest(t)

	cases := []dto.ReconcileRequest{
		{Date: "2026-03-09", Start: "14:00", End: "15:50"},
		{Course: "cs101", Start: "14:00", End: "15:50"},
		{Course: "cs101", Date: "03/09/2026", Start: "14:00", End: "15:50"},
		{Course: "cs101", Date: "2026-03-09", Start: "2pm", End: "15:50"},
		{Course: "cs101", Date: "2026-03-09", Start: "15:50", End: "14:00"},
	}
	for _, req := range cases {
		_, err := svc.Reconcile(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestMeetingServiceReconcileMissingFiles(t *testing.T) {
	meetings := newMeetingStoreStub()
	rosters := &rosterStoreStub{}
	svc := NewMeetingService(meetings, rosters, nil, nil, zap.NewNop(), meetingCfgForTest(t.TempDir()))

	_, err := svc.Reconcile(context.Background(), dto.ReconcileRequest{
		Course: "cs101",
		Date:   "2026-03-09",
		Start:  "14:00",
		End:    "15:50",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMeetingData.Code, appErrors.FromError(err).Code)
}

func TestMeetingServiceGetResultNotFound(t *testing.T) {
	svc, _, _ := newMeetingServiceForTest(t)
	_, err := svc.GetResult(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestMeetingServiceReconcileIsRepeatable(t *testing.T) {
	svc, meetings, _ := newMeetingServiceForTest(t)
	req := dto.ReconcileRequest{Course: "cs101", Date: "2026-03-09", Start: "14:00", End: "15:50"}

	first, err := svc.Reconcile(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Reconcile(context.Background(), req)
	require.NoError(t, err)

	// Re-running the same meeting reuses the meeting row and its summaries match.
	assert.Equal(t, first.MeetingID, second.MeetingID)
	assert.Equal(t, first.Summaries, second.Summaries)
	assert.Len(t, meetings.meetings, 1)
}
