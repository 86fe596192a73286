package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/classtrace/classtrace-api/internal/dto"
	"github.com/classtrace/classtrace-api/internal/models"
	"github.com/classtrace/classtrace-api/internal/repository"
	appErrors "github.com/classtrace/classtrace-api/pkg/errors"
	"github.com/classtrace/classtrace-api/pkg/jobs"
	"github.com/classtrace/classtrace-api/pkg/storage"
)

type reportRepoStub struct {
	mu   sync.Mutex
	jobs map[string]*models.ReportJob
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{jobs: map[string]*models.ReportJob{}}
}

func (s *reportRepoStub) Create(ctx context.Context, job *models.ReportJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.CreatedAt = time.Now().UTC()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *reportRepoStub) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (s *reportRepoStub) Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (s *reportRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReportJob
	for _, job := range s.jobs {
		if job.Status == models.ReportStatusQueued {
			out = append(out, *job)
		}
	}
	return out, nil
}

func (s *reportRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ReportJob
	for _, job := range s.jobs {
		if job.Status == models.ReportStatusFinished && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			out = append(out, *job)
		}
	}
	return out, nil
}

type queueStub struct {
	mu      sync.Mutex
	jobs    []jobs.Job
	failAll bool
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failAll {
		return errors.New("queue closed")
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type exportStub struct {
	result *ExportResult
	err    error
	calls  int
}

func (e *exportStub) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func seedMeetingWithResult(t *testing.T, meetings *meetingStoreStub) *models.Meeting {
	t.Helper()
	start := time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)
	meeting := &models.Meeting{
		Course:         "cs101",
		MeetingDate:    "2026-03-09",
		ScheduledStart: start,
		ScheduledEnd:   start.Add(110 * time.Minute),
	}
	require.NoError(t, meetings.Upsert(context.Background(), meeting))

	firstJoin := start.Add(-2 * time.Minute)
	require.NoError(t, meetings.SaveResult(context.Background(), &models.MeetingResult{
		MeetingID: meeting.ID,
		Summaries: []models.StudentSummary{
			{StudentID: 0, Name: "Bob Jones", DurationMinutes: 40, DurationFraction: 0.36, Joined: true, IsLate: true, IsAbsent: true},
			{StudentID: 1, Name: "Alice Nguyen", DurationMinutes: 112, DurationFraction: 1.0, Joined: true, FirstJoin: &firstJoin},
		},
		UnknownNames: []string{"Lecture Bot"},
		GeneratedAt:  time.Now().UTC(),
	}))
	return meeting
}

func newReportServiceForTest(t *testing.T) (*ReportService, *reportRepoStub, *queueStub, *models.Meeting) {
	t.Helper()
	repo := newReportRepoStub()
	queue := &queueStub{}
	meetings := newMeetingStoreStub()
	meeting := seedMeetingWithResult(t, meetings)
	svc := NewReportService(repo, meetings, queue, nil, zap.NewNop(), ReportServiceConfig{})
	return svc, repo, queue, meeting
}

func TestReportServiceCreateJob(t *testing.T) {
	svc, repo, queue, meeting := newReportServiceForTest(t)

	resp, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:      models.ReportTypeSummary,
		MeetingID: meeting.ID,
		Format:    models.ReportFormatCSV,
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, resp.ID, queue.jobs[0].ID)

	stored, err := repo.GetByID(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", stored.CreatedBy)
	assert.Equal(t, meeting.ID, stored.Params.MeetingID)
	assert.Equal(t, "cs101", stored.Params.Course)
}

func TestReportServiceCreateJobValidation(t *testing.T) {
	svc, _, _, meeting := newReportServiceForTest(t)

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:   models.ReportTypeSummary,
		Format: models.ReportFormatCSV,
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	// Summary reports only render as CSV and timelines only as PDF.
	_, err = svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:      models.ReportTypeSummary,
		MeetingID: meeting.ID,
		Format:    models.ReportFormatPDF,
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:      models.ReportTypeTimeline,
		MeetingID: "missing",
		Format:    models.ReportFormatPDF,
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportServiceCreateJobEnqueueFailure(t *testing.T) {
	svc, repo, queue, meeting := newReportServiceForTest(t)
	queue.failAll = true

	_, err := svc.CreateJob(context.Background(), dto.ReportRequest{
		Type:      models.ReportTypeSummary,
		MeetingID: meeting.ID,
		Format:    models.ReportFormatCSV,
	}, "user-1")
	require.Error(t, err)

	// The persisted job is marked failed rather than left queued forever.
	jobsList, err := repo.ListQueued(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, jobsList)
}

func TestReportServiceGetStatusOwnership(t *testing.T) {
	svc, repo, _, _ := newReportServiceForTest(t)
	job := &models.ReportJob{
		Type:      models.ReportTypeSummary,
		Status:    models.ReportStatusProcessing,
		Progress:  10,
		CreatedBy: "owner",
	}
	require.NoError(t, repo.Create(context.Background(), job))

	resp, err := svc.GetStatus(context.Background(), job.ID, "owner", models.RoleInstructor)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusProcessing, resp.Status)

	_, err = svc.GetStatus(context.Background(), job.ID, "someone-else", models.RoleInstructor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Admins can read any job.
	_, err = svc.GetStatus(context.Background(), job.ID, "someone-else", models.RoleAdmin)
	require.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), "missing", "owner", models.RoleAdmin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func newExportServiceForTest(t *testing.T, meetings *meetingStoreStub, rosters *rosterStoreStub, dataDir string) *ExportService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	return NewExportService(meetings, rosters, store, signer, meetingCfgForTest(dataDir), "/api/v1", zap.NewNop())
}

func TestExportServiceGenerateSummary(t *testing.T) {
	meetings := newMeetingStoreStub()
	meeting := seedMeetingWithResult(t, meetings)
	exporter := newExportServiceForTest(t, meetings, &rosterStoreStub{}, t.TempDir())

	job := &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeSummary,
		Params: models.ReportJobParams{MeetingID: meeting.ID, Course: "cs101", Date: "2026-03-09", Format: models.ReportFormatCSV},
	}
	result, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/reports/download/"))

	file, err := exporter.Open(result.Path)
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "student_id,name,"))
	assert.Contains(t, lines[1], "Bob Jones")
	assert.Contains(t, lines[2], "Alice Nguyen")

	jobID, relPath, _, err := exporter.ParseToken(strings.TrimPrefix(result.URL, "/api/v1/reports/download/"), false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.Path, relPath)
}

func TestExportServiceGenerateTimeline(t *testing.T) {
	dataDir := writeMeetingFixture(t)
	meetings := newMeetingStoreStub()
	rosters := &rosterStoreStub{}
	svc := NewMeetingService(meetings, rosters, nil, nil, zap.NewNop(), meetingCfgForTest(dataDir))

	reconciled, err := svc.Reconcile(context.Background(), dto.ReconcileRequest{
		Course: "cs101",
		Date:   "2026-03-09",
		Start:  "14:00",
		End:    "15:50",
	})
	require.NoError(t, err)

	exporter := newExportServiceForTest(t, meetings, rosters, dataDir)
	job := &models.ReportJob{
		ID:     "job-2",
		Type:   models.ReportTypeTimeline,
		Params: models.ReportJobParams{MeetingID: reconciled.MeetingID, Course: "cs101", Date: "2026-03-09", Format: models.ReportFormatPDF},
	}
	result, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)

	file, err := exporter.Open(result.Path)
	require.NoError(t, err)
	defer file.Close()
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF")))
}

func TestReportServiceResolveDownload(t *testing.T) {
	repo := newReportRepoStub()
	queue := &queueStub{}
	meetings := newMeetingStoreStub()
	meeting := seedMeetingWithResult(t, meetings)
	exporter := newExportServiceForTest(t, meetings, &rosterStoreStub{}, t.TempDir())
	svc := NewReportService(repo, meetings, queue, exporter, zap.NewNop(), ReportServiceConfig{})

	job := &models.ReportJob{
		Type:   models.ReportTypeSummary,
		Params: models.ReportJobParams{MeetingID: meeting.ID, Course: "cs101", Date: "2026-03-09", Format: models.ReportFormatCSV},
	}
	require.NoError(t, repo.Create(context.Background(), job))
	rendered, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)

	finished := models.ReportStatusFinished
	progress := 100
	now := time.Now().UTC()
	require.NoError(t, repo.Update(context.Background(), job.ID, repository.UpdateReportJobParams{
		Status:     &finished,
		Progress:   &progress,
		ResultURL:  &rendered.URL,
		FinishedAt: &now,
	}))

	token := strings.TrimPrefix(rendered.URL, "/api/v1/reports/download/")
	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, models.ReportFormatCSV, download.Format)
	assert.Equal(t, "cs101-2026-03-09-summary.csv", download.Filename)

	_, err = svc.ResolveDownload(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReportWorkerHandle(t *testing.T) {
	repo := newReportRepoStub()
	job := &models.ReportJob{Type: models.ReportTypeSummary, Status: models.ReportStatusQueued}
	require.NoError(t, repo.Create(context.Background(), job))

	exporter := &exportStub{result: &ExportResult{URL: "/api/v1/reports/download/tok", Path: "cs101/report.csv"}}
	worker := NewReportWorker(repo, exporter, 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 1}))

	stored, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, stored.Status)
	assert.Equal(t, 100, stored.Progress)
	require.NotNil(t, stored.ResultURL)
	assert.Equal(t, "/api/v1/reports/download/tok", *stored.ResultURL)
	require.NotNil(t, stored.FinishedAt)
}

func TestReportWorkerHandleRetriesThenFails(t *testing.T) {
	repo := newReportRepoStub()
	job := &models.ReportJob{Type: models.ReportTypeSummary, Status: models.ReportStatusQueued}
	require.NoError(t, repo.Create(context.Background(), job))

	exporter := &exportStub{err: errors.New("render failed")}
	worker := NewReportWorker(repo, exporter, 3, zap.NewNop())

	// Attempts below the retry cap requeue the job.
	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 1}))
	stored, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, "render failed", *stored.ErrorMessage)

	// The final attempt marks it failed.
	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: job.ID, Attempt: 3}))
	stored, err = repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFailed, stored.Status)
	require.NotNil(t, stored.FinishedAt)
	assert.Equal(t, 2, exporter.calls)
}

func TestReportServiceRecoverPendingJobs(t *testing.T) {
	svc, repo, queue, _ := newReportServiceForTest(t)
	queued := &models.ReportJob{Type: models.ReportTypeSummary, Status: models.ReportStatusQueued}
	finished := &models.ReportJob{Type: models.ReportTypeSummary, Status: models.ReportStatusFinished}
	require.NoError(t, repo.Create(context.Background(), queued))
	require.NoError(t, repo.Create(context.Background(), finished))

	svc.RecoverPendingJobs(context.Background())

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, queued.ID, queue.jobs[0].ID)
}
