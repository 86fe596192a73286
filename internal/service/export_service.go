package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/classtrace/classtrace-api/internal/engine"
	"github.com/classtrace/classtrace-api/internal/ingest"
	"github.com/classtrace/classtrace-api/internal/models"
	"github.com/classtrace/classtrace-api/pkg/config"
	"github.com/classtrace/classtrace-api/pkg/export"
	"github.com/classtrace/classtrace-api/pkg/storage"
)

// ExportResult describes a rendered report file.
type ExportResult struct {
	URL       string
	Path      string
	ExpiresAt time.Time
}

// ExportService renders meeting results into downloadable files: the summary
// table as CSV and the per-student attendance timeline as PDF.
type ExportService struct {
	meetings   meetingStore
	rosters    meetingRosterStore
	store      *storage.LocalStorage
	signer     *storage.SignedURLSigner
	csv        *export.CSVExporter
	timeline   *export.TimelineExporter
	meetingCfg config.MeetingsConfig
	apiPrefix  string
	logger     *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(meetings meetingStore, rosters meetingRosterStore, store *storage.LocalStorage, signer *storage.SignedURLSigner, meetingCfg config.MeetingsConfig, apiPrefix string, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		meetings:   meetings,
		rosters:    rosters,
		store:      store,
		signer:     signer,
		csv:        export.NewCSVExporter(),
		timeline:   export.NewTimelineExporter(),
		meetingCfg: meetingCfg,
		apiPrefix:  apiPrefix,
		logger:     logger,
	}
}

// Generate renders the report described by the job and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	meeting, err := s.meetings.FindByID(ctx, job.Params.MeetingID)
	if err != nil {
		return nil, fmt.Errorf("load meeting %s: %w", job.Params.MeetingID, err)
	}
	result, err := s.meetings.GetResult(ctx, meeting.ID)
	if err != nil {
		return nil, fmt.Errorf("load meeting result %s: %w", meeting.ID, err)
	}

	var payload []byte
	switch job.Type {
	case models.ReportTypeSummary:
		payload, err = s.renderSummary(result)
	case models.ReportTypeTimeline:
		payload, err = s.renderTimeline(ctx, meeting, result)
	default:
		err = fmt.Errorf("unsupported report type %s", job.Type)
	}
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("%s/%s-%s-%s.%s", meeting.Course, meeting.Course, meeting.MeetingDate, job.Type, job.Params.Format)
	relPath, err := s.store.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		URL:       s.apiPrefix + "/reports/download/" + token,
		Path:      relPath,
		ExpiresAt: expiresAt,
	}, nil
}

// ParseToken validates a signed download token.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle for a stored report file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.store.Open(relPath)
}

// Delete removes a stored report file.
func (s *ExportService) Delete(relPath string) error {
	return s.store.Delete(relPath)
}

// Cleanup removes stored report files older than the TTL.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	return s.store.CleanupOlderThan(ttl)
}

func (s *ExportService) renderSummary(result *models.MeetingResult) ([]byte, error) {
	data := export.Dataset{
		Headers: []string{"student_id", "name", "duration_minutes", "duration_fraction", "joined", "first_join", "is_late", "num_unanswered", "fraction_unanswered", "is_absent"},
	}
	for _, row := range result.Summaries {
		firstJoin := ""
		if row.FirstJoin != nil {
			firstJoin = row.FirstJoin.Format(time.RFC3339)
		}
		data.Rows = append(data.Rows, []string{
			strconv.Itoa(row.StudentID),
			row.Name,
			strconv.FormatFloat(row.DurationMinutes, 'f', 2, 64),
			strconv.FormatFloat(row.DurationFraction, 'f', 4, 64),
			strconv.FormatBool(row.Joined),
			firstJoin,
			strconv.FormatBool(row.IsLate),
			strconv.Itoa(row.NumUnanswered),
			strconv.FormatFloat(row.FractionUnanswered, 'f', 4, 64),
			strconv.FormatBool(row.IsAbsent),
		})
	}
	return s.csv.Render(data)
}

// renderTimeline rebuilds per-student presence spans from the raw meeting
// files. The persisted result carries only the aggregated summary table, so
// the interval-level detail is re-read from disk.
func (s *ExportService) renderTimeline(ctx context.Context, meeting *models.Meeting, result *models.MeetingResult) ([]byte, error) {
	files, err := ingest.Discover(s.meetingCfg.DataDir, meeting.Course, meeting.MeetingDate)
	if err != nil {
		return nil, fmt.Errorf("discover meeting files: %w", err)
	}
	intervals, err := readParticipationFile(files.Participation)
	if err != nil {
		return nil, err
	}
	chat, err := readChatFile(files.ChatFile, meeting.MeetingDate)
	if err != nil {
		return nil, err
	}

	entries, err := s.rosters.ListEntries(ctx, meeting.RosterID)
	if err != nil {
		return nil, fmt.Errorf("load roster entries: %w", err)
	}
	resolver := engine.NewResolver(entries)

	spans := make(map[string][]export.TimelineSpan)
	for _, iv := range intervals {
		name := resolver.Resolve(iv.Name)
		if !resolver.Known(name) {
			continue
		}
		spans[name] = append(spans[name], export.TimelineSpan{Start: iv.Join, End: iv.Leave})
	}

	for i := range chat {
		chat[i].Name = resolver.Resolve(chat[i].Name)
	}
	joined := make([]string, 0, len(spans))
	for _, name := range resolver.Names() {
		if _, ok := spans[name]; ok {
			joined = append(joined, name)
		}
	}
	marks := make(map[string][]time.Time)
	for _, period := range result.Periods {
		for _, name := range engine.Unanswered(chat, period, joined, meeting.ScheduledEnd) {
			marks[name] = append(marks[name], period.Start)
		}
	}

	absent := make(map[string]bool, len(result.Summaries))
	for _, row := range result.Summaries {
		absent[row.Name] = row.IsAbsent
	}

	lanes := make([]export.TimelineLane, 0, resolver.Len())
	for _, name := range resolver.Names() {
		lanes = append(lanes, export.TimelineLane{
			Name:   name,
			Absent: absent[name],
			Spans:  spans[name],
			Marks:  marks[name],
		})
	}

	bands := make([]export.TimelineBand, 0, len(result.Periods))
	for _, period := range result.Periods {
		end := meeting.ScheduledEnd
		if period.End != nil {
			end = *period.End
		}
		bands = append(bands, export.TimelineBand{Start: period.Start, End: end})
	}

	grace := time.Duration(s.meetingCfg.GraceMinutes) * time.Minute
	return s.timeline.Render(export.TimelineInput{
		Title:         fmt.Sprintf("%s %s", meeting.Course, meeting.MeetingDate),
		Start:         meeting.ScheduledStart,
		End:           meeting.ScheduledEnd,
		GraceDeadline: meeting.ScheduledStart.Add(grace),
		Lanes:         lanes,
		Bands:         bands,
	})
}
