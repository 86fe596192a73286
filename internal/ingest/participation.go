package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/classtrace/classtrace-api/internal/models"
)

// parenthetical matches a display-name suffix such as " (she/her)" which the
// meeting client appends and which must be removed before alias resolution.
var parenthetical = regexp.MustCompile(` \(.*\)`)

// timestampLayouts are tried in order when parsing join/leave columns.
var timestampLayouts = []string{
	"01/02/2006 03:04:05 PM",
	"01/02/2006 15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// StripParenthetical removes a trailing parenthesised suffix from a name.
func StripParenthetical(name string) string {
	return strings.TrimSpace(parenthetical.ReplaceAllString(name, ""))
}

// ReadParticipation parses a participation CSV exported from the meeting
// platform. Columns are positional: name, email, join, leave, duration
// (minutes), guest. The header row is skipped.
func ReadParticipation(r io.Reader) ([]models.AttendanceInterval, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("read participation header: %w", err)
	}

	var intervals []models.AttendanceInterval
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read participation row: %w", err)
		}
		line++
		if len(record) < 5 {
			return nil, fmt.Errorf("participation row %d: expected at least 5 columns, got %d", line, len(record))
		}

		join, err := parseTimestamp(record[2])
		if err != nil {
			return nil, fmt.Errorf("participation row %d: join time: %w", line, err)
		}
		leave, err := parseTimestamp(record[3])
		if err != nil {
			return nil, fmt.Errorf("participation row %d: leave time: %w", line, err)
		}
		duration, err := strconv.ParseFloat(strings.TrimSpace(record[4]), 64)
		if err != nil {
			return nil, fmt.Errorf("participation row %d: duration: %w", line, err)
		}

		interval := models.AttendanceInterval{
			Name:            StripParenthetical(record[0]),
			Join:            join,
			Leave:           leave,
			DurationMinutes: duration,
		}
		if len(record) > 5 {
			interval.Guest = strings.EqualFold(strings.TrimSpace(record[5]), "yes")
		}
		intervals = append(intervals, interval)
	}
	return intervals, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}
