// Package ingest parses the three meeting data sources (roster CSV,
// participation CSV, chat log) into the engine's input types and locates
// them on disk. Malformed chat lines are skipped silently; missing or
// ambiguous files are configuration errors and fail the run.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/classtrace/classtrace-api/internal/models"
)

// ReadRoster parses a roster CSV with "First name", "Last name" and "alias"
// columns. An empty alias cell means the student has no alias.
func ReadRoster(r io.Reader) ([]models.RosterEntry, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read roster header: %w", err)
	}
	cols, err := rosterColumns(header)
	if err != nil {
		return nil, err
	}

	var entries []models.RosterEntry
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read roster row: %w", err)
		}
		entry := models.RosterEntry{
			FirstName: strings.TrimSpace(record[cols.first]),
			LastName:  strings.TrimSpace(record[cols.last]),
		}
		if entry.FirstName == "" && entry.LastName == "" {
			continue
		}
		if cols.alias >= 0 && cols.alias < len(record) {
			if alias := strings.TrimSpace(record[cols.alias]); alias != "" {
				entry.Alias = &alias
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

type rosterCols struct {
	first, last, alias int
}

func rosterColumns(header []string) (rosterCols, error) {
	cols := rosterCols{first: -1, last: -1, alias: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "first name":
			cols.first = i
		case "last name":
			cols.last = i
		case "alias":
			cols.alias = i
		}
	}
	if cols.first < 0 || cols.last < 0 {
		return cols, fmt.Errorf("roster file missing First name/Last name columns (got %v)", header)
	}
	return cols, nil
}
