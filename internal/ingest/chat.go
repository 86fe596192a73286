package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode"

	"github.com/classtrace/classtrace-api/internal/models"
)

// ReadChat parses a chat log into chat events. A line qualifies as a chat
// event only when it contains a space, contains " : " and begins with a
// numeric character; anything else (continuation lines, emoji reactions,
// blank lines) is skipped silently. A "Direct" marker means the message was
// private. meetingDate is the "2006-01-02" calendar date the clock-only chat
// timestamps belong to.
func ReadChat(r io.Reader, meetingDate string) ([]models.ChatEvent, error) {
	var events []models.ChatEvent

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		event, ok := parseChatLine(line, meetingDate)
		if !ok {
			continue
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan chat log: %w", err)
	}
	return events, nil
}

func parseChatLine(line, meetingDate string) (models.ChatEvent, bool) {
	if line == "" || !unicode.IsDigit(rune(line[0])) {
		return models.ChatEvent{}, false
	}
	if !strings.Contains(line, " ") || !strings.Contains(line, " : ") {
		return models.ChatEvent{}, false
	}

	private := strings.Contains(line, "Direct")

	fields := strings.Fields(line)
	at, err := time.Parse("2006-01-02 15:04:05", meetingDate+" "+fields[0])
	if err != nil {
		return models.ChatEvent{}, false
	}

	_, after, found := strings.Cut(line, " From ")
	if !found {
		return models.ChatEvent{}, false
	}
	var name string
	if private {
		name, _, found = strings.Cut(after, " to ")
		if !found {
			return models.ChatEvent{}, false
		}
	} else {
		name, _, _ = strings.Cut(after, ":")
	}
	name = StripParenthetical(strings.TrimSpace(name))
	if name == "" {
		return models.ChatEvent{}, false
	}

	return models.ChatEvent{Name: name, At: at, Private: private}, true
}
