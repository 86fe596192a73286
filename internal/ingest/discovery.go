package ingest

import (
	"fmt"
	"path/filepath"
)

// MeetingFiles holds the resolved absolute paths for one meeting's inputs.
type MeetingFiles struct {
	MeetingDir    string
	RosterFile    string
	Participation string
	ChatFile      string
}

// Discover locates the meeting directory and its data files under baseDir.
// The meeting directory must match *<date>*<course>*, the roster file
// <course>*.csv in baseDir, the participation file participants*.csv and the
// chat file chat.txt inside the meeting directory. Not exactly one match for
// any of them is a configuration error: the run aborts rather than proceeding
// on empty data.
func Discover(baseDir, course, meetingDate string) (*MeetingFiles, error) {
	meetingDir, err := globOne(filepath.Join(baseDir, "*"+meetingDate+"*"+course+"*"),
		fmt.Sprintf("meeting directory for %s on %s in %s", course, meetingDate, baseDir))
	if err != nil {
		return nil, err
	}

	rosterFile, err := globOne(filepath.Join(baseDir, course+"*.csv"),
		fmt.Sprintf("roster file %s*.csv in %s", course, baseDir))
	if err != nil {
		return nil, err
	}

	participation, err := globOne(filepath.Join(meetingDir, "participants*.csv"),
		fmt.Sprintf("participation file in %s", meetingDir))
	if err != nil {
		return nil, err
	}

	chatFile, err := globOne(filepath.Join(meetingDir, "chat.txt"),
		fmt.Sprintf("chat file in %s", meetingDir))
	if err != nil {
		return nil, err
	}

	return &MeetingFiles{
		MeetingDir:    meetingDir,
		RosterFile:    rosterFile,
		Participation: participation,
		ChatFile:      chatFile,
	}, nil
}

func globOne(pattern, what string) (string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return "", fmt.Errorf("glob %s: %w", pattern, err)
	}
	if len(matches) != 1 {
		return "", fmt.Errorf("expected exactly 1 %s, found %d", what, len(matches))
	}
	return matches[0], nil
}
