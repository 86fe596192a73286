package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestDiscover(t *testing.T) {
	base := t.TempDir()
	meetingDir := filepath.Join(base, "2021-02-09 Data Science")
	writeFile(t, filepath.Join(base, "Data Science roster.csv"))
	writeFile(t, filepath.Join(meetingDir, "participants_12345.csv"))
	writeFile(t, filepath.Join(meetingDir, "chat.txt"))

	files, err := Discover(base, "Data Science", "2021-02-09")
	require.NoError(t, err)
	assert.Equal(t, meetingDir, files.MeetingDir)
	assert.Equal(t, filepath.Join(base, "Data Science roster.csv"), files.RosterFile)
	assert.Equal(t, filepath.Join(meetingDir, "participants_12345.csv"), files.Participation)
	assert.Equal(t, filepath.Join(meetingDir, "chat.txt"), files.ChatFile)
}

func TestDiscoverMissingMeetingDir(t *testing.T) {
	base := t.TempDir()
	_, err := Discover(base, "Data Science", "2021-02-09")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "meeting directory")
}

func TestDiscoverAmbiguousParticipationFile(t *testing.T) {
	base := t.TempDir()
	meetingDir := filepath.Join(base, "2021-02-09 Data Science")
	writeFile(t, filepath.Join(base, "Data Science roster.csv"))
	writeFile(t, filepath.Join(meetingDir, "participants_1.csv"))
	writeFile(t, filepath.Join(meetingDir, "participants_2.csv"))
	writeFile(t, filepath.Join(meetingDir, "chat.txt"))

	_, err := Discover(base, "Data Science", "2021-02-09")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "found 2")
}
