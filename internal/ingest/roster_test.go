package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRoster(t *testing.T) {
	data := `First name,Last name,alias
Steven,Smith,Steve Smith
Alice,Nguyen,
Bob,Jones,
`
	entries, err := ReadRoster(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "Steven Smith", entries[0].FullName())
	require.NotNil(t, entries[0].Alias)
	assert.Equal(t, "Steve Smith", *entries[0].Alias)

	assert.Equal(t, "Alice Nguyen", entries[1].FullName())
	assert.Nil(t, entries[1].Alias)
}

func TestReadRosterColumnOrderIndependent(t *testing.T) {
	data := `alias,Last name,First name
,Nguyen,Alice
`
	entries, err := ReadRoster(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Alice Nguyen", entries[0].FullName())
}

func TestReadRosterMissingColumns(t *testing.T) {
	data := `name,email
Alice Nguyen,alice@example.edu
`
	_, err := ReadRoster(strings.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "First name")
}

func TestReadRosterSkipsBlankRows(t *testing.T) {
	data := `First name,Last name,alias
Alice,Nguyen,
,,
`
	entries, err := ReadRoster(strings.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
