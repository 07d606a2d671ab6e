package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailedLogDedup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "failed.json")
	l := NewFailedLog(path)

	e := FailedEntry{Resource: "net", PK: 1, Error: "boom"}
	require.NoError(t, l.Add(e))
	require.NoError(t, l.Add(e))
	require.NoError(t, l.Add(FailedEntry{Resource: "net", PK: 1, Error: "other"}))

	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"resource_tag": "net"`)
}

func TestFailedLogReadsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.json")
	require.NoError(t, NewFailedLog(path).Add(FailedEntry{Resource: "org", PK: 2, Error: "x"}))

	// a second writer sees the first writer's entries
	other := NewFailedLog(path)
	require.NoError(t, other.Add(FailedEntry{Resource: "org", PK: 3, Error: "y"}))

	entries, err := NewFailedLog(path).Entries()
	require.NoError(t, err)
	assert.Equal(t, []FailedEntry{
		{Resource: "org", PK: 2, Error: "x"},
		{Resource: "org", PK: 3, Error: "y"},
	}, entries)
}

func TestFailedLogClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.json")
	l := NewFailedLog(path)
	require.NoError(t, l.Add(FailedEntry{Resource: "ix", PK: 1, Error: "x"}))
	require.NoError(t, l.Clear())

	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFailedLogInMemory(t *testing.T) {
	l := NewFailedLog("")
	assert.Empty(t, l.Path())
	require.NoError(t, l.Add(FailedEntry{Resource: "fac", PK: 4, Error: "x"}))
	require.NoError(t, l.Add(FailedEntry{Resource: "fac", PK: 4, Error: "x"}))

	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFailedLogMissingFile(t *testing.T) {
	l := NewFailedLog(filepath.Join(t.TempDir(), "absent.json"))
	entries, err := l.Entries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
