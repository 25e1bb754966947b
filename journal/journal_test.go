package journal

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cycleReport struct {
	Checked int `json:"checked"`
}

func TestRecordAndReplay(t *testing.T) {
	dir := t.TempDir()

	j, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, j.RecordCycle("discovery", cycleReport{Checked: 7}))
	require.NoError(t, j.RecordFailure("deployer", nil, errors.New("cache unavailable")))
	require.NoError(t, j.Close())

	files := findJournalFiles(dir)
	require.Len(t, files, 1)

	r, err := OpenReader(files[0])
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, EntryCycleCompleted, first.Type)
	assert.Equal(t, "discovery", first.Task)
	assert.Equal(t, int64(1), first.Sequence)
	assert.JSONEq(t, `{"checked":7}`, string(first.Data))

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, EntryCycleFailed, second.Type)
	assert.Equal(t, "cache unavailable", second.Error)
	assert.Equal(t, int64(2), second.Sequence)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCleanupKeepsRecentFiles(t *testing.T) {
	dir := t.TempDir()

	old := filepath.Join(dir, "lfo-20200101-000000.journal")
	require.NoError(t, os.WriteFile(old, []byte("{}\n"), 0o644))
	stale := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))

	j, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, j.RecordCycle("scaling", nil))
	require.NoError(t, j.Close())

	require.NoError(t, Cleanup(dir, 24*time.Hour))

	files := findJournalFiles(dir)
	require.Len(t, files, 1)
	assert.NotEqual(t, old, files[0])
}

func TestCleanupMissingDirIsQuiet(t *testing.T) {
	require.NoError(t, Cleanup(filepath.Join(t.TempDir(), "missing"), time.Hour))
}
