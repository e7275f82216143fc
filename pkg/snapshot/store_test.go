package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestStore_CaptureChangeRoundTrips(t *testing.T) {
	base := t.TempDir()
	s := NewStore(base)

	c, err := s.CaptureChange("sess-1", "agentA", "", "foo.ts", OpWrite, nil, "hello", nil)
	require.NoError(t, err)
	require.NotEmpty(t, c.ChangeID)

	loaded, err := s.loadSnapshot("sess-1", c.ChangeID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, c.ChangeID, loaded.ChangeID)
	assert.Equal(t, "hello", loaded.After)
	assert.Equal(t, c.AfterHash, loaded.AfterHash)
}

func TestStore_RollbackFileRestoresBeforeContent(t *testing.T) {
	base := t.TempDir()
	workdir := t.TempDir()
	s := NewStore(base)

	target := filepath.Join(workdir, "foo.ts")
	require.NoError(t, os.WriteFile(target, []byte("v1"), 0o644))

	_, err := s.CaptureChange("sess-1", "agentA", "", "foo.ts", OpWrite, strPtr("v1"), "v2", nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(target, []byte("v2"), 0o644))

	restored, err := s.RollbackFile("sess-1", "foo.ts", workdir)
	require.NoError(t, err)
	require.NotNil(t, restored)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))
}

func TestStore_RollbackFileDeletesWhenBeforeAbsent(t *testing.T) {
	base := t.TempDir()
	workdir := t.TempDir()
	s := NewStore(base)

	target := filepath.Join(workdir, "new.ts")
	require.NoError(t, os.WriteFile(target, []byte("created"), 0o644))

	_, err := s.CaptureChange("sess-1", "agentA", "", "new.ts", OpWrite, nil, "created", nil)
	require.NoError(t, err)

	_, err = s.RollbackFile("sess-1", "new.ts", workdir)
	require.NoError(t, err)

	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}

func TestStore_RollbackAgent_SkipConflicts_S4(t *testing.T) {
	base := t.TempDir()
	workdir := t.TempDir()
	s := NewStore(base)

	_, err := s.CaptureChange("sess-1", "A", "", "foo.ts", OpWrite, nil, "v1", nil)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = s.CaptureChange("sess-1", "B", "", "foo.ts", OpWrite, strPtr("v1"), "v2", nil)
	require.NoError(t, err)

	result, err := s.RollbackAgent("sess-1", "A", workdir, RollbackOptions{SkipConflicts: true})
	require.NoError(t, err)
	assert.Equal(t, 0, result.RolledBack)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "foo.ts", result.Conflicts[0].FilePath)
	assert.Contains(t, result.Conflicts[0].LaterModifiedBy, "B")
}

func TestStore_RollbackAgent_ForceOverwrite_S4(t *testing.T) {
	base := t.TempDir()
	workdir := t.TempDir()
	s := NewStore(base)

	target := filepath.Join(workdir, "foo.ts")
	require.NoError(t, os.WriteFile(target, []byte("v2"), 0o644))

	_, err := s.CaptureChange("sess-1", "A", "", "foo.ts", OpWrite, nil, "v1", nil)
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = s.CaptureChange("sess-1", "B", "", "foo.ts", OpWrite, strPtr("v1"), "v2", nil)
	require.NoError(t, err)

	result, err := s.RollbackAgent("sess-1", "A", workdir, RollbackOptions{ForceOverwrite: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RolledBack)
	assert.Equal(t, 0, result.Skipped)
	assert.Empty(t, result.Conflicts)

	// A's change had no before content, so undoing it deletes the file.
	_, err = os.Stat(target)
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestStore_RollbackAfter_RemovesNewerEntriesOnly(t *testing.T) {
	base := t.TempDir()
	s := NewStore(base)

	_, err := s.CaptureChange("sess-1", "A", "", "a.ts", OpWrite, nil, "1", nil)
	require.NoError(t, err)
	cutoff := nowISO()
	time.Sleep(2 * time.Millisecond)
	_, err = s.CaptureChange("sess-1", "A", "", "b.ts", OpWrite, nil, "2", nil)
	require.NoError(t, err)

	removed := s.RollbackAfter("sess-1", cutoff)
	assert.Equal(t, 1, removed)

	s.mu.Lock()
	remaining := len(s.inMemory["sess-1"])
	s.mu.Unlock()
	assert.Equal(t, 1, remaining)
}

func TestStore_MissingIndexFallsBackToSnapshotScan(t *testing.T) {
	base := t.TempDir()
	s := NewStore(base)

	_, err := s.CaptureChange("sess-1", "A", "", "a.ts", OpWrite, nil, "1", nil)
	require.NoError(t, err)

	require.NoError(t, os.Remove(s.indexPath("sess-1")))

	idx, err := s.loadIndex("sess-1")
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Len(t, idx.Changes, 1)
}

func TestStore_Cleanup_RemovesOldAndExcessSessions(t *testing.T) {
	base := t.TempDir()
	s := NewStore(base, WithMaxSessions(1), WithMaxAgeDays(30))

	_, err := s.CaptureChange("sess-old", "A", "", "a.ts", OpWrite, nil, "1", nil)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = s.CaptureChange("sess-new", "A", "", "a.ts", OpWrite, nil, "1", nil)
	require.NoError(t, err)

	require.NoError(t, s.Cleanup(0))

	_, err = os.Stat(s.sessionDir("sess-new"))
	assert.NoError(t, err)
	_, err = os.Stat(s.sessionDir("sess-old"))
	assert.True(t, os.IsNotExist(err))
}
