package trace

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrace_SeqStrictlyIncreasing(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	tr := w.Open("task-1")

	for i := 0; i < 5; i++ {
		tr.Record(Event{Type: EventToolExecution})
	}

	f, err := os.Open(filepath.Join(dir, "task-1.ndjson"))
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines int
	var lastSeq int64
	for scanner.Scan() {
		lines++
		var evt Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &evt))
		assert.Equal(t, lastSeq+1, evt.Seq)
		lastSeq = evt.Seq
	}
	assert.Equal(t, 5, lines)
	assert.EqualValues(t, 5, lastSeq)
}

func TestTrace_FinalizeIndexMatchesLineCount(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	tr := w.Open("task-2")

	iter1 := 1
	tr.Record(Event{Type: EventIterationStart, Iteration: &iter1})
	tr.Record(Event{Type: EventLLMCall, Iteration: &iter1})
	tr.Record(Event{Type: EventToolExecution, Iteration: &iter1})
	tr.Record(Event{Type: EventErrorCaptured, Iteration: &iter1})
	tr.Record(Event{Type: EventIterationEnd, Iteration: &iter1})

	idx, err := tr.Finalize()
	require.NoError(t, err)
	assert.Equal(t, 5, idx.TotalEvents)
	assert.Equal(t, 1, idx.ErrorCount)
	require.Len(t, idx.Iterations, 1)
	assert.Equal(t, 1, idx.Iterations[0].ModelCalls)
	assert.Equal(t, 1, idx.Iterations[0].ToolCalls)

	_, err = os.Stat(filepath.Join(dir, "task-2-index.json"))
	assert.NoError(t, err)
}

func TestWriter_RetentionKeepsNewestAndPrunesIndex(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, WithMaxTraces(1))

	older := w.Open("task-old")
	older.Record(Event{Type: EventIterationStart})
	_, err := older.Finalize()
	require.NoError(t, err)

	newer := w.Open("task-new")
	newer.Record(Event{Type: EventIterationStart})
	_, err = newer.Finalize()
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "task-new.ndjson"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "task-old.ndjson"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "task-old-index.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestRedactor_RedactsSecretsAndPaths(t *testing.T) {
	r := NewRedactor()
	out := r.Redact(map[string]any{
		"command": "curl -H 'Authorization: Bearer abcDEF123-._~+/=' https://api.example.com",
		"path":    "/Users/alice/project/file.go",
		"nested": map[string]any{
			"apiKey": "api_key: sk-1234567890ABCDEFGHIJ",
		},
	})

	assert.Contains(t, out["command"], "***REDACTED***")
	assert.Equal(t, "~/alice/project/file.go", out["path"])
	nested := out["nested"].(map[string]any)
	assert.Contains(t, nested["apiKey"], "***REDACTED***")
}

func TestRedactor_LeavesNonStringLeavesUntouched(t *testing.T) {
	r := NewRedactor()
	// Non-string, non-map, non-slice leaves pass through untouched.
	out := r.Redact(map[string]any{"count": 42})
	assert.Equal(t, 42, out["count"])
}
