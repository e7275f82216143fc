package trace

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loopwright/koru/internal/logger"
)

// Writer owns the on-disk trace directory and the shared redaction and
// retention policy for every task traced through it.
type Writer struct {
	dir       string
	redactor  *Redactor
	maxTraces int
}

// Option configures a Writer.
type Option func(*Writer)

// WithRedactor overrides the default redaction pattern set.
func WithRedactor(r *Redactor) Option {
	return func(w *Writer) { w.redactor = r }
}

// WithMaxTraces sets how many NDJSON files are retained per directory
// after finalize runs retention. Zero or negative disables retention.
func WithMaxTraces(n int) Option {
	return func(w *Writer) { w.maxTraces = n }
}

// NewWriter creates a Writer rooted at dir (typically
// .kb/traces/incremental).
func NewWriter(dir string, opts ...Option) *Writer {
	w := &Writer{
		dir:       dir,
		redactor:  NewRedactor(),
		maxTraces: 200,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Open begins (or resumes appending to) the trace for one task.
func (w *Writer) Open(taskID string) *Trace {
	return &Trace{
		writer:    w,
		taskID:    taskID,
		startedAt: nowISO(),
	}
}

// Trace is the per-task handle returned by Writer.Open. Every Record
// call synchronously appends one line to disk before returning.
type Trace struct {
	writer    *Writer
	taskID    string
	startedAt string
	seq       int64
	mu        sync.Mutex
}

func (t *Trace) path() string {
	return filepath.Join(t.writer.dir, t.taskID+".ndjson")
}

func (t *Trace) indexPath() string {
	return filepath.Join(t.writer.dir, t.taskID+"-index.json")
}

// Record assigns the next sequence number and timestamp (if absent),
// redacts the payload, and synchronously appends the event to disk.
// Tracing errors never propagate: they are logged and swallowed.
func (t *Trace) Record(evt Event) {
	seq := atomic.AddInt64(&t.seq, 1)
	evt.Seq = seq
	if evt.Timestamp == "" {
		evt.Timestamp = nowISO()
	}
	evt.Payload = t.writer.redactor.Redact(evt.Payload)

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := os.MkdirAll(t.writer.dir, 0o755); err != nil {
		logger.GetLogger().Error().Err(err).Str("dir", t.writer.dir).Msg("trace: failed to create trace directory")
		return
	}

	f, err := os.OpenFile(t.path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.GetLogger().Error().Err(err).Str("taskId", t.taskID).Msg("trace: failed to open trace file")
		return
	}
	defer f.Close()

	line, err := json.Marshal(evt)
	if err != nil {
		logger.GetLogger().Error().Err(err).Str("taskId", t.taskID).Msg("trace: failed to marshal event")
		return
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		logger.GetLogger().Error().Err(err).Str("taskId", t.taskID).Msg("trace: failed to append event")
		return
	}
	if err := f.Sync(); err != nil {
		logger.GetLogger().Warn().Err(err).Str("taskId", t.taskID).Msg("trace: fsync failed")
	}
}

// Finalize reads the NDJSON file back, computes the index, writes it
// to disk, and runs retention on the directory. Index write errors
// leave the NDJSON usable; the read-path always reads the full file.
func (t *Trace) Finalize() (*Index, error) {
	idx, err := t.computeIndex()
	if err != nil {
		logger.GetLogger().Error().Err(err).Str("taskId", t.taskID).Msg("trace: failed to compute index")
		return nil, err
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		logger.GetLogger().Error().Err(err).Str("taskId", t.taskID).Msg("trace: failed to marshal index")
		return idx, nil
	}
	if err := os.WriteFile(t.indexPath(), data, 0o644); err != nil {
		logger.GetLogger().Error().Err(err).Str("taskId", t.taskID).Msg("trace: failed to write index")
		return idx, nil
	}

	if err := t.writer.runRetention(); err != nil {
		logger.GetLogger().Warn().Err(err).Msg("trace: retention pass failed")
	}

	return idx, nil
}

func (t *Trace) computeIndex() (*Index, error) {
	f, err := os.Open(t.path())
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	idx := &Index{
		TaskID:       t.taskID,
		EventsByType: make(map[string]int),
		StartedAt:    t.startedAt,
	}
	iterStats := make(map[int]*IterationSummary)
	var iterOrder []int

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var lastTimestamp string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var evt Event
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			continue
		}
		idx.TotalEvents++
		idx.EventsByType[string(evt.Type)]++
		if evt.Type == EventErrorCaptured {
			idx.ErrorCount++
		}
		if cost, ok := evt.Payload["cost"].(float64); ok {
			idx.TotalCost += cost
		}
		lastTimestamp = evt.Timestamp

		if evt.Iteration != nil {
			it := *evt.Iteration
			s, ok := iterStats[it]
			if !ok {
				s = &IterationSummary{Iteration: it}
				iterStats[it] = s
				iterOrder = append(iterOrder, it)
			}
			s.EventCount++
			if evt.Type == EventLLMCall {
				s.ModelCalls++
			}
			if evt.Type == EventToolExecution {
				s.ToolCalls++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan trace: %w", err)
	}

	sort.Ints(iterOrder)
	for _, it := range iterOrder {
		idx.Iterations = append(idx.Iterations, *iterStats[it])
	}

	idx.FinishedAt = lastTimestamp
	if idx.FinishedAt != "" {
		if start, err1 := time.Parse(time.RFC3339Nano, idx.StartedAt); err1 == nil {
			if end, err2 := time.Parse(time.RFC3339Nano, idx.FinishedAt); err2 == nil {
				idx.DurationMs = end.Sub(start).Milliseconds()
			}
		}
	}

	return idx, nil
}

// runRetention enumerates NDJSON files by mtime (newest first) and
// deletes everything beyond maxTraces, along with matching index
// files. Missing companions are ignored.
func (w *Writer) runRetention() error {
	if w.maxTraces <= 0 {
		return nil
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	type fileInfo struct {
		name    string
		modTime time.Time
	}
	var traces []fileInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".ndjson") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		traces = append(traces, fileInfo{name: e.Name(), modTime: info.ModTime()})
	}

	sort.Slice(traces, func(i, j int) bool {
		return traces[i].modTime.After(traces[j].modTime)
	})

	if len(traces) <= w.maxTraces {
		return nil
	}

	for _, f := range traces[w.maxTraces:] {
		taskID := strings.TrimSuffix(f.name, ".ndjson")
		ndjsonPath := filepath.Join(w.dir, f.name)
		if err := os.Remove(ndjsonPath); err != nil {
			logger.GetLogger().Warn().Err(err).Str("path", ndjsonPath).Msg("trace: retention failed to remove ndjson")
		}
		indexPath := filepath.Join(w.dir, taskID+"-index.json")
		if err := os.Remove(indexPath); err != nil && !os.IsNotExist(err) {
			logger.GetLogger().Warn().Err(err).Str("path", indexPath).Msg("trace: retention failed to remove index")
		}
	}
	return nil
}
