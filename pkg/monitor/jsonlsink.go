package monitor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	// EventKPIRunCompleted fires once per finished Engine run.
	EventKPIRunCompleted EventType = "agent.kpi.run_completed"
	// EventKPIQualityRegression fires when a run's quality verdict is
	// worse than the previous run's for the same agent.
	EventKPIQualityRegression EventType = "agent.kpi.quality_regression"
)

// JSONLSink subscribes to a Monitor and appends every event it
// receives to a day-bucketed, append-only NDJSON file for analytics
// rather than per-run audit data. Unlike pkg/trace.Writer, which
// opens and fsyncs its file on every record, it keeps the day's file
// open and does not fsync.
type JSONLSink struct {
	mu      sync.Mutex
	dir     string
	file    *os.File
	day     string
	monitor Monitor
	ch      <-chan Event
	done    chan struct{}
}

// NewJSONLSink creates a sink rooted at baseDir (typically
// ".kb/analytics/buffer") and subscribes it to monitor. Call Close to
// unsubscribe and flush the open file.
func NewJSONLSink(monitor Monitor, baseDir string) (*JSONLSink, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create analytics buffer dir: %w", err)
	}

	s := &JSONLSink{
		dir:     baseDir,
		monitor: monitor,
		ch:      monitor.Subscribe(),
		done:    make(chan struct{}),
	}
	go s.run()
	return s, nil
}

func (s *JSONLSink) run() {
	for {
		select {
		case event, ok := <-s.ch:
			if !ok {
				return
			}
			_ = s.write(event)
		case <-s.done:
			return
		}
	}
}

func (s *JSONLSink) write(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day := event.Timestamp.UTC().Format("20060102")
	if s.file == nil || day != s.day {
		if s.file != nil {
			_ = s.file.Close()
		}
		path := filepath.Join(s.dir, fmt.Sprintf("events-%s.jsonl", day))
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		s.file = f
		s.day = day
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	_, err = s.file.Write(raw)
	return err
}

// Close unsubscribes from the monitor and closes the open file.
func (s *JSONLSink) Close() error {
	close(s.done)
	s.monitor.Unsubscribe(s.ch)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// RunCompletedEvent builds the agent.kpi.run_completed payload.
func RunCompletedEvent(agentID, reasonCode, outcome string, iterations, totalTokens int, qualityScore float64) Event {
	return NewEvent(EventKPIRunCompleted).
		WithData("agent_id", agentID).
		WithData("reason_code", reasonCode).
		WithData("outcome", outcome).
		WithData("iterations", iterations).
		WithData("total_tokens", totalTokens).
		WithData("quality_score", qualityScore)
}

// QualityRegressionEvent builds the agent.kpi.quality_regression
// payload for a run whose score dropped below the agent's previous
// run.
func QualityRegressionEvent(agentID string, previousScore, currentScore float64) Event {
	return NewEvent(EventKPIQualityRegression).
		WithData("agent_id", agentID).
		WithData("previous_score", previousScore).
		WithData("current_score", currentScore)
}

// DefaultAnalyticsBufferDir is the conventional location for the
// JSONL KPI buffer, relative to a project's working directory.
const DefaultAnalyticsBufferDir = ".kb/analytics/buffer"
