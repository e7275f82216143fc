package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/loopwright/koru/internal/logger"
)

const (
	maxFindings = 200
	maxArtifacts = 100
)

// Store holds everything H's loop needs to read and write per
// session: findings, artifacts, the two-tier fact memory, and the
// rolling conversation plus its compressor.
type Store struct {
	mu sync.Mutex

	sessionID string
	hot       *HotMemory
	cold      *ColdMemory

	findings  []Finding
	artifacts []Artifact
	messages  []Message

	nextFindingID  int64
	nextArtifactID int64
}

// NewStore creates a session-scoped memory store. Cold memory
// construction can fail (it opens a chromem-go collection); the
// store remains usable for findings/artifacts/hot-memory/conversation
// even if cold memory is unavailable.
func NewStore(sessionID string) *Store {
	cold, err := NewColdMemory(sessionID)
	if err != nil {
		logger.GetLogger().Warn().Err(err).Str("session", sessionID).Msg("memory: cold store unavailable, continuing without it")
		cold = nil
	}
	return &Store{
		sessionID: sessionID,
		hot:       NewHotMemory(),
		cold:      cold,
	}
}

// Hot exposes the fact-sheet.
func (s *Store) Hot() *HotMemory { return s.hot }

// AddFinding appends a bounded finding, evicting the oldest
// lowest-severity entry once over capacity.
func (s *Store) AddFinding(f Finding) Finding {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextFindingID++
	f.ID = s.nextFindingID
	s.findings = append(s.findings, f)

	if len(s.findings) > maxFindings {
		drop := 0
		for i, x := range s.findings {
			if severityRank(x.Severity) > severityRank(s.findings[drop].Severity) {
				drop = i
			}
		}
		s.findings = append(s.findings[:drop], s.findings[drop+1:]...)
	}
	return f
}

// Findings returns a copy of the stored findings.
func (s *Store) Findings() []Finding {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Finding, len(s.findings))
	copy(out, s.findings)
	return out
}

// Summary returns the compact severity-count-plus-top-3 view used to
// bound orchestrator context.
func (s *Store) Summary() FindingsSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[Severity]int)
	for _, f := range s.findings {
		counts[f.Severity]++
	}

	ordered := make([]Finding, len(s.findings))
	copy(ordered, s.findings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return severityRank(ordered[i].Severity) < severityRank(ordered[j].Severity)
	})
	top := ordered
	if len(top) > 3 {
		top = top[:3]
	}
	return FindingsSummary{CountBySeverity: counts, Top: top}
}

func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// RecordToolOutput stores a tool output either inline as an artifact
// (if small) or archives it to cold memory (if it exceeds the
// threshold), returning the artifact's key when archived.
func (s *Store) RecordToolOutput(ctx context.Context, toolName, content string) (key string, archived bool) {
	s.mu.Lock()
	size := len(content)
	s.mu.Unlock()

	if size < ArtifactSizeThresholdBytes {
		s.mu.Lock()
		s.nextArtifactID++
		id := s.nextArtifactID
		s.artifacts = append(s.artifacts, Artifact{ID: id, ToolName: toolName, Content: content, SizeBytes: size})
		if len(s.artifacts) > maxArtifacts {
			s.artifacts = s.artifacts[len(s.artifacts)-maxArtifacts:]
		}
		s.mu.Unlock()
		return "", false
	}

	if s.cold == nil {
		return "", false
	}
	s.mu.Lock()
	s.nextArtifactID++
	key = archiveKey(toolName, s.nextArtifactID)
	s.mu.Unlock()
	if err := s.cold.Archive(ctx, key, content, map[string]string{"tool": toolName}); err != nil {
		logger.GetLogger().Warn().Err(err).Str("tool", toolName).Msg("memory: failed to archive tool output")
		return "", false
	}
	return key, true
}

// Recall performs semantic search over cold memory; it returns
// (nil, nil) when cold memory is unavailable.
func (s *Store) Recall(ctx context.Context, query string, limit int) ([]ColdEntry, error) {
	if s.cold == nil {
		return nil, nil
	}
	return s.cold.Recall(ctx, query, limit)
}

func archiveKey(toolName string, seq int64) string {
	return toolName + "-" + strconv.FormatInt(seq, 10)
}

// AddMessage appends to the rolling conversation and compresses it in
// place when it has grown past the configured thresholds.
func (s *Store) AddMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	if ShouldCompress(s.messages) {
		s.messages = Compress(s.messages)
	}
}

// History returns the current rolling conversation, matching the
// shape skills built against a session's History() already expect.
func (s *Store) History() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}
