package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/loopwright/koru/internal/logger"
)

// RollbackFile pops the most recent in-memory change for filePath in
// the given session, restores its before content (or deletes the
// file if before is absent), and removes the entry from memory.
func (s *Store) RollbackFile(sessionID, filePath, workdir string) (*Change, error) {
	s.mu.Lock()
	changes := s.inMemory[sessionID]
	idx := -1
	for i := len(changes) - 1; i >= 0; i-- {
		if changes[i].FilePath == filePath {
			idx = i
			break
		}
	}
	if idx == -1 {
		s.mu.Unlock()
		return nil, nil
	}
	popped := changes[idx]
	s.inMemory[sessionID] = append(changes[:idx], changes[idx+1:]...)
	s.mu.Unlock()

	if err := s.restoreOnDisk(workdir, popped); err != nil {
		return nil, err
	}
	return &popped, nil
}

func (s *Store) restoreOnDisk(workdir string, c Change) error {
	target := filepath.Join(workdir, c.FilePath)
	if c.Before == nil {
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove on rollback: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("mkdir on rollback: %w", err)
	}
	if err := os.WriteFile(target, []byte(*c.Before), 0o644); err != nil {
		return fmt.Errorf("write on rollback: %w", err)
	}
	return nil
}

// RollbackAgent iterates agentID's changes within sessionID newest
// first. For each, it cross-checks all persisted changes for the same
// path with a later timestamp belonging to a different agent; if any
// exist the change is in conflict. Default behavior reports the
// conflict and stops: no further changes are processed; SkipConflicts
// skips the affected entry and continues; ForceOverwrite rolls back
// regardless of conflicts.
func (s *Store) RollbackAgent(sessionID, agentID, workdir string, opts RollbackOptions) (*RollbackAgentResult, error) {
	s.mu.Lock()
	agentChanges := make([]Change, 0)
	for i := len(s.inMemory[sessionID]) - 1; i >= 0; i-- {
		c := s.inMemory[sessionID][i]
		if c.AgentID == agentID {
			agentChanges = append(agentChanges, c)
		}
	}
	s.mu.Unlock()

	allPersisted, err := s.allChanges(sessionID)
	if err != nil {
		return nil, err
	}

	result := &RollbackAgentResult{}
	rolledBackIDs := make(map[string]bool)

	for _, c := range agentChanges {
		laterByOthers := laterModifiers(allPersisted, c.FilePath, c.Timestamp, agentID)

		if len(laterByOthers) > 0 && !opts.ForceOverwrite {
			result.Conflicts = append(result.Conflicts, Conflict{
				FilePath:        c.FilePath,
				LaterModifiedBy: laterByOthers,
			})
			if opts.SkipConflicts {
				result.Skipped++
				continue
			}
			// default: report and stop
			break
		}

		if err := s.restoreOnDisk(workdir, c); err != nil {
			logger.GetLogger().Error().Err(err).Str("changeId", c.ChangeID).Msg("snapshot: rollback restore failed")
			result.Skipped++
			continue
		}
		rolledBackIDs[c.ChangeID] = true
		result.RolledBack++
	}

	if result.RolledBack > 0 {
		s.mu.Lock()
		remaining := s.inMemory[sessionID][:0]
		for _, c := range s.inMemory[sessionID] {
			if !rolledBackIDs[c.ChangeID] {
				remaining = append(remaining, c)
			}
		}
		s.inMemory[sessionID] = remaining
		s.mu.Unlock()
	}

	return result, nil
}

// RollbackAfter removes every in-memory change newer than timestamp.
// It does not re-check disk and never produces conflicts.
func (s *Store) RollbackAfter(sessionID, timestamp string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	changes := s.inMemory[sessionID]
	var kept []Change
	removed := 0
	for _, c := range changes {
		if c.Timestamp > timestamp {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	s.inMemory[sessionID] = kept
	return removed
}

func laterModifiers(all []Change, filePath, timestamp, excludeAgent string) []string {
	seen := make(map[string]bool)
	var agents []string
	for _, c := range all {
		if c.FilePath != filePath || c.AgentID == excludeAgent {
			continue
		}
		if c.Timestamp > timestamp && !seen[c.AgentID] {
			seen[c.AgentID] = true
			agents = append(agents, c.AgentID)
		}
	}
	sort.Strings(agents)
	return agents
}

func (s *Store) allChanges(sessionID string) ([]Change, error) {
	idx, err := s.loadIndex(sessionID)
	if err != nil {
		return nil, err
	}
	if idx == nil {
		return nil, nil
	}
	var out []Change
	for _, changeID := range idx.Changes {
		c, err := s.loadSnapshot(sessionID, changeID)
		if err != nil {
			return nil, err
		}
		if c != nil {
			out = append(out, *c)
		}
	}
	return out, nil
}
