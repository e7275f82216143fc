package snapshot

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/loopwright/koru/internal/logger"
)

// Cleanup lists every session directory by creation time and deletes
// sessions beyond maxSessions AND sessions older than maxAgeDays.
// Total disk-size bounds are not enforced by eviction; traversal only
// logs when it encounters oversized sessions.
func (s *Store) Cleanup(maxSizeBytesPerSessionHint int64) error {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	type sessionInfo struct {
		name    string
		created time.Time
		size    int64
	}
	var sessions []sessionInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		size := dirSize(s.sessionDir(e.Name()))
		sessions = append(sessions, sessionInfo{name: e.Name(), created: info.ModTime(), size: size})
		if maxSizeBytesPerSessionHint > 0 && size > maxSizeBytesPerSessionHint {
			logger.GetLogger().Warn().Str("session", e.Name()).Int64("sizeBytes", size).Msg("snapshot: session exceeds size hint, eviction not implemented")
		}
	}

	sort.Slice(sessions, func(i, j int) bool { return sessions[i].created.After(sessions[j].created) })

	cutoff := time.Now().AddDate(0, 0, -s.maxAgeDays)
	toDelete := make(map[string]bool)

	if s.maxSessions > 0 {
		cut := s.maxSessions
		if cut > len(sessions) {
			cut = len(sessions)
		}
		for _, sess := range sessions[cut:] {
			toDelete[sess.name] = true
		}
	}
	if s.maxAgeDays > 0 {
		for _, sess := range sessions {
			if sess.created.Before(cutoff) {
				toDelete[sess.name] = true
			}
		}
	}

	for name := range toDelete {
		if err := os.RemoveAll(s.sessionDir(name)); err != nil {
			logger.GetLogger().Warn().Err(err).Str("session", name).Msg("snapshot: cleanup failed to remove session")
		}
		s.mu.Lock()
		delete(s.inMemory, name)
		s.mu.Unlock()
	}

	return nil
}

func dirSize(path string) int64 {
	var total int64
	entries, err := os.ReadDir(path)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		full := filepath.Join(path, e.Name())
		if e.IsDir() {
			total += dirSize(full)
			continue
		}
		if info, err := e.Info(); err == nil {
			total += info.Size()
		}
	}
	return total
}
