package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/loopwright/koru/internal/logger"
)

// Store is the file-change tracker + snapshot store for one base
// directory (typically .kb/agents/sessions).
type Store struct {
	basePath    string
	maxSessions int
	maxAgeDays  int

	mu          sync.Mutex
	inMemory    map[string][]Change // sessionID -> changes, oldest first
	subscribers map[chan Change]bool
	seq         int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMaxSessions sets the retention session-count ceiling.
func WithMaxSessions(n int) StoreOption {
	return func(s *Store) { s.maxSessions = n }
}

// WithMaxAgeDays sets the retention age ceiling in days.
func WithMaxAgeDays(n int) StoreOption {
	return func(s *Store) { s.maxAgeDays = n }
}

// NewStore creates a Store rooted at basePath.
func NewStore(basePath string, opts ...StoreOption) *Store {
	s := &Store{
		basePath:    basePath,
		maxSessions: 100,
		maxAgeDays:  30,
		inMemory:    make(map[string][]Change),
		subscribers: make(map[chan Change]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe returns a bounded channel notified on every captured
// change. Delivery is non-blocking: a full subscriber drops the event
// rather than stalling the capture path.
func (s *Store) Subscribe() <-chan Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Change, 64)
	s.subscribers[ch] = true
	return ch
}

// Unsubscribe removes a subscription registered with Subscribe.
func (s *Store) Unsubscribe(ch <-chan Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sendCh := range s.subscribers {
		if sendCh == ch {
			close(sendCh)
			delete(s.subscribers, sendCh)
			return
		}
	}
}

func (s *Store) notify(c Change) {
	for ch := range s.subscribers {
		select {
		case ch <- c:
		default:
		}
	}
}

func hashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// CaptureChange hashes before/after, persists a snapshot, appends to
// the session index, keeps an in-memory entry for fast rollback, and
// notifies subscribers.
func (s *Store) CaptureChange(sessionID, agentID, runID, filePath string, op Operation, before *string, after string, metadata map[string]any) (*Change, error) {
	s.mu.Lock()
	s.seq++
	changeID := fmt.Sprintf("chg-%d-%d", time.Now().UnixNano(), s.seq)
	s.mu.Unlock()

	change := Change{
		ChangeID:  changeID,
		SessionID: sessionID,
		AgentID:   agentID,
		RunID:     runID,
		FilePath:  filePath,
		Operation: op,
		Timestamp: nowISO(),
		Before:    before,
		After:     after,
		AfterHash: hashContent(after),
		AfterSize: len(after),
		Metadata:  metadata,
	}
	if before != nil {
		change.BeforeHash = hashContent(*before)
		change.BeforeSize = len(*before)
	}

	if err := s.saveSnapshot(change); err != nil {
		return nil, err
	}
	if err := s.appendToIndex(sessionID, changeID); err != nil {
		logger.GetLogger().Warn().Err(err).Str("sessionId", sessionID).Msg("snapshot: failed to append session index")
	}

	s.mu.Lock()
	s.inMemory[sessionID] = append(s.inMemory[sessionID], change)
	s.mu.Unlock()

	s.notify(change)
	return &change, nil
}

func (s *Store) sessionDir(sessionID string) string {
	return filepath.Join(s.basePath, sessionID)
}

func (s *Store) snapshotsDir(sessionID string) string {
	return filepath.Join(s.sessionDir(sessionID), "snapshots")
}

func (s *Store) snapshotPath(sessionID, changeID string) string {
	return filepath.Join(s.snapshotsDir(sessionID), changeID+".json")
}

func (s *Store) indexPath(sessionID string) string {
	return filepath.Join(s.sessionDir(sessionID), "index.json")
}

// saveSnapshot persists a snapshot to disk. This is the only write
// path in the store allowed to propagate an error to the caller.
func (s *Store) saveSnapshot(c Change) error {
	if err := os.MkdirAll(s.snapshotsDir(c.SessionID), 0o755); err != nil {
		return fmt.Errorf("mkdir snapshots dir: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(s.snapshotPath(c.SessionID, c.ChangeID), data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// loadSnapshot reads one snapshot. Corrupted JSON or a missing file
// returns (nil, nil) rather than an error.
func (s *Store) loadSnapshot(sessionID, changeID string) (*Change, error) {
	data, err := os.ReadFile(s.snapshotPath(sessionID, changeID))
	if err != nil {
		return nil, nil
	}
	var c Change
	if err := json.Unmarshal(data, &c); err != nil {
		logger.GetLogger().Warn().Err(err).Str("changeId", changeID).Msg("snapshot: corrupted snapshot file")
		return nil, nil
	}
	return &c, nil
}

func (s *Store) appendToIndex(sessionID, changeID string) error {
	idx, err := s.loadIndex(sessionID)
	if err != nil || idx == nil {
		idx = &SessionIndex{SessionID: sessionID, CreatedAt: nowISO()}
	}
	idx.Changes = append(idx.Changes, changeID)

	if err := os.MkdirAll(s.sessionDir(sessionID), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.indexPath(sessionID), data, 0o644)
}

// loadIndex reads the session index. If the index file is missing it
// falls back to reading every snapshot file in the directory and
// sorting by timestamp.
func (s *Store) loadIndex(sessionID string) (*SessionIndex, error) {
	data, err := os.ReadFile(s.indexPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return s.rebuildIndexFromSnapshots(sessionID)
		}
		return nil, err
	}
	var idx SessionIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return s.rebuildIndexFromSnapshots(sessionID)
	}
	return &idx, nil
}

func (s *Store) rebuildIndexFromSnapshots(sessionID string) (*SessionIndex, error) {
	entries, err := os.ReadDir(s.snapshotsDir(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var changes []Change
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		changeID := e.Name()
		if filepath.Ext(changeID) == ".json" {
			changeID = changeID[:len(changeID)-len(".json")]
		}
		c, _ := s.loadSnapshot(sessionID, changeID)
		if c != nil {
			changes = append(changes, *c)
		}
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Timestamp < changes[j].Timestamp })
	idx := &SessionIndex{SessionID: sessionID, CreatedAt: nowISO()}
	for _, c := range changes {
		idx.Changes = append(idx.Changes, c.ChangeID)
	}
	return idx, nil
}
