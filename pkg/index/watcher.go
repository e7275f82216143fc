package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher keeps a MemoryIndex in sync with a directory tree, debouncing
// bursts of writes (editors often save a file several times in a row)
// before reindexing.
type Watcher struct {
	idx  *MemoryIndex
	opts IndexOptions
	root string

	fsWatcher  *fsnotify.Watcher
	debounce   time.Duration

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}

	pendingMu sync.Mutex
	pending   map[string]time.Time
}

// NewWatcher creates a watcher that reindexes root into idx whenever a
// source file under it changes.
func NewWatcher(idx *MemoryIndex, root string, opts IndexOptions) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		idx:      idx,
		opts:     opts,
		root:     root,
		fsWatcher: fsWatcher,
		debounce:  300 * time.Millisecond,
		stopCh:    make(chan struct{}),
		pending:   make(map[string]time.Time),
	}, nil
}

// Start begins watching for file changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addDirectories(); err != nil {
		return fmt.Errorf("add directories: %w", err)
	}

	go w.processEvents()
	go w.processDebounced()
	return nil
}

// Stop stops the file watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)
	return w.fsWatcher.Close()
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

func (w *Watcher) addDirectories() error {
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(w.root, path)
		if w.shouldSkipDir(rel) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			fmt.Fprintf(os.Stderr, "warning: cannot watch %s: %v\n", path, err)
		}
		return nil
	})
}

var defaultWatchSkipDirs = []string{"vendor", ".git", "node_modules", ".kb"}

func (w *Watcher) shouldSkipDir(relPath string) bool {
	for _, dir := range defaultWatchSkipDirs {
		if relPath == dir || strings.HasPrefix(relPath, dir+string(filepath.Separator)) {
			return true
		}
	}
	for _, pattern := range w.opts.ExcludePatterns {
		if matchGlob(filepath.ToSlash(relPath)+"/", pattern) {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.pendingMu.Lock()
			w.pending[event.Name] = time.Now()
			w.pendingMu.Unlock()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "watcher error: %v\n", err)
		}
	}
}

func (w *Watcher) processDebounced() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.processPendingFiles()
		}
	}
}

func (w *Watcher) processPendingFiles() {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	now := time.Now()
	for path, ts := range w.pending {
		if now.Sub(ts) < w.debounce {
			continue
		}
		delete(w.pending, path)

		content, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				fmt.Fprintf(os.Stderr, "error reading %s: %v\n", path, err)
			}
			continue
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			rel = path
		}
		if err := w.idx.IndexFile(context.Background(), rel, content); err != nil {
			fmt.Fprintf(os.Stderr, "error indexing %s: %v\n", rel, err)
		}
	}
}
