// Package normalize turns raw model-proposed tool inputs into safe,
// productive forms before execution: directory resolution for the
// search family, read-window sizing and rescue paths for fs_read, and
// working-directory containment for shell_exec.
package normalize

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/loopwright/koru/pkg/ioerr"
)

// Tier is the model tier driving the adaptive read-limit baseline.
type Tier string

const (
	TierSmall  Tier = "small"
	TierMedium Tier = "medium"
	TierLarge  Tier = "large"
)

var tierBaseline = map[Tier]int{
	TierSmall:  180,
	TierMedium: 300,
	TierLarge:  500,
}

const (
	maxEffectiveLimit  = 1000
	knownSmallFileLines = 180
	knownLargeFileLines = 1500
)

var globMeta = []string{"*", "?", "[", "]", "{", "}"}

// ResolveSearchDirectory implements the search-family directory
// resolution rule: absolute paths become project-relative, a path
// pointing at a file is replaced by its parent, and "." means root.
func ResolveSearchDirectory(root, directory string, isFile func(path string) bool) string {
	if directory == "" || directory == "." {
		return "."
	}
	dir := directory
	if filepath.IsAbs(dir) {
		if rel, err := filepath.Rel(root, dir); err == nil {
			dir = rel
		}
	}
	dir = filepath.Clean(dir)
	if isFile != nil && isFile(filepath.Join(root, dir)) {
		dir = filepath.Dir(dir)
	}
	if dir == "" {
		dir = "."
	}
	return dir
}

// WrapGlobPattern wraps a bare substring into a "contains" glob when
// the caller supplied no glob metacharacters.
func WrapGlobPattern(pattern string) string {
	if hasGlobMeta(pattern) {
		return pattern
	}
	return "**/*" + pattern + "*"
}

func hasGlobMeta(pattern string) bool {
	for _, m := range globMeta {
		if strings.Contains(pattern, m) {
			return true
		}
	}
	return false
}

// FileStat is what the normalizer remembers about a previously-read
// file, used to size the adaptive read window.
type FileStat struct {
	KnownLines int
	Attempts   int
}

// ReadHistory tracks prior fs_read attempts per path so repeated reads
// of the same file escalate their window instead of looping forever.
type ReadHistory struct {
	mu         sync.Mutex
	stats      map[string]*FileStat
	smallSpans map[string]int
}

// NewReadHistory creates an empty, per-session read history.
func NewReadHistory() *ReadHistory {
	return &ReadHistory{stats: make(map[string]*FileStat), smallSpans: make(map[string]int)}
}

// RecordKnownSize remembers a file's total line count once observed.
func (h *ReadHistory) RecordKnownSize(path string, lines int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.statFor(path)
	s.KnownLines = lines
}

func (h *ReadHistory) statFor(path string) *FileStat {
	s, ok := h.stats[path]
	if !ok {
		s = &FileStat{}
		h.stats[path] = s
	}
	return s
}

// ReadRequest is a raw fs_read proposal from the model.
type ReadRequest struct {
	Path       string
	Offset     int
	Limit      int
	AllowDerived bool // task explicitly asked for dist/build/map artifacts
}

// ReadPlan is the normalized, safe-to-execute version of a ReadRequest.
type ReadPlan struct {
	Path   string
	Offset int
	Limit  int
}

const (
	minWindowLines    = 20
	smallWindowLimit  = 3
)

// NormalizeRead applies backup-suffix rescue, cross-compile rescue,
// offset sanitization, adaptive limit sizing, the micro-window guard,
// and the secondary-artifact block, in that order. exists and
// siblingExists abstract filesystem probing so this stays unit
// testable without touching disk.
func (h *ReadHistory) NormalizeRead(tier Tier, req ReadRequest, exists func(string) bool, siblingExists func(string) bool) (*ReadPlan, error) {
	path := req.Path

	if blocked, artifact := isSecondaryArtifact(path); blocked && !req.AllowDerived {
		return nil, ioerr.New(ioerr.CodeSchemaValidationFail, "refusing to read secondary build artifact: "+artifact).
			WithHint("ask explicitly for generated/build output if you really need it")
	}

	if rescued, ok := rescueBackupSuffix(path, exists); ok {
		path = rescued
	} else if rescued, ok := rescueCrossCompile(path, siblingExists); ok {
		path = rescued
	}

	offset := req.Offset
	if offset <= 0 {
		offset = 1
	}

	h.mu.Lock()
	stat := h.statFor(path)
	stat.Attempts++
	attempts := stat.Attempts
	knownLines := stat.KnownLines
	h.mu.Unlock()

	limit := h.computeLimit(tier, req.Limit, knownLines, attempts)

	span := limit
	if req.Limit > 0 && req.Limit < span {
		span = req.Limit
	}
	if span < minWindowLines {
		h.mu.Lock()
		h.smallSpans[path]++
		count := h.smallSpans[path]
		h.mu.Unlock()
		if count > smallWindowLimit {
			return nil, ioerr.New(ioerr.CodeSchemaValidationFail, "requested window is too narrow").
				WithHint("broaden the read window instead of repeating narrow reads")
		}
	}

	return &ReadPlan{Path: path, Offset: offset, Limit: limit}, nil
}

func (h *ReadHistory) computeLimit(tier Tier, requested, knownLines, attempts int) int {
	baseline, ok := tierBaseline[tier]
	if !ok {
		baseline = tierBaseline[TierMedium]
	}

	limit := baseline
	if knownLines > 0 && knownLines <= knownSmallFileLines {
		limit = knownLines
	} else if knownLines >= knownLargeFileLines {
		limit = baseline * 2
	}

	switch {
	case attempts >= 3:
		limit = int(float64(limit) * 1.6)
	case attempts == 2:
		limit = int(float64(limit) * 1.4)
	}

	floor := baseline
	if requested > floor {
		floor = requested
	}
	if limit < floor {
		limit = floor
	}
	if limit > maxEffectiveLimit {
		limit = maxEffectiveLimit
	}
	return limit
}

var backupSuffixes = []string{".backup", ".bak", ".orig", ".tmp"}

func rescueBackupSuffix(path string, exists func(string) bool) (string, bool) {
	for _, suffix := range backupSuffixes {
		if strings.HasSuffix(path, suffix) {
			primary := strings.TrimSuffix(path, suffix)
			if exists != nil && exists(primary) {
				return primary, true
			}
		}
	}
	return "", false
}

func rescueCrossCompile(path string, siblingExists func(string) bool) (string, bool) {
	if !strings.HasSuffix(path, ".js") {
		return "", false
	}
	base := strings.TrimSuffix(path, ".js")
	for _, ext := range []string{".ts", ".tsx"} {
		candidate := base + ext
		if siblingExists != nil && siblingExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

var secondaryArtifactPatterns = []string{"/dist/", "/build/", ".map", ".min.js"}

func isSecondaryArtifact(path string) (bool, string) {
	for _, pattern := range secondaryArtifactPatterns {
		if strings.Contains(path, pattern) {
			return true, pattern
		}
	}
	for _, suffix := range backupSuffixes {
		if strings.HasSuffix(path, suffix) {
			return true, suffix
		}
	}
	return false, ""
}

// NormalizeShellCwd implements the shell_exec cwd rule: blank becomes
// ".", relative paths resolve against workdir, and any escape from
// workdir after resolution is rejected.
func NormalizeShellCwd(workdir, cwd string) (string, error) {
	if cwd == "" {
		cwd = "."
	}
	resolved := cwd
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(workdir, resolved)
	}
	resolved = filepath.Clean(resolved)

	rel, err := filepath.Rel(workdir, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ioerr.New(ioerr.CodeInvalidCwd, "cwd escapes the working directory: "+cwd)
	}
	return resolved, nil
}
