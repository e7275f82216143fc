package agent

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"
)

// loopWindow bounds how much history the detector retains; only the
// last two windows of repeatSize are ever compared.
const (
	repeatSize = 3
	loopWindow = repeatSize * 2
)

// LoopDetector flags the "same three tool calls repeated twice in a
// row" pattern from a rolling signature history.
type LoopDetector struct {
	mu      sync.Mutex
	history []string
}

// NewLoopDetector creates an empty detector.
func NewLoopDetector() *LoopDetector {
	return &LoopDetector{}
}

// Record appends one iteration's signature to the rolling window.
func (d *LoopDetector) Record(signature string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = append(d.history, signature)
	if len(d.history) > loopWindow {
		d.history = d.history[len(d.history)-loopWindow:]
	}
}

// Detected reports whether the last repeatSize signatures exactly
// match the repeatSize before them.
func (d *LoopDetector) Detected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.history)
	if n < loopWindow {
		return false
	}
	last := d.history[n-repeatSize:]
	prev := d.history[n-loopWindow : n-repeatSize]
	for i := range last {
		if last[i] != prev[i] {
			return false
		}
	}
	return true
}

// Reset clears recorded history.
func (d *LoopDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = nil
}

// ToolCallSignature canonicalizes one proposed tool call (name plus
// its input) into a stable, order-independent digest so that
// equivalent calls compare equal regardless of map iteration order.
func ToolCallSignature(name string, input map[string]any) string {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make(map[string]any, len(input))
	for _, k := range keys {
		ordered[k] = input[k]
	}
	// json.Marshal of a map sorts keys already; copying into a fresh
	// map means a nil and an empty input both marshal as {}.
	raw, _ := json.Marshal(struct {
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`
	}{Name: name, Input: ordered})

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
