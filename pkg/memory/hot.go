package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/loopwright/koru/pkg/index"
)

const (
	hotMaxFacts      = 60
	hotMaxTokens     = 5000
)

// HotMemory is the fact-sheet: a small, always-in-prompt set of
// structured facts bounded both by count and by estimated token size.
type HotMemory struct {
	mu     sync.Mutex
	facts  []Fact
	nextID int64
}

// NewHotMemory creates an empty fact-sheet.
func NewHotMemory() *HotMemory {
	return &HotMemory{}
}

// Remember adds or, when supersedes is non-zero, replaces a fact,
// then evicts down to the bounds if necessary.
func (h *HotMemory) Remember(category Category, content, source string, confidence float64, iteration int, supersedes int64) Fact {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	f := Fact{
		ID:         h.nextID,
		Category:   category,
		Content:    content,
		Confidence: confidence,
		Source:     source,
		Iteration:  iteration,
		Supersedes: supersedes,
		UpdatedAt:  time.Now(),
	}

	if supersedes != 0 {
		h.removeLocked(supersedes)
	}
	h.facts = append(h.facts, f)
	h.evictLocked()
	return f
}

// Confirm increments a fact's confirmation count, raising its
// eviction priority within its category.
func (h *HotMemory) Confirm(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.facts {
		if h.facts[i].ID == id {
			h.facts[i].Confirmations++
			h.facts[i].UpdatedAt = time.Now()
			return
		}
	}
}

// Facts returns the current fact-sheet, most-protected category
// first, confirmations-then-recency within a category.
func (h *HotMemory) Facts() []Fact {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Fact, len(h.facts))
	copy(out, h.facts)
	sortFactsByPriority(out)
	return out
}

func (h *HotMemory) removeLocked(id int64) {
	out := h.facts[:0]
	for _, f := range h.facts {
		if f.ID != id {
			out = append(out, f)
		}
	}
	h.facts = out
}

// evictLocked drops the lowest-priority facts until both the count
// and token ceilings are satisfied.
func (h *HotMemory) evictLocked() {
	sortFactsByPriority(h.facts)

	for len(h.facts) > hotMaxFacts {
		h.facts = h.facts[:len(h.facts)-1]
	}
	for estimateFactTokens(h.facts) > hotMaxTokens && len(h.facts) > 0 {
		h.facts = h.facts[:len(h.facts)-1]
	}
}

func estimateFactTokens(facts []Fact) int {
	total := 0
	for _, f := range facts {
		total += index.EstimateTokens(f.Content)
	}
	return total
}

// sortFactsByPriority orders by category priority, then by
// confirmations (descending), then by recency (most recent first).
func sortFactsByPriority(facts []Fact) {
	sort.SliceStable(facts, func(i, j int) bool {
		ri, rj := categoryRank(facts[i].Category), categoryRank(facts[j].Category)
		if ri != rj {
			return ri < rj
		}
		if facts[i].Confirmations != facts[j].Confirmations {
			return facts[i].Confirmations > facts[j].Confirmations
		}
		return facts[i].UpdatedAt.After(facts[j].UpdatedAt)
	})
}
