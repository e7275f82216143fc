package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHotMemory_RememberAndFacts(t *testing.T) {
	h := NewHotMemory()
	f := h.Remember(CategoryDecision, "use postgres", "agent", 0.9, 1, 0)
	assert.NotZero(t, f.ID)

	facts := h.Facts()
	assert.Len(t, facts, 1)
	assert.Equal(t, "use postgres", facts[0].Content)
}

func TestHotMemory_SupersedesReplacesEntry(t *testing.T) {
	h := NewHotMemory()
	first := h.Remember(CategoryDecision, "use mysql", "agent", 0.8, 1, 0)
	h.Remember(CategoryDecision, "use postgres", "agent", 0.9, 2, first.ID)

	facts := h.Facts()
	assert.Len(t, facts, 1)
	assert.Equal(t, "use postgres", facts[0].Content)
}

func TestHotMemory_EvictsBeyondMaxFactCount(t *testing.T) {
	h := NewHotMemory()
	for i := 0; i < hotMaxFacts+10; i++ {
		h.Remember(CategoryEnvironment, "env fact", "agent", 0.5, i, 0)
	}
	assert.LessOrEqual(t, len(h.Facts()), hotMaxFacts)
}

func TestHotMemory_EvictsBeyondTokenCeiling(t *testing.T) {
	h := NewHotMemory()
	big := strings.Repeat("word ", 2000)
	for i := 0; i < 5; i++ {
		h.Remember(CategoryEnvironment, big, "agent", 0.5, i, 0)
	}
	facts := h.Facts()
	total := estimateFactTokens(facts)
	assert.LessOrEqual(t, total, hotMaxTokens)
}

func TestHotMemory_CorrectionsSurviveOverEnvironmentUnderPressure(t *testing.T) {
	h := NewHotMemory()
	correction := h.Remember(CategoryCorrection, "always use tabs", "user", 1.0, 0, 0)
	for i := 0; i < hotMaxFacts+20; i++ {
		h.Remember(CategoryEnvironment, "env fact", "agent", 0.5, i, 0)
	}

	facts := h.Facts()
	found := false
	for _, f := range facts {
		if f.ID == correction.ID {
			found = true
		}
	}
	assert.True(t, found, "correction must survive eviction pressure from lower-priority categories")
}

func TestHotMemory_ConfirmationsRankAboveRecencyWithinCategory(t *testing.T) {
	h := NewHotMemory()
	a := h.Remember(CategoryDecision, "a", "agent", 0.5, 0, 0)
	h.Remember(CategoryDecision, "b", "agent", 0.5, 1, 0)
	h.Confirm(a.ID)

	facts := h.Facts()
	assert.Equal(t, "a", facts[0].Content)
}
