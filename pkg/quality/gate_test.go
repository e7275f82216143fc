package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate_S5_PartialVerdict(t *testing.T) {
	result := Evaluate(Snapshot{
		ToolUseCounts:  map[string]int{"grep_search": 10},
		ToolErrorCount: 8,
		TouchedDomains: 4,
		IterationsUsed: 3,
	})

	assert.Equal(t, VerdictPartial, result.Status)
	assert.LessOrEqual(t, result.Score, 0.4)
	assert.Contains(t, result.Reasons, "tool error rate")
	assert.Contains(t, result.Reasons, "drift")
	assert.NotEmpty(t, result.NextChecks)
}

func TestEvaluate_PerfectRunPasses(t *testing.T) {
	result := Evaluate(Snapshot{
		ToolUseCounts:  map[string]int{"fs_read": 2, "fs_write": 2},
		FilesRead:      2,
		FilesModified:  2,
		IterationsUsed: 2,
		TouchedDomains: 1,
	})
	assert.Equal(t, VerdictPass, result.Status)
	assert.Equal(t, 1.0, result.Score)
	assert.Empty(t, result.NextChecks)
}

func TestEvaluate_IsPure(t *testing.T) {
	snap := Snapshot{ToolUseCounts: map[string]int{"fs_read": 5}, FilesRead: 1, IterationsUsed: 5}
	r1 := Evaluate(snap)
	r2 := Evaluate(snap)
	assert.Equal(t, r1, r2)
}

func TestEvaluate_NextChecksCappedAtFourAndDeduplicated(t *testing.T) {
	result := Evaluate(Snapshot{
		ToolUseCounts:  map[string]int{"grep_search": 10},
		ToolErrorCount: 8,
		TouchedDomains: 4,
		IterationsUsed: 6,
		MultiStepTask:  true,
		Ledger:         LedgerSummary{HasFailed: true, HasPending: true},
	})
	assert.LessOrEqual(t, len(result.NextChecks), 4)
	seen := map[string]bool{}
	for _, c := range result.NextChecks {
		assert.False(t, seen[c], "next checks must be deduplicated")
		seen[c] = true
	}
}

func TestDerivedTerms(t *testing.T) {
	assert.Equal(t, 10, ToolCallsTotal(map[string]int{"a": 4, "b": 6}))
	assert.InDelta(t, 0.3, DriftRate(4, 10), 1e-9)
	assert.Equal(t, float64(0), DriftRate(4, 0))
	assert.InDelta(t, 0.5, EvidenceDensity(1, 1, 0, 4), 1e-9)
	assert.InDelta(t, 0.8, ToolErrorRate(8, 10), 1e-9)
}

func TestShouldNudgeConvergence(t *testing.T) {
	assert.False(t, ShouldNudgeConvergence(3, 20, 10, false, 1))
	assert.False(t, ShouldNudgeConvergence(5, 5, 10, false, 1))
	assert.False(t, ShouldNudgeConvergence(5, 20, 2, false, 1))
	assert.False(t, ShouldNudgeConvergence(5, 20, 10, true, 0))
	assert.True(t, ShouldNudgeConvergence(5, 20, 10, true, 1))
	assert.True(t, ShouldNudgeConvergence(5, 20, 10, false, 0))
}

func TestIsStuck(t *testing.T) {
	assert.True(t, IsStuck([]string{"fs_read", "fs_read", "fs_read"}, 0, 10))
	assert.False(t, IsStuck([]string{"fs_read", "fs_write", "fs_read"}, 0, 10))
	assert.True(t, IsStuck(nil, 11, 10))
	assert.False(t, IsStuck(nil, 10, 10))
}

func TestPercentile(t *testing.T) {
	values := []float64{5, 1, 3, 2, 4}
	assert.Equal(t, float64(5), Percentile(values, 1.0))
	assert.Equal(t, float64(1), Percentile(values, 0.1))
	assert.Equal(t, float64(3), Percentile(values, 0.5))
	// original slice must not be mutated
	assert.Equal(t, []float64{5, 1, 3, 2, 4}, values)
}

func TestShouldEscalate(t *testing.T) {
	d := ShouldEscalate(EscalationInput{EscalationEnabled: true, BudgetFractionSpent: 0.5, RepeatedIdenticalCall: true, RecentProgressSignal: false})
	assert.True(t, d.Escalate)

	d = ShouldEscalate(EscalationInput{EscalationEnabled: true, BudgetFractionSpent: 0.5, EvidenceArtifactCount: 1})
	assert.True(t, d.Escalate)

	d = ShouldEscalate(EscalationInput{EscalationEnabled: true, BudgetFractionSpent: 0.1, RepeatedIdenticalCall: true})
	assert.False(t, d.Escalate)

	d = ShouldEscalate(EscalationInput{EscalationEnabled: true, HasParentAgent: true, BudgetFractionSpent: 0.9, RepeatedIdenticalCall: true})
	assert.False(t, d.Escalate)

	d = ShouldEscalate(EscalationInput{EscalationEnabled: true, CurrentTier: TierLarge, BudgetFractionSpent: 0.9, RepeatedIdenticalCall: true})
	assert.False(t, d.Escalate)
}

func TestMaybeExtend_Monotonic(t *testing.T) {
	m := MaybeExtend(9, 10, ExtensionContext{RecentProgress: true, StuckThreshold: 5})
	assert.GreaterOrEqual(t, m, 10)
	assert.Equal(t, 15, m)

	m2 := MaybeExtend(5, 10, ExtensionContext{RecentProgress: true, StuckThreshold: 5})
	assert.Equal(t, 10, m2) // not within 1 of ceiling, no extension
}

func TestMaybeExtend_NeverExtendsWhenStuckWithNoSignal(t *testing.T) {
	m := MaybeExtend(9, 10, ExtensionContext{RecentProgress: true, StuckCounter: 6, StuckThreshold: 5, RecentSignal: false})
	assert.Equal(t, 10, m)
}

func TestInitialBudget(t *testing.T) {
	assert.Equal(t, 12, InitialBudget(0, 0))
	assert.Equal(t, 8, InitialBudget(0, 8))
	assert.Equal(t, 5, InitialBudget(5, 8))
}
