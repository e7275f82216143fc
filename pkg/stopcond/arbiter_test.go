package stopcond

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArbiter_S1_ReportBeatsMaxIterations(t *testing.T) {
	a := New()
	snap := Snapshot{
		Iteration:     19,
		MaxIterations: 20,
		CallsKnown:    true,
		ProposedCalls: []ToolCall{{Name: "report", Input: map[string]any{"answer": "task complete", "confidence": 0.95}}},
		LoopDetected:  true, // regression guard: loop_detected must not outrank report_complete
	}

	result := a.Evaluate(snap)
	require.NotNil(t, result)
	assert.Equal(t, PriorityReportComplete, result.Priority)
	assert.Equal(t, ReasonReportComplete, result.Reason)
	assert.Equal(t, "task complete", result.Metadata["answer"])
	assert.Equal(t, 0.95, result.Metadata["confidence"])
}

func TestArbiter_S2_AbortBeforeFirstIteration(t *testing.T) {
	a := New()
	result := a.Evaluate(Snapshot{Aborted: true, MaxIterations: 20})
	require.NotNil(t, result)
	assert.Equal(t, ReasonAbortSignal, result.Reason)
	assert.Equal(t, PriorityAbortSignal, result.Priority)
}

func TestArbiter_S3_HardBudgetBeatsNoToolCalls(t *testing.T) {
	a := New()
	result := a.Evaluate(Snapshot{
		TotalTokens:    100000,
		HardTokenLimit: 50000,
		CallsKnown:     true,
		ProposedCalls:  nil,
	})
	require.NotNil(t, result)
	assert.Equal(t, ReasonHardBudget, result.Reason)
	assert.Equal(t, PriorityHardBudget, result.Priority)
}

func TestArbiter_EmptyToolCallsTriggersNoToolCalls(t *testing.T) {
	a := New()
	result := a.Evaluate(Snapshot{CallsKnown: true, ProposedCalls: []ToolCall{}})
	require.NotNil(t, result)
	assert.Equal(t, ReasonNoToolCalls, result.Reason)
}

func TestArbiter_ZeroHardTokenLimitDisablesRule(t *testing.T) {
	a := New()
	result := a.Evaluate(Snapshot{TotalTokens: 999999, HardTokenLimit: 0, CallsKnown: true, ProposedCalls: []ToolCall{{Name: "fs_read"}}})
	assert.Nil(t, result)
}

func TestArbiter_MaxIterationsBoundary(t *testing.T) {
	a := New()
	result := a.Evaluate(Snapshot{Iteration: 9, MaxIterations: 10, CallsKnown: true, ProposedCalls: []ToolCall{{Name: "fs_read"}}})
	require.NotNil(t, result)
	assert.Equal(t, ReasonMaxIterations, result.Reason)
}

func TestArbiter_UserConditionNeverOutranksBuiltin(t *testing.T) {
	a := New(Condition{
		Priority: UserConditionMinPriority,
		Reason:   "custom",
		Evaluate: func(s Snapshot) (bool, string, map[string]any) { return true, "always fires", nil },
	})
	result := a.Evaluate(Snapshot{Aborted: true})
	require.NotNil(t, result)
	assert.Equal(t, ReasonAbortSignal, result.Reason)
}

func TestArbiter_NoHitsReturnsNil(t *testing.T) {
	a := New()
	result := a.Evaluate(Snapshot{CallsKnown: true, ProposedCalls: []ToolCall{{Name: "fs_read"}}, Iteration: 0, MaxIterations: 20})
	assert.Nil(t, result)
}

func TestArbiter_Pure(t *testing.T) {
	a := New()
	snap := Snapshot{Iteration: 5, MaxIterations: 20, CallsKnown: true, ProposedCalls: []ToolCall{{Name: "fs_read"}}}
	r1 := a.Evaluate(snap)
	r2 := a.Evaluate(snap)
	assert.Equal(t, r1, r2)
}
