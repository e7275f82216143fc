package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopwright/koru/pkg/sdk"
	"github.com/loopwright/koru/pkg/snapshot"
	"github.com/loopwright/koru/pkg/stopcond"
	"github.com/loopwright/koru/pkg/toolkit"
	"github.com/loopwright/koru/pkg/trace"
)

// scriptedProvider replays one CompletionResponse per Complete call,
// then repeats its last response forever (so a test that forgets to
// stop the loop fails on iteration count, not a nil panic).
type scriptedProvider struct {
	responses []sdk.CompletionResponse
	calls     int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(req sdk.CompletionRequest) (*sdk.CompletionResponse, error) {
	idx := p.calls
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	p.calls++
	resp := p.responses[idx]
	return &resp, nil
}

func (p *scriptedProvider) Stream(req sdk.CompletionRequest) (<-chan sdk.StreamChunk, error) {
	return nil, nil
}

func (p *scriptedProvider) CountTokens(content string) (int, error) { return len(content) / 4, nil }

// scriptedRouter hands the same scripted provider back for every
// tier so tests don't need to care which one the engine picks.
type scriptedRouter struct {
	provider *scriptedProvider
}

func (r *scriptedRouter) Complete(req sdk.CompletionRequest) (*sdk.CompletionResponse, error) {
	return r.provider.Complete(req)
}
func (r *scriptedRouter) Stream(req sdk.CompletionRequest) (<-chan sdk.StreamChunk, error) {
	return r.provider.Stream(req)
}
func (r *scriptedRouter) CountTokens(content string) (int, error) { return r.provider.CountTokens(content) }
func (r *scriptedRouter) ForPlanning() sdk.LLMProvider             { return r.provider }
func (r *scriptedRouter) ForExecution() sdk.LLMProvider            { return r.provider }
func (r *scriptedRouter) ForValidation() sdk.LLMProvider           { return r.provider }

func mustArgs(t *testing.T, v map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func newTestManager() *toolkit.Manager {
	m := toolkit.NewManager()
	pack := toolkit.NewPack("core", "", toolkit.PolicyError, 0)
	pack.AddTool(toolkit.Tool{
		Name: "report",
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			return map[string]any{"ok": true}, nil
		},
	})
	pack.AddTool(toolkit.Tool{
		Name: "fs_read",
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			return map[string]any{"content": "file contents"}, nil
		},
	})
	_ = m.Register(pack)
	return m
}

func newTestEngine(t *testing.T, router sdk.LLMRouter) *Engine {
	t.Helper()
	dir := t.TempDir()
	tw := trace.NewWriter(dir)
	ss := snapshot.NewStore(dir)
	arb := stopcond.New()
	return NewEngine(router, newTestManager(), tw, ss, arb)
}

func baseRun() RunContext {
	return RunContext{
		TaskID:        "task-1",
		SessionID:     "sess-1",
		AgentID:       "agent-1",
		RunID:         "run-1",
		TaskText:      "do the thing",
		Tier:          "medium",
		Model:         "test-model",
		ConfiguredMax: 20,
	}
}

// S1: report beats max_iterations — the model reports done on
// iteration 0 of a one-iteration budget, so max_iterations is also
// due (0 >= 1-1).
func TestEngine_ReportCompleteBeatsMaxIterations(t *testing.T) {
	provider := &scriptedProvider{responses: []sdk.CompletionResponse{
		{
			ToolCalls: []sdk.ToolCall{{ID: "1", Name: "report", Arguments: mustArgs(t, map[string]any{"answer": "done", "confidence": 0.9})}},
			Usage:     sdk.TokenUsage{TotalTokens: 50},
		},
	}}
	e := newTestEngine(t, &scriptedRouter{provider: provider})

	run := baseRun()
	run.ConfiguredMax = 1

	result := e.Execute(context.Background(), run)

	assert.Equal(t, OutcomeComplete, result.Outcome)
	assert.Equal(t, stopcond.ReasonReportComplete, result.ReasonCode)
	assert.Equal(t, "done", result.Answer)
	assert.Equal(t, 1, result.Iterations)
}

// S2: abort before first iteration — the context is already
// cancelled, so the very first preLLMStopCheck must fire before any
// collaborator call happens.
func TestEngine_AbortBeforeFirstIteration(t *testing.T) {
	provider := &scriptedProvider{responses: []sdk.CompletionResponse{
		{ToolCalls: []sdk.ToolCall{{Name: "report", Arguments: mustArgs(t, map[string]any{"answer": "should never run"})}}},
	}}
	e := newTestEngine(t, &scriptedRouter{provider: provider})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := e.Execute(ctx, baseRun())

	assert.Equal(t, OutcomeComplete, result.Outcome)
	assert.Equal(t, stopcond.ReasonAbortSignal, result.ReasonCode)
	assert.Equal(t, 0, provider.calls, "collaborator must never be called once aborted")
}

// S3: hard budget beats no_tool_calls — the model stops proposing
// tool calls exactly when the hard token limit is already exceeded.
func TestEngine_HardBudgetBeatsNoToolCalls(t *testing.T) {
	provider := &scriptedProvider{responses: []sdk.CompletionResponse{
		{Content: "thinking out loud, no tool calls", Usage: sdk.TokenUsage{TotalTokens: 1000}},
	}}
	e := newTestEngine(t, &scriptedRouter{provider: provider})

	run := baseRun()
	run.HardTokenLimit = 500

	result := e.Execute(context.Background(), run)

	assert.Equal(t, stopcond.ReasonHardBudget, result.ReasonCode)
}

// A run that keeps reading the same file with the same arguments
// forever must trip loop detection rather than spin until the
// iteration ceiling.
func TestEngine_LoopDetectionTripsOnRepeatedIdenticalCalls(t *testing.T) {
	readCall := sdk.CompletionResponse{
		ToolCalls: []sdk.ToolCall{{Name: "fs_read", Arguments: mustArgs(t, map[string]any{"path": "a.go"})}},
		Usage:     sdk.TokenUsage{TotalTokens: 10},
	}
	provider := &scriptedProvider{responses: []sdk.CompletionResponse{readCall}}
	e := newTestEngine(t, &scriptedRouter{provider: provider})

	run := baseRun()
	run.ConfiguredMax = 50

	result := e.Execute(context.Background(), run)

	assert.Equal(t, stopcond.ReasonLoopDetected, result.ReasonCode)
	assert.Less(t, result.Iterations, 50, "loop detection must cut the run short of the iteration ceiling")
}

// When the model simply stops proposing tool calls but the ledger and
// tool-use evidence look healthy, the run completes rather than
// escalating.
func TestEngine_NoToolCallsWithHealthyEvidenceCompletes(t *testing.T) {
	provider := &scriptedProvider{responses: []sdk.CompletionResponse{
		{
			ToolCalls: []sdk.ToolCall{{Name: "fs_read", Arguments: mustArgs(t, map[string]any{"path": "a.go"})}},
			Usage:     sdk.TokenUsage{TotalTokens: 10},
		},
		{Content: "all done, no further action needed", Usage: sdk.TokenUsage{TotalTokens: 10}},
	}}
	e := newTestEngine(t, &scriptedRouter{provider: provider})

	result := e.Execute(context.Background(), baseRun())

	assert.Equal(t, stopcond.ReasonNoToolCalls, result.ReasonCode)
	assert.NotEqual(t, OutcomeEscalate, result.Outcome)
}

// A collaborator error never propagates as a Go error: it always
// comes back as a populated RunResult.
func TestEngine_CollaboratorErrorNeverPropagates(t *testing.T) {
	e := newTestEngine(t, &erroringRouter{})

	result := e.Execute(context.Background(), baseRun())

	assert.Equal(t, ReasonIterationError, result.ReasonCode)
	assert.Equal(t, OutcomeComplete, result.Outcome)
}

type erroringRouter struct{}

func (erroringRouter) Complete(req sdk.CompletionRequest) (*sdk.CompletionResponse, error) {
	return nil, assertErr
}
func (erroringRouter) Stream(req sdk.CompletionRequest) (<-chan sdk.StreamChunk, error) {
	return nil, assertErr
}
func (erroringRouter) CountTokens(content string) (int, error)  { return 0, nil }
func (r erroringRouter) ForPlanning() sdk.LLMProvider            { return erroringProvider{} }
func (r erroringRouter) ForExecution() sdk.LLMProvider           { return erroringProvider{} }
func (r erroringRouter) ForValidation() sdk.LLMProvider          { return erroringProvider{} }

type erroringProvider struct{}

func (erroringProvider) Name() string { return "erroring" }
func (erroringProvider) Complete(req sdk.CompletionRequest) (*sdk.CompletionResponse, error) {
	return nil, assertErr
}
func (erroringProvider) Stream(req sdk.CompletionRequest) (<-chan sdk.StreamChunk, error) {
	return nil, assertErr
}
func (erroringProvider) CountTokens(content string) (int, error) { return 0, nil }

var assertErr = errors.New("collaborator unavailable")
