package agent

import (
	"github.com/loopwright/koru/pkg/quality"
	"github.com/loopwright/koru/pkg/stopcond"
	"github.com/loopwright/koru/pkg/trace"
)

// RunContext is everything one Execute call needs to know about the
// task it is driving to completion.
type RunContext struct {
	TaskID    string
	SessionID string
	AgentID   string
	RunID     string

	TaskText string
	Tier     string
	Model    string

	// TaskIterationHint and ConfiguredMax feed quality.InitialBudget;
	// zero means "use the default".
	TaskIterationHint int
	ConfiguredMax     int
	HardTokenLimit    int

	MultiStepTask bool
	Metadata      map[string]any
}

// RunResult is the engine's always-populated, never-an-error outcome
// of one Execute call.
type RunResult struct {
	Outcome string // "complete" | "escalate"

	ReasonCode stopcond.ReasonCode
	Message    string

	Answer     string
	Confidence float64

	Quality    quality.Result
	Iterations int

	TotalTokens int
	TraceIndex  *trace.Index

	EscalateReason string
}

const (
	OutcomeComplete = "complete"
	OutcomeEscalate = "escalate"

	// ReasonIterationError is used when the LLM collaborator itself
	// fails; the engine never propagates that error to the caller.
	ReasonIterationError stopcond.ReasonCode = "iteration_error"
)
