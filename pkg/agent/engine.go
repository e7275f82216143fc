package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/loopwright/koru/internal/logger"
	"github.com/loopwright/koru/pkg/ledger"
	"github.com/loopwright/koru/pkg/memory"
	"github.com/loopwright/koru/pkg/monitor"
	"github.com/loopwright/koru/pkg/quality"
	"github.com/loopwright/koru/pkg/sdk"
	"github.com/loopwright/koru/pkg/snapshot"
	"github.com/loopwright/koru/pkg/stopcond"
	"github.com/loopwright/koru/pkg/toolkit"
	"github.com/loopwright/koru/pkg/toolkit/normalize"
	"github.com/loopwright/koru/pkg/trace"
)

// Engine drives the reason-act loop: it asks an LLM collaborator for
// the next move, dispatches whatever tool calls it proposes through
// the tool manager, and lets a stop-condition arbiter decide when to
// stop. It never returns an error from Execute — every failure mode,
// including collaborator errors, is folded into a RunResult.
type Engine struct {
	llm   sdk.LLMRouter
	tools *toolkit.Manager

	traces    *trace.Writer
	snapshots *snapshot.Store
	arbiter   *stopcond.Arbiter

	circuit *CircuitBreaker
	limiter *RateLimiter
	hooks   *sdk.HookRegistry

	reads *normalize.ReadHistory

	monitor       monitor.Monitor
	lastScoreByID map[string]float64
	scoreMu       sync.Mutex

	systemPrompt   string
	stuckThreshold int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineCircuitBreaker installs a circuit breaker shared across
// runs (progress/error tripwires live at the engine, not the run).
func WithEngineCircuitBreaker(cb *CircuitBreaker) EngineOption {
	return func(e *Engine) { e.circuit = cb }
}

// WithEngineRateLimiter installs a rate limiter bounding LLM calls.
func WithEngineRateLimiter(rl *RateLimiter) EngineOption {
	return func(e *Engine) { e.limiter = rl }
}

// WithEngineHooks installs a lifecycle hook registry.
func WithEngineHooks(h *sdk.HookRegistry) EngineOption {
	return func(e *Engine) { e.hooks = h }
}

// WithSystemPrompt overrides the default system prompt sent with
// every completion request.
func WithSystemPrompt(prompt string) EngineOption {
	return func(e *Engine) { e.systemPrompt = prompt }
}

// WithStuckThreshold overrides the default iterations-since-progress
// stuck threshold.
func WithStuckThreshold(n int) EngineOption {
	return func(e *Engine) { e.stuckThreshold = n }
}

// WithEngineMonitor installs a monitor.Monitor that every finalized
// run emits agent.kpi.run_completed (and agent.kpi.quality_regression,
// when this agent's score dropped from its previous run) to.
func WithEngineMonitor(m monitor.Monitor) EngineOption {
	return func(e *Engine) { e.monitor = m }
}

const defaultSystemPrompt = "You are an autonomous coding agent. Use the available tools to " +
	"accomplish the task, then call report with your final answer."

// NewEngine wires the execution loop's collaborators: an LLM router,
// a tool manager, the crash-safe tracer, and the file-change
// snapshot store. The stop-condition arbiter may carry
// caller-registered Conditions; built-ins are always active.
func NewEngine(llm sdk.LLMRouter, tools *toolkit.Manager, traces *trace.Writer, snapshots *snapshot.Store, arbiter *stopcond.Arbiter, opts ...EngineOption) *Engine {
	e := &Engine{
		llm:            llm,
		tools:          tools,
		traces:         traces,
		snapshots:      snapshots,
		arbiter:        arbiter,
		hooks:          sdk.NewHookRegistry(),
		reads:          normalize.NewReadHistory(),
		lastScoreByID:  make(map[string]float64),
		systemPrompt:   defaultSystemPrompt,
		stuckThreshold: 4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// runState is the mutable bookkeeping threaded through one Execute
// call; it backs both the quality snapshot and the loop detector.
type runState struct {
	messages        []sdk.Message
	totalTokens     int
	toolUseCounts   map[string]int
	toolErrorCount  int
	filesRead       int
	filesModified   int
	filesCreated    int
	searchHitCount  int
	touchedDomains  map[string]bool
	lastToolNames   []string
	stuckCounter    int
	lastProgressIter int
	loop            *LoopDetector
}

// Execute runs the reason-act loop to completion: onIterationStart,
// preLLMStopCheck, callLLM, accountTokens, preToolStopCheck,
// executeTools, postToolStopCheck, extendBudget, onIterationEnd —
// repeated until the arbiter fires or a collaborator error occurs.
func (e *Engine) Execute(ctx context.Context, run RunContext) *RunResult {
	tr := e.traces.Open(run.TaskID)
	fsm := ledger.NewFSM()
	led := ledger.New()
	mem := memory.NewStore(run.SessionID)

	if err := fsm.Transition(ledger.PhaseExecuting); err != nil {
		logger.GetLogger().Warn().Err(err).Msg("agent: unexpected initial transition failure")
	}

	maxIterations := quality.InitialBudget(run.ConfiguredMax, run.TaskIterationHint)
	hardTokenLimit := run.HardTokenLimit

	st := &runState{
		messages:       []sdk.Message{{Role: "user", Content: run.TaskText}},
		toolUseCounts:  make(map[string]int),
		touchedDomains: make(map[string]bool),
		loop:           NewLoopDetector(),
	}

	iteration := 0
	for {
		e.onIterationStart(ctx, tr, iteration)

		if res := e.preLLMStopCheck(ctx, st, run, iteration); res != nil {
			return e.finalize(tr, fsm, led, st, run, *res, iteration)
		}

		resp, err := e.callLLM(ctx, run, st)
		if err != nil {
			if e.circuit != nil {
				e.circuit.RecordError(err)
			}
			tr.Record(trace.Event{Type: trace.EventErrorCaptured, Iteration: &iteration, Payload: map[string]any{"error": err.Error()}})
			return e.finalize(tr, fsm, led, st, run, stopcond.Result{
				Reason:  ReasonIterationError,
				Message: "collaborator error: " + err.Error(),
			}, iteration)
		}

		e.accountTokens(st, resp)

		calls := parseToolCalls(resp)
		if res := e.preToolStopCheck(ctx, st, run, iteration, calls, hardTokenLimit); res != nil {
			return e.finalize(tr, fsm, led, st, run, *res, iteration)
		}

		e.executeTools(ctx, tr, led, mem, run, st, iteration, calls)

		if res := e.postToolStopCheck(st, run, iteration, maxIterations, hardTokenLimit); res != nil {
			return e.finalize(tr, fsm, led, st, run, *res, iteration)
		}

		maxIterations = e.extendBudget(st, iteration, maxIterations)

		e.onIterationEnd(ctx, tr, iteration)
		iteration++
	}
}

func (e *Engine) onIterationStart(ctx context.Context, tr *trace.Trace, iteration int) {
	it := iteration
	tr.Record(trace.Event{Type: trace.EventIterationStart, Iteration: &it})
	if e.hooks != nil {
		_ = e.hooks.Run(ctx, &sdk.HookContext{Type: sdk.HookTypePreIteration, Iteration: iteration})
	}
}

func (e *Engine) onIterationEnd(ctx context.Context, tr *trace.Trace, iteration int) {
	it := iteration
	tr.Record(trace.Event{Type: trace.EventIterationEnd, Iteration: &it})
	if e.hooks != nil {
		_ = e.hooks.Run(ctx, &sdk.HookContext{Type: sdk.HookTypePostIteration, Iteration: iteration})
	}
}

// preLLMStopCheck only has abort and hard-budget signals available:
// no tool calls have been proposed yet this iteration.
func (e *Engine) preLLMStopCheck(ctx context.Context, st *runState, run RunContext, iteration int) *stopcond.Result {
	return e.arbiter.Evaluate(stopcond.Snapshot{
		Aborted:        ctx.Err() != nil,
		HardTokenLimit: run.HardTokenLimit,
		TotalTokens:    st.totalTokens,
		Iteration:      iteration,
		CallsKnown:     false,
	})
}

func (e *Engine) callLLM(ctx context.Context, run RunContext, st *runState) (*sdk.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req := sdk.CompletionRequest{
		Model:    run.Model,
		System:   e.systemPrompt,
		Messages: st.messages,
		Tools:    e.toolDefinitions(),
	}
	provider := e.providerFor(run.Tier)
	resp, err := provider.Complete(req)
	if err != nil {
		return nil, err
	}
	st.messages = append(st.messages, sdk.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
	return resp, nil
}

func (e *Engine) providerFor(tier string) sdk.LLMProvider {
	switch tier {
	case "large":
		return e.llm.ForPlanning()
	case "small":
		return e.llm.ForValidation()
	default:
		return e.llm.ForExecution()
	}
}

func (e *Engine) accountTokens(st *runState, resp *sdk.CompletionResponse) {
	st.totalTokens += resp.Usage.TotalTokens
}

// preToolStopCheck adds report_complete and no_tool_calls to the
// abort/hard-budget signals already active pre-LLM.
func (e *Engine) preToolStopCheck(ctx context.Context, st *runState, run RunContext, iteration int, calls []stopcond.ToolCall, hardTokenLimit int) *stopcond.Result {
	return e.arbiter.Evaluate(stopcond.Snapshot{
		Aborted:        ctx.Err() != nil,
		HardTokenLimit: hardTokenLimit,
		TotalTokens:    st.totalTokens,
		Iteration:      iteration,
		ProposedCalls:  calls,
		CallsKnown:     true,
	})
}

// postToolStopCheck is the only phase where max_iterations and
// loop_detected are evaluated, since both depend on state only known
// after at least one tool round has run.
func (e *Engine) postToolStopCheck(st *runState, run RunContext, iteration, maxIterations, hardTokenLimit int) *stopcond.Result {
	return e.arbiter.Evaluate(stopcond.Snapshot{
		HardTokenLimit: hardTokenLimit,
		TotalTokens:    st.totalTokens,
		Iteration:      iteration,
		MaxIterations:  maxIterations,
		LoopDetected:   st.loop.Detected(),
		CallsKnown:     false,
	})
}

func (e *Engine) extendBudget(st *runState, iteration, maxIterations int) int {
	return quality.MaybeExtend(iteration, maxIterations, quality.ExtensionContext{
		RecentProgress: iteration-st.lastProgressIter <= 1,
		RecentSignal:   st.stuckCounter == 0,
		StuckCounter:   st.stuckCounter,
		StuckThreshold: e.stuckThreshold,
	})
}

func parseToolCalls(resp *sdk.CompletionResponse) []stopcond.ToolCall {
	calls := make([]stopcond.ToolCall, 0, len(resp.ToolCalls))
	for _, tc := range resp.ToolCalls {
		var input map[string]any
		if tc.Arguments != "" {
			_ = json.Unmarshal([]byte(tc.Arguments), &input)
		}
		calls = append(calls, stopcond.ToolCall{Name: tc.Name, Input: input})
	}
	return calls
}

// executeTools normalizes each proposed call's input, runs it through
// the tool manager's guard pipeline, records a ledger step and trace
// event per call, captures file-change snapshots for mutating
// filesystem tools, and feeds the loop detector and quality
// counters.
func (e *Engine) executeTools(ctx context.Context, tr *trace.Trace, led *ledger.Ledger, mem *memory.Store, run RunContext, st *runState, iteration int, calls []stopcond.ToolCall) {
	if len(calls) == 0 {
		return
	}

	var signatures []string
	progressed := false

	for _, call := range calls {
		input := e.normalizeInput(run, call)
		stepID := led.Start(call.Name, call.Name)

		result := e.tools.Execute(ctx, call.Name, input)

		st.toolUseCounts[call.Name]++
		st.touchedDomains[ledgerDomain(call.Name)] = true
		signatures = append(signatures, ToolCallSignature(call.Name, input))

		if result.Success {
			led.Complete(stepID, summarizeOutput(result.Output))
			e.trackEffects(run, mem, ctx, call.Name, input, result, st, &progressed)
		} else {
			led.Fail(stepID, result.ErrorDetails.Message)
			st.toolErrorCount++
		}

		it := iteration
		tr.Record(trace.Event{
			Type:      trace.EventToolExecution,
			Iteration: &it,
			Payload: map[string]any{
				"tool":    call.Name,
				"success": result.Success,
			},
		})

		st.messages = append(st.messages, sdk.Message{
			Role:       "tool",
			Content:    toolResultContent(result),
			ToolCallID: call.Name,
		})
	}

	st.loop.Record(strings.Join(signatures, "|"))
	if progressed {
		st.lastProgressIter = iteration
		st.stuckCounter = 0
	} else {
		st.stuckCounter++
	}

	st.lastToolNames = appendCapped(st.lastToolNames, lastCallName(calls), 3)
	if quality.IsStuck(st.lastToolNames, iteration-st.lastProgressIter, e.stuckThreshold) {
		st.stuckCounter++
	}
}

func lastCallName(calls []stopcond.ToolCall) string {
	if len(calls) == 0 {
		return ""
	}
	return calls[len(calls)-1].Name
}

func appendCapped(list []string, item string, cap int) []string {
	if item == "" {
		return list
	}
	list = append(list, item)
	if len(list) > cap {
		list = list[len(list)-cap:]
	}
	return list
}

// normalizeInput runs the tool-input normalizer (Component D) for
// the call shapes it knows about, then passes everything else
// through untouched.
func (e *Engine) normalizeInput(run RunContext, call stopcond.ToolCall) map[string]any {
	input := call.Input
	if input == nil {
		input = map[string]any{}
	}

	switch {
	case strings.Contains(call.Name, "search") || strings.Contains(call.Name, "find"):
		if pattern, ok := input["pattern"].(string); ok {
			input["pattern"] = normalize.WrapGlobPattern(pattern)
		}
	case call.Name == "fs_read":
		offset, _ := input["offset"].(float64)
		limit, _ := input["limit"].(float64)
		path, _ := input["path"].(string)
		plan, err := e.reads.NormalizeRead(tierOf(run.Tier), normalize.ReadRequest{
			Path:   path,
			Offset: int(offset),
			Limit:  int(limit),
		}, fileExistsOnDisk, fileExistsOnDisk)
		if err == nil && plan != nil {
			input["path"] = plan.Path
			input["offset"] = plan.Offset
			input["limit"] = plan.Limit
		}
	case call.Name == "shell_exec":
		if cwd, ok := input["cwd"].(string); ok {
			if resolved, err := normalize.NormalizeShellCwd(".", cwd); err == nil {
				input["cwd"] = resolved
			}
		}
	}

	return input
}

func tierOf(tier string) normalize.Tier {
	switch normalize.Tier(tier) {
	case normalize.TierSmall, normalize.TierLarge:
		return normalize.Tier(tier)
	default:
		return normalize.TierMedium
	}
}

func fileExistsOnDisk(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (e *Engine) trackEffects(run RunContext, mem *memory.Store, ctx context.Context, toolName string, input map[string]any, result toolkit.Result, st *runState, progressed *bool) {
	switch {
	case strings.Contains(toolName, "read"):
		st.filesRead++
	case strings.Contains(toolName, "write") || strings.Contains(toolName, "edit"):
		st.filesModified++
		*progressed = true
		e.captureFileChange(run, input, snapshot.OpPatch)
	case strings.Contains(toolName, "create"):
		st.filesCreated++
		*progressed = true
		e.captureFileChange(run, input, snapshot.OpWrite)
	case strings.Contains(toolName, "search") || strings.Contains(toolName, "find"):
		st.searchHitCount++
	}

	if content := summarizeOutput(result.Output); content != "" {
		key, archived := mem.RecordToolOutput(ctx, toolName, content)
		if archived {
			mem.Hot().Remember(memory.CategoryToolResult, "archived "+toolName+" output as "+key, toolName, 0.5, 0, 0)
		}
	}
}

// captureFileChange records a file-change snapshot (Component B) for
// a mutating filesystem tool. Missing path/content inputs are
// skipped rather than guessed at.
func (e *Engine) captureFileChange(run RunContext, input map[string]any, op snapshot.Operation) {
	if e.snapshots == nil {
		return
	}
	path, ok := input["path"].(string)
	if !ok || path == "" {
		return
	}
	after, _ := input["content"].(string)
	var before *string
	if prior, ok := input["old_content"].(string); ok {
		before = &prior
	}
	if _, err := e.snapshots.CaptureChange(run.SessionID, run.AgentID, run.RunID, path, op, before, after, nil); err != nil {
		logger.GetLogger().Warn().Err(err).Str("path", path).Msg("agent: failed to capture file-change snapshot")
	}
}

func summarizeOutput(output map[string]any) string {
	if output == nil {
		return ""
	}
	raw, err := json.Marshal(output)
	if err != nil {
		return ""
	}
	return string(raw)
}

func toolResultContent(result toolkit.Result) string {
	if !result.Success {
		return result.ErrorDetails.Message
	}
	return summarizeOutput(result.Output)
}

func ledgerDomain(toolName string) string {
	if idx := strings.IndexByte(toolName, '_'); idx > 0 {
		return toolName[:idx]
	}
	return toolName
}

// toolDefinitions projects the tool manager's registered tools into
// the shape the LLM collaborator expects.
func (e *Engine) toolDefinitions() []sdk.Tool {
	views := e.tools.ListTools(toolkit.FilterOptions{})
	defs := make([]sdk.Tool, 0, len(views))
	for _, v := range views {
		defs = append(defs, sdk.Tool{
			Name:        v.DisplayName,
			Description: string(v.Tool.Capability),
			Parameters:  schemaToJSON(v.Tool.Schema),
		})
	}
	return defs
}

func schemaToJSON(schema toolkit.Schema) map[string]any {
	props := make(map[string]any, len(schema.Properties))
	for name, p := range schema.Properties {
		prop := map[string]any{"type": jsonType(p.Kind)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[name] = prop
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   schema.Required,
	}
}

func jsonType(kind toolkit.PropertyKind) string {
	switch kind {
	case toolkit.KindNumber:
		return "number"
	case toolkit.KindBoolean:
		return "boolean"
	case toolkit.KindObject:
		return "object"
	case toolkit.KindArray:
		return "array"
	default:
		return "string"
	}
}

// finalize turns one arbiter hit into a RunResult, running the
// quality gate whenever the stop reason isn't an unambiguous
// explicit completion.
func (e *Engine) finalize(tr *trace.Trace, fsm *ledger.FSM, led *ledger.Ledger, st *runState, run RunContext, res stopcond.Result, iteration int) *RunResult {
	nextPhase := ledger.PhaseReporting
	if res.Reason == stopcond.ReasonAbortSignal || res.Reason == ReasonIterationError {
		nextPhase = ledger.PhaseFailed
	}
	if err := fsm.Transition(nextPhase); err != nil {
		logger.GetLogger().Warn().Err(err).Msg("agent: phase transition rejected at finalize")
	}
	if nextPhase == ledger.PhaseReporting {
		_ = fsm.Transition(ledger.PhaseCompleted)
	}

	summary := led.Summarize()
	qr := quality.Evaluate(quality.Snapshot{
		ToolUseCounts:  st.toolUseCounts,
		FilesRead:      st.filesRead,
		FilesModified:  st.filesModified,
		FilesCreated:   st.filesCreated,
		ToolErrorCount: st.toolErrorCount,
		TouchedDomains: len(st.touchedDomains),
		SearchHitCount: st.searchHitCount,
		Ledger:         quality.LedgerSummary{HasFailed: summary.Failed > 0, HasPending: summary.Pending > 0},
		TaskText:       run.TaskText,
		IterationsUsed: iteration + 1,
		MultiStepTask:  run.MultiStepTask,
	})

	idx, err := tr.Finalize()
	if err != nil {
		logger.GetLogger().Warn().Err(err).Msg("agent: trace finalize failed")
	}

	result := &RunResult{
		ReasonCode:  res.Reason,
		Message:     res.Message,
		Quality:     qr,
		Iterations:  iteration + 1,
		TotalTokens: st.totalTokens,
		TraceIndex:  idx,
	}

	switch res.Reason {
	case stopcond.ReasonReportComplete:
		result.Outcome = OutcomeComplete
		if answer, ok := res.Metadata["answer"].(string); ok {
			result.Answer = answer
		}
		if conf, ok := res.Metadata["confidence"].(float64); ok {
			result.Confidence = conf
		}
	case stopcond.ReasonAbortSignal, ReasonIterationError:
		result.Outcome = OutcomeComplete
	case stopcond.ReasonNoToolCalls:
		if qr.Status == quality.VerdictPass {
			result.Outcome = OutcomeComplete
			result.Answer = lastAssistantText(st.messages)
		} else {
			result.Outcome = OutcomeEscalate
			result.EscalateReason = fmt.Sprintf("model stopped proposing tool calls with a %s quality verdict", qr.Status)
		}
	default: // hard_budget, max_iterations, loop_detected
		if qr.Status == quality.VerdictPass {
			result.Outcome = OutcomeComplete
			result.Answer = lastAssistantText(st.messages)
		} else {
			result.Outcome = OutcomeEscalate
			result.EscalateReason = fmt.Sprintf("%s with a %s quality verdict", res.Reason, qr.Status)
		}
	}

	e.emitKPI(run, result, qr)

	return result
}

// emitKPI publishes the run's analytics events (Component H's tie-in
// to the live monitor) when a monitor collaborator is configured.
// Absence of a monitor is not an error: KPI emission is observability,
// not a run-completion dependency.
func (e *Engine) emitKPI(run RunContext, result *RunResult, qr quality.Result) {
	if e.monitor == nil {
		return
	}
	e.monitor.Emit(monitor.RunCompletedEvent(run.AgentID, string(result.ReasonCode), result.Outcome, result.Iterations, result.TotalTokens, qr.Score))

	e.scoreMu.Lock()
	previous, seen := e.lastScoreByID[run.AgentID]
	e.lastScoreByID[run.AgentID] = qr.Score
	e.scoreMu.Unlock()

	if seen && qr.Score < previous {
		e.monitor.Emit(monitor.QualityRegressionEvent(run.AgentID, previous, qr.Score))
	}
}

func lastAssistantText(messages []sdk.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "assistant" && messages[i].Content != "" {
			return messages[i].Content
		}
	}
	return ""
}
