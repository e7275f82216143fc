package quality

// DefaultIterationHint is used when the task provides no explicit
// iteration hint.
const DefaultIterationHint = 12

// ExtensionIncrement is how many iterations an extension grants.
const ExtensionIncrement = 5

// InitialBudget is min(configuredMax, taskHint or DefaultIterationHint).
func InitialBudget(configuredMax, taskHint int) int {
	hint := taskHint
	if hint <= 0 {
		hint = DefaultIterationHint
	}
	if configuredMax > 0 && configuredMax < hint {
		return configuredMax
	}
	return hint
}

// ExtensionContext carries the signals MaybeExtend needs.
type ExtensionContext struct {
	RecentProgress bool
	RecentSignal   bool
	StuckCounter   int
	StuckThreshold int
}

// MaybeExtend is tested once per iteration after tool execution. It
// grows the ceiling by ExtensionIncrement when the run is within one
// iteration of the current ceiling and either recent progress or a
// recent signal was observed — unless the run is stuck with no
// recent signal, in which case it never extends. The result is
// monotonic: MaybeExtend(n, M, ctx) >= M always holds.
func MaybeExtend(iteration, maxIterations int, ctx ExtensionContext) int {
	if ctx.StuckCounter > ctx.StuckThreshold && !ctx.RecentSignal {
		return maxIterations
	}
	if iteration >= maxIterations-1 && (ctx.RecentProgress || ctx.RecentSignal) {
		return maxIterations + ExtensionIncrement
	}
	return maxIterations
}
