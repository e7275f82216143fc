package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCapability(t *testing.T) {
	cases := map[string]Capability{
		"report":       CapFinalizeResult,
		"todo_add":     CapProgressTracking,
		"memory_write": CapMemoryAccess,
		"fs_read":      CapReadResource,
		"fs_list":      CapReadResource,
		"fs_write":     CapMutateResource,
		"shell_exec":   CapExecuteCommand,
		"grep_search":  CapDiscoverResource,
		"find_def":     CapDiscoverResource,
		"mcp_call":     CapIntegrateExternal,
		"plugin_load":  CapIntegrateExternal,
		"anything_else": CapGeneralAction,
	}
	for tool, want := range cases {
		assert.Equal(t, want, ClassifyCapability(tool), tool)
	}
}

func TestLedger_CompleteAndFailAreIdempotent(t *testing.T) {
	l := New()
	id := l.Start("read config", "fs_read")

	l.Complete(id, "read 10 lines")
	l.Complete(id, "second call should be no-op")
	l.Fail(id, "should also be a no-op")

	steps := l.Steps()
	assert.Len(t, steps, 1)
	assert.Equal(t, StatusDone, steps[0].Status)
	assert.Equal(t, "read 10 lines", steps[0].Evidence)
}

func TestLedger_Summarize(t *testing.T) {
	l := New()
	id1 := l.Start("a", "fs_read")
	l.Complete(id1, "ok")
	id2 := l.Start("b", "shell_exec")
	l.Fail(id2, "boom")
	l.Start("c", "grep_search")

	sum := l.Summarize()
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 1, sum.Done)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Pending)
	assert.Equal(t, 1, sum.ByCapability[CapReadResource])
	assert.Equal(t, 1, sum.ByCapability[CapExecuteCommand])
	assert.Equal(t, 1, sum.ByCapability[CapDiscoverResource])
}

func TestLedger_HasFailedAndPending(t *testing.T) {
	l := New()
	assert.False(t, l.HasFailedStep())
	assert.False(t, l.HasPendingStep())

	id := l.Start("a", "fs_read")
	assert.True(t, l.HasPendingStep())

	l.Fail(id, "err")
	assert.True(t, l.HasFailedStep())
	assert.False(t, l.HasPendingStep())
}
