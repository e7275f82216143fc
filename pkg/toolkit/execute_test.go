package toolkit

import (
	"context"
	"errors"
	"testing"

	"github.com/loopwright/koru/pkg/ioerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGuard struct {
	name          string
	inputDecision *GuardDecision
	outputDecision *GuardDecision
}

func (g *stubGuard) Name() string { return g.name }
func (g *stubGuard) ValidateInput(ctx context.Context, toolName string, input map[string]any) GuardDecision {
	if g.inputDecision != nil {
		return *g.inputDecision
	}
	return GuardDecision{OK: true}
}
func (g *stubGuard) ValidateOutput(ctx context.Context, toolName string, output map[string]any) GuardDecision {
	if g.outputDecision != nil {
		return *g.outputDecision
	}
	return GuardDecision{OK: true}
}

func newEchoPack(id string, guards ...Guard) *Pack {
	p := NewPack(id, id, PolicyError, 0, WithGuards(guards...))
	p.AddTool(Tool{
		Name:       "echo",
		Capability: CapGeneral,
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			return map[string]any{"echoed": input["msg"]}, nil
		},
	})
	return p
}

func TestExecute_ToolNotFound(t *testing.T) {
	m := NewManager()
	result := m.Execute(context.Background(), "missing", nil)
	require.False(t, result.Success)
	assert.Equal(t, string(ioerr.CodeToolNotFound), result.ErrorDetails.Code)
}

func TestExecute_HappyPath(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(newEchoPack("e")))

	result := m.Execute(context.Background(), "echo", map[string]any{"msg": "hi"})
	require.True(t, result.Success)
	assert.Equal(t, "hi", result.Output["echoed"])
}

func TestExecute_DeniedCommandBlocked(t *testing.T) {
	m := NewManager()
	p := NewPack("shell", "shell", PolicyError, 0)
	p.Permissions = &Permissions{DeniedCommands: []string{"rm -rf"}}
	p.AddTool(Tool{
		Name: "shell_exec",
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		},
	})
	require.NoError(t, m.Register(p))

	result := m.Execute(context.Background(), "shell_exec", map[string]any{"command": "rm -rf /"})
	require.False(t, result.Success)
	assert.Equal(t, string(ioerr.CodePermissionDenied), result.ErrorDetails.Code)
}

func TestExecute_PathOutsideAllowedRootsBlocked(t *testing.T) {
	m := NewManager()
	p := NewPack("fs", "fs", PolicyError, 0)
	p.Permissions = &Permissions{AllowedPathRoots: []string{"/workspace/"}}
	p.AddTool(readFileTool("read_file"))
	require.NoError(t, m.Register(p))

	result := m.Execute(context.Background(), "read_file", map[string]any{"path": "/etc/passwd"})
	require.False(t, result.Success)
	assert.Equal(t, string(ioerr.CodePathDenied), result.ErrorDetails.Code)
}

func TestExecute_InputGuardRejectsShortCircuitsExecution(t *testing.T) {
	m := NewManager()
	called := false
	p := NewPack("e", "e", PolicyError, 0, WithGuards(&stubGuard{
		name:          "block",
		inputDecision: &GuardDecision{OK: false, Reason: "not allowed"},
	}))
	p.AddTool(Tool{
		Name: "echo",
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			called = true
			return map[string]any{}, nil
		},
	})
	require.NoError(t, m.Register(p))

	result := m.Execute(context.Background(), "echo", map[string]any{})
	require.False(t, result.Success)
	assert.Equal(t, string(ioerr.CodeSchemaValidationFail), result.ErrorDetails.Code)
	assert.False(t, called)
}

func TestExecute_InputGuardSanitizesBeforeExecution(t *testing.T) {
	m := NewManager()
	sanitized := map[string]any{"msg": "clean"}
	require.NoError(t, m.Register(newEchoPack("e", &stubGuard{
		name:          "sanitize",
		inputDecision: &GuardDecision{OK: true, Sanitized: sanitized},
	})))

	result := m.Execute(context.Background(), "echo", map[string]any{"msg": "dirty"})
	require.True(t, result.Success)
	assert.Equal(t, "clean", result.Output["echoed"])
}

func TestExecute_OutputGuardRejects(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Register(newEchoPack("e", &stubGuard{
		name:           "block-out",
		outputDecision: &GuardDecision{OK: false, Reason: "leaked secret"},
	})))

	result := m.Execute(context.Background(), "echo", map[string]any{"msg": "x"})
	require.False(t, result.Success)
	assert.Equal(t, string(ioerr.CodeSchemaValidationFail), result.ErrorDetails.Code)
}

func TestExecute_OutputGuardSanitizesAndFlags(t *testing.T) {
	m := NewManager()
	sanitized := map[string]any{"echoed": "[redacted]"}
	require.NoError(t, m.Register(newEchoPack("e", &stubGuard{
		name:           "redact",
		outputDecision: &GuardDecision{OK: true, Action: ActionSanitize, Sanitized: sanitized},
	})))

	result := m.Execute(context.Background(), "echo", map[string]any{"msg": "secret"})
	require.True(t, result.Success)
	assert.True(t, result.Sanitized)
	assert.Equal(t, "[redacted]", result.Output["echoed"])
}

func TestExecute_AuditTrailInvokedOnSuccess(t *testing.T) {
	m := NewManager()
	var auditedTool, auditedPack string
	p := newEchoPack("e")
	p.Permissions = &Permissions{AuditTrail: func(toolName, packID string, input map[string]any) {
		auditedTool, auditedPack = toolName, packID
	}}
	require.NoError(t, m.Register(p))

	result := m.Execute(context.Background(), "echo", map[string]any{"msg": "x"})
	require.True(t, result.Success)
	assert.Equal(t, "echo", auditedTool)
	assert.Equal(t, "e", auditedPack)
}

func TestExecute_ExecutorErrorIsRetryable(t *testing.T) {
	m := NewManager()
	p := NewPack("e", "e", PolicyError, 0)
	p.AddTool(Tool{
		Name: "fail",
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			return nil, errors.New("boom")
		},
	})
	require.NoError(t, m.Register(p))

	result := m.Execute(context.Background(), "fail", map[string]any{})
	require.False(t, result.Success)
	assert.Equal(t, string(ioerr.CodeExecutionError), result.ErrorDetails.Code)
	assert.True(t, result.ErrorDetails.Retryable)
}

func TestExecute_ExecutorPanicIsRecovered(t *testing.T) {
	m := NewManager()
	p := NewPack("e", "e", PolicyError, 0)
	p.AddTool(Tool{
		Name: "panics",
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			panic("kaboom")
		},
	})
	require.NoError(t, m.Register(p))

	result := m.Execute(context.Background(), "panics", map[string]any{})
	require.False(t, result.Success)
	assert.Equal(t, string(ioerr.CodeExecutionError), result.ErrorDetails.Code)
}
