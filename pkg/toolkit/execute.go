package toolkit

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/loopwright/koru/internal/logger"
	"github.com/loopwright/koru/pkg/ioerr"
)

// Execute resolves name, enforces permissions, runs the input guard
// chain, invokes the executor, runs the output guard chain, and
// fires the audit callback. It never raises: every failure mode is
// represented in the returned Result.
func (m *Manager) Execute(ctx context.Context, name string, input map[string]any) Result {
	m.mu.RLock()
	b, ok := m.resolve(name)
	m.mu.RUnlock()

	if !ok {
		return errorResult(ioerr.CodeToolNotFound, "tool not found: "+name, false, "")
	}

	if r := m.checkPermissions(b, input); r != nil {
		return *r
	}

	for _, g := range b.pack.Guards {
		v, ok := g.(InputValidator)
		if !ok {
			continue
		}
		decision := v.ValidateInput(ctx, b.tool.Name, input)
		if !decision.OK {
			return errorResult(ioerr.CodeSchemaValidationFail, decision.Reason, false, "")
		}
		if decision.Sanitized != nil {
			input = decision.Sanitized
		}
	}

	output, err := safeInvoke(ctx, b.tool, input)
	if err != nil {
		return errorResult(ioerr.CodeExecutionError, err.Error(), true, "")
	}

	result := Result{Success: true, Output: output}
	for _, g := range b.pack.Guards {
		v, ok := g.(OutputValidator)
		if !ok {
			continue
		}
		decision := v.ValidateOutput(ctx, b.tool.Name, result.Output)
		if !decision.OK {
			return errorResult(ioerr.CodeSchemaValidationFail, decision.Reason, false, "")
		}
		if decision.Action == ActionSanitize && decision.Sanitized != nil {
			result.Output = decision.Sanitized
			result.Sanitized = true
		}
	}

	if b.pack.Permissions != nil && b.pack.Permissions.AuditTrail != nil {
		b.pack.Permissions.AuditTrail(b.tool.Name, b.pack.ID, input)
	}

	return result
}

// safeInvoke recovers from executor panics so a single bad tool can
// never take the manager down with it.
func safeInvoke(ctx context.Context, t Tool, input map[string]any) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.GetLogger().Error().Interface("panic", r).Str("tool", t.Name).Msg("toolkit: executor panicked")
			err = ioerr.Newf(ioerr.CodeExecutionError, "executor panicked: %v", r)
		}
	}()
	return t.Exec(ctx, input)
}

func (m *Manager) checkPermissions(b binding, input map[string]any) *Result {
	perm := b.pack.Permissions
	if perm == nil {
		return nil
	}
	if cmd, ok := input["command"].(string); ok && len(perm.DeniedCommands) > 0 {
		for _, denied := range perm.DeniedCommands {
			if strings.Contains(cmd, denied) {
				r := errorResult(ioerr.CodePermissionDenied, "command is denied by pack policy: "+denied, false, "use an allowed command")
				return &r
			}
		}
	}
	if path, ok := input["path"].(string); ok && len(perm.AllowedPathRoots) > 0 {
		allowed := false
		for _, root := range perm.AllowedPathRoots {
			candidate := path
			if !filepath.IsAbs(candidate) {
				candidate = filepath.Join(root, candidate)
			}
			rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(candidate))
			if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				allowed = true
				break
			}
		}
		if !allowed {
			r := errorResult(ioerr.CodePathDenied, "path is outside the pack's allowed roots: "+path, false, "use a path under an allowed root")
			return &r
		}
	}
	return nil
}

func errorResult(code ioerr.Code, message string, retryable bool, hint string) Result {
	return Result{
		Success: false,
		ErrorDetails: &ErrorDetails{
			Code:      string(code),
			Message:   message,
			Retryable: retryable,
			Hint:      hint,
		},
	}
}
