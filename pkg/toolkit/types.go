// Package toolkit implements the tool manager and guard pipeline: a
// multi-pack tool registry with namespace conflict resolution,
// permission sandboxing, and synchronous input/output guard chains.
package toolkit

import "context"

// Capability is the declared purpose tag for a tool.
type Capability string

const (
	CapFilesystem  Capability = "filesystem"
	CapSearch      Capability = "search"
	CapShell       Capability = "shell"
	CapMemory      Capability = "memory"
	CapInteraction Capability = "interaction"
	CapDelegation  Capability = "delegation"
	CapOrganization Capability = "organization"
	CapGeneral     Capability = "general"
)

// ConflictPolicy governs what happens when two packs register a tool
// with the same short name.
type ConflictPolicy string

const (
	PolicyError           ConflictPolicy = "error"
	PolicyNamespacePrefix ConflictPolicy = "namespace-prefix"
	PolicyOverride        ConflictPolicy = "override"
)

// Schema is a tagged-variant tree describing a tool's input shape,
// built without reflection and used to advertise the tool to the
// model and to MCP clients. Manager.Execute does not check inputs
// against it; input guards see the raw input map.
type Schema struct {
	Properties map[string]Property
	Required   []string
}

// PropertyKind is the tagged-variant discriminator for one field.
type PropertyKind string

const (
	KindString  PropertyKind = "string"
	KindNumber  PropertyKind = "number"
	KindBoolean PropertyKind = "boolean"
	KindObject  PropertyKind = "object"
	KindArray   PropertyKind = "array"
)

// Property describes one schema field.
type Property struct {
	Kind        PropertyKind
	Description string
	Enum        []string
	Items       *Property
}

// Executor is a pure function of input plus the external world; it
// never mutates a run context directly.
type Executor func(ctx context.Context, input map[string]any) (map[string]any, error)

// Tool is one callable function exposed to the model.
type Tool struct {
	Name       string
	Schema     Schema
	ReadOnly   bool
	Capability Capability
	Exec       Executor
}

// Permissions sandbox a pack's tools.
type Permissions struct {
	DeniedCommands   []string
	AllowedPathRoots []string
	AuditTrail       func(toolName, packID string, input map[string]any)
}

// Guard inspects and may transform tool input or output. A guard may
// implement ValidateInput, ValidateOutput, or both; the zero value of
// either is treated as "not implemented" by the pipeline.
type Guard interface {
	Name() string
}

// InputValidator is implemented by guards that inspect/transform
// proposed tool input before execution.
type InputValidator interface {
	ValidateInput(ctx context.Context, toolName string, input map[string]any) GuardDecision
}

// OutputValidator is implemented by guards that inspect/transform a
// tool's output after execution.
type OutputValidator interface {
	ValidateOutput(ctx context.Context, toolName string, output map[string]any) GuardDecision
}

// GuardAction is what an output guard did to the payload.
type GuardAction string

const (
	ActionNone     GuardAction = ""
	ActionSanitize GuardAction = "sanitize"
)

// GuardDecision is the result of one guard's validation call.
type GuardDecision struct {
	OK        bool
	Reason    string
	Action    GuardAction
	Sanitized map[string]any
}

// Result is the outcome of a tool execution, always returned — never
// an error — to the caller.
type Result struct {
	Success      bool
	Output       map[string]any
	ErrorDetails *ErrorDetails
	Sanitized    bool
}

// ErrorDetails carries the stable error vocabulary back to the model.
type ErrorDetails struct {
	Code      string
	Message   string
	Retryable bool
	Hint      string
}
