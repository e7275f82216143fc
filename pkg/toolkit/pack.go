package toolkit

// Pack owns a namespace, a set of tools, a conflict policy, a
// priority used to break override conflicts, and optional
// permissions. Packs live for the process lifetime.
type Pack struct {
	ID             string
	Namespace      string
	ConflictPolicy ConflictPolicy
	Priority       int
	Permissions    *Permissions
	Guards         []Guard

	tools        map[string]Tool
	enabledFn    func() bool
	initializeFn func() error
	disposeFn    func() error
}

// PackOption configures a Pack at construction.
type PackOption func(*Pack)

// WithEnabled sets the predicate that decides whether Register should
// silently skip this pack.
func WithEnabled(fn func() bool) PackOption {
	return func(p *Pack) { p.enabledFn = fn }
}

// WithPermissions attaches a permission sandbox to the pack.
func WithPermissions(perm *Permissions) PackOption {
	return func(p *Pack) { p.Permissions = perm }
}

// WithGuards attaches guards to the pack's execution pipeline.
func WithGuards(guards ...Guard) PackOption {
	return func(p *Pack) { p.Guards = append(p.Guards, guards...) }
}

// WithLifecycle attaches optional initialize/dispose hooks.
func WithLifecycle(initialize, dispose func() error) PackOption {
	return func(p *Pack) {
		p.initializeFn = initialize
		p.disposeFn = dispose
	}
}

// NewPack creates a tool pack.
func NewPack(id, namespace string, policy ConflictPolicy, priority int, opts ...PackOption) *Pack {
	p := &Pack{
		ID:             id,
		Namespace:      namespace,
		ConflictPolicy: policy,
		Priority:       priority,
		tools:          make(map[string]Tool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AddTool registers a tool definition on the pack, prior to the pack
// itself being registered with a Manager.
func (p *Pack) AddTool(t Tool) *Pack {
	p.tools[t.Name] = t
	return p
}

// Tools returns every tool defined on this pack. The pack keeps its
// tools in a map, so the order is not defined; Manager.ListTools
// returns them sorted by display name.
func (p *Pack) Tools() []Tool {
	out := make([]Tool, 0, len(p.tools))
	for _, t := range p.tools {
		out = append(out, t)
	}
	return out
}

// Enabled reports whether the pack's predicate allows registration.
// A pack with no predicate is always enabled.
func (p *Pack) Enabled() bool {
	if p.enabledFn == nil {
		return true
	}
	return p.enabledFn()
}

// Initialize invokes the pack's optional initialize hook.
func (p *Pack) Initialize() error {
	if p.initializeFn == nil {
		return nil
	}
	return p.initializeFn()
}

// Dispose invokes the pack's optional dispose hook.
func (p *Pack) Dispose() error {
	if p.disposeFn == nil {
		return nil
	}
	return p.disposeFn()
}
