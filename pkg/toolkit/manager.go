package toolkit

import (
	"fmt"
	"sort"
	"sync"

	"github.com/loopwright/koru/internal/logger"
)

type binding struct {
	tool          Tool
	pack          *Pack
	qualifiedName string
}

// Manager holds a registry of tool packs and exposes discovery and
// execution. It is effectively immutable after InitializeAll:
// registration is not concurrent with execution.
type Manager struct {
	mu         sync.RWMutex
	packs      map[string]*Pack
	packOrder  []string
	short      map[string]binding
	qual       map[string]binding
}

// NewManager creates an empty tool manager.
func NewManager() *Manager {
	return &Manager{
		packs: make(map[string]*Pack),
		short: make(map[string]binding),
		qual:  make(map[string]binding),
	}
}

// Register adds a pack's tools to the registry. Duplicate pack
// identifiers are rejected. A pack whose Enabled() predicate is false
// is silently skipped. A tool-name conflict under the "error" policy
// aborts the entire pack's registration with no partial mutation.
func (m *Manager) Register(p *Pack) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !p.Enabled() {
		return nil
	}
	if _, exists := m.packs[p.ID]; exists {
		return fmt.Errorf("toolkit: duplicate pack id %q", p.ID)
	}

	tools := p.Tools()
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })

	// First pass: validate, no mutation, so an "error" conflict never
	// leaves the registry partially updated.
	for _, t := range tools {
		if existing, conflict := m.short[t.Name]; conflict && p.ConflictPolicy == PolicyError {
			return fmt.Errorf("toolkit: tool name %q conflicts between pack %q and pack %q", t.Name, existing.pack.ID, p.ID)
		}
	}

	for _, t := range tools {
		qualifiedName := p.Namespace + "." + t.Name
		m.qual[qualifiedName] = binding{tool: t, pack: p, qualifiedName: qualifiedName}

		existing, conflict := m.short[t.Name]
		if !conflict {
			m.short[t.Name] = binding{tool: t, pack: p, qualifiedName: qualifiedName}
			continue
		}

		switch p.ConflictPolicy {
		case PolicyNamespacePrefix:
			delete(m.short, t.Name)
		case PolicyOverride:
			if p.Priority > existing.pack.Priority {
				m.short[t.Name] = binding{tool: t, pack: p, qualifiedName: qualifiedName}
			}
		default:
			// Only reachable if existing holder's own policy is
			// stricter than this pack's; treat as namespace-prefix
			// fallback to avoid silently favoring either side.
			delete(m.short, t.Name)
		}
	}

	m.packs[p.ID] = p
	m.packOrder = append(m.packOrder, p.ID)
	return nil
}

// HasTool reports whether name resolves to a tool, either as a short
// name or as a qualified "<namespace>.<name>" name.
func (m *Manager) HasTool(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.resolve(name)
	return ok
}

func (m *Manager) resolve(name string) (binding, bool) {
	if b, ok := m.qual[name]; ok {
		return b, true
	}
	if b, ok := m.short[name]; ok {
		return b, true
	}
	return binding{}, false
}

// ToolView is one entry in a ListTools result.
type ToolView struct {
	DisplayName string
	Tool        Tool
	PackID      string
	Namespace   string
}

// FilterOptions narrows ListTools.
type FilterOptions struct {
	ReadOnly   *bool
	Capability Capability
	Namespace  string
}

// ListTools returns every registered tool matching the filter in
// deterministic order, sorted by display name.
func (m *Manager) ListTools(opts FilterOptions) []ToolView {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var views []ToolView

	add := func(name string, b binding) {
		key := b.pack.ID + "/" + b.tool.Name
		if seen[key] {
			return
		}
		if opts.ReadOnly != nil && b.tool.ReadOnly != *opts.ReadOnly {
			return
		}
		if opts.Capability != "" && b.tool.Capability != opts.Capability {
			return
		}
		if opts.Namespace != "" && b.pack.Namespace != opts.Namespace {
			return
		}
		seen[key] = true
		views = append(views, ToolView{DisplayName: name, Tool: b.tool, PackID: b.pack.ID, Namespace: b.pack.Namespace})
	}

	for name, b := range m.short {
		add(name, b)
	}
	for name, b := range m.qual {
		add(name, b)
	}

	sort.Slice(views, func(i, j int) bool { return views[i].DisplayName < views[j].DisplayName })
	return views
}

// InitializeAll invokes every registered pack's optional initialize
// hook, in registration order.
func (m *Manager) InitializeAll() error {
	m.mu.RLock()
	packs := m.orderedPacks()
	m.mu.RUnlock()

	for _, p := range packs {
		if err := p.Initialize(); err != nil {
			logger.GetLogger().Error().Err(err).Str("pack", p.ID).Msg("toolkit: pack initialize failed")
			return fmt.Errorf("initialize pack %q: %w", p.ID, err)
		}
	}
	return nil
}

// DisposeAll invokes every registered pack's optional dispose hook,
// in registration order.
func (m *Manager) DisposeAll() error {
	m.mu.RLock()
	packs := m.orderedPacks()
	m.mu.RUnlock()

	var firstErr error
	for _, p := range packs {
		if err := p.Dispose(); err != nil {
			logger.GetLogger().Warn().Err(err).Str("pack", p.ID).Msg("toolkit: pack dispose failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *Manager) orderedPacks() []*Pack {
	out := make([]*Pack, len(m.packOrder))
	for i, id := range m.packOrder {
		out[i] = m.packs[id]
	}
	return out
}
