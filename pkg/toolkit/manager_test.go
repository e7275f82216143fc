package toolkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFileTool(name string) Tool {
	return Tool{
		Name:       name,
		Capability: CapFilesystem,
		ReadOnly:   true,
		Schema:     Schema{Properties: map[string]Property{"path": {Kind: KindString}}, Required: []string{"path"}},
		Exec: func(ctx context.Context, input map[string]any) (map[string]any, error) {
			return map[string]any{"content": "ok"}, nil
		},
	}
}

func TestManager_RegisterDuplicatePackID(t *testing.T) {
	m := NewManager()
	p1 := NewPack("fs", "a", PolicyError, 0)
	p1.AddTool(readFileTool("read_file"))
	p2 := NewPack("fs", "b", PolicyError, 0)

	require.NoError(t, m.Register(p1))
	err := m.Register(p2)
	assert.Error(t, err)
}

func TestManager_DisabledPackSilentlySkipped(t *testing.T) {
	m := NewManager()
	p := NewPack("fs", "a", PolicyError, 0, WithEnabled(func() bool { return false }))
	p.AddTool(readFileTool("read_file"))

	require.NoError(t, m.Register(p))
	assert.False(t, m.HasTool("read_file"))
	assert.False(t, m.HasTool("a.read_file"))
}

func TestManager_ErrorPolicyConflictAbortsRegistration(t *testing.T) {
	m := NewManager()
	a := NewPack("a", "a", PolicyError, 0)
	a.AddTool(readFileTool("read_file"))
	b := NewPack("b", "b", PolicyError, 0)
	b.AddTool(readFileTool("read_file"))
	b.AddTool(readFileTool("other_tool"))

	require.NoError(t, m.Register(a))
	err := m.Register(b)
	require.Error(t, err)

	// No partial mutation: b's other_tool must not have leaked in.
	assert.False(t, m.HasTool("other_tool"))
	assert.False(t, m.HasTool("b.other_tool"))
}

// TestManager_NamespacePrefixConflict_S6 implements scenario S6: two
// namespace-prefix packs both claiming read_file leaves both qualified
// names resolvable but withdraws the short name entirely.
func TestManager_NamespacePrefixConflict_S6(t *testing.T) {
	m := NewManager()
	a := NewPack("a", "a", PolicyNamespacePrefix, 0)
	a.AddTool(readFileTool("read_file"))
	b := NewPack("b", "b", PolicyNamespacePrefix, 0)
	b.AddTool(readFileTool("read_file"))

	require.NoError(t, m.Register(a))
	require.NoError(t, m.Register(b))

	assert.True(t, m.HasTool("a.read_file"))
	assert.True(t, m.HasTool("b.read_file"))
	assert.False(t, m.HasTool("read_file"))
}

func TestManager_OverridePolicyHigherPriorityWins(t *testing.T) {
	m := NewManager()
	low := NewPack("low", "a", PolicyOverride, 1)
	low.AddTool(readFileTool("read_file"))
	high := NewPack("high", "b", PolicyOverride, 10)
	high.AddTool(readFileTool("read_file"))

	require.NoError(t, m.Register(low))
	require.NoError(t, m.Register(high))

	views := m.ListTools(FilterOptions{})
	var shortOwner string
	for _, v := range views {
		if v.DisplayName == "read_file" {
			shortOwner = v.PackID
		}
	}
	assert.Equal(t, "high", shortOwner)
	assert.True(t, m.HasTool("a.read_file"))
	assert.True(t, m.HasTool("b.read_file"))
}

func TestManager_OverridePolicyLowerPriorityRegisteredSecondLoses(t *testing.T) {
	m := NewManager()
	high := NewPack("high", "a", PolicyOverride, 10)
	high.AddTool(readFileTool("read_file"))
	low := NewPack("low", "b", PolicyOverride, 1)
	low.AddTool(readFileTool("read_file"))

	require.NoError(t, m.Register(high))
	require.NoError(t, m.Register(low))

	views := m.ListTools(FilterOptions{})
	for _, v := range views {
		if v.DisplayName == "read_file" {
			assert.Equal(t, "high", v.PackID)
		}
	}
}

func TestManager_ListTools_FiltersAndSortsDeterministically(t *testing.T) {
	m := NewManager()
	p := NewPack("fs", "fs", PolicyError, 0)
	p.AddTool(readFileTool("read_file"))
	p.AddTool(Tool{Name: "write_file", Capability: CapFilesystem, ReadOnly: false, Exec: readFileTool("x").Exec})
	require.NoError(t, m.Register(p))

	ro := true
	views := m.ListTools(FilterOptions{ReadOnly: &ro})
	require.Len(t, views, 1)
	assert.Equal(t, "read_file", views[0].DisplayName)

	all := m.ListTools(FilterOptions{})
	require.Len(t, all, 2)
	assert.Equal(t, "read_file", all[0].DisplayName)
	assert.Equal(t, "write_file", all[1].DisplayName)
}

func TestManager_InitializeAllAndDisposeAll_RegistrationOrder(t *testing.T) {
	m := NewManager()
	var order []string

	mk := func(id string) *Pack {
		return NewPack(id, id, PolicyError, 0, WithLifecycle(
			func() error { order = append(order, id); return nil },
			func() error { order = append(order, "dispose:"+id); return nil },
		))
	}

	require.NoError(t, m.Register(mk("b")))
	require.NoError(t, m.Register(mk("a")))
	require.NoError(t, m.Register(mk("c")))

	require.NoError(t, m.InitializeAll())
	assert.Equal(t, []string{"b", "a", "c"}, order)

	order = nil
	require.NoError(t, m.DisposeAll())
	assert.Equal(t, []string{"dispose:b", "dispose:a", "dispose:c"}, order)
}
