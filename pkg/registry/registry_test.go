package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAgent(t *testing.T, root, id, content string) {
	t.Helper()
	dir := filepath.Join(root, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agent.yml"), []byte(content), 0o644))
}

func TestLoad_ValidAgent(t *testing.T) {
	root := t.TempDir()
	writeAgent(t, root, "reviewer", `
id: reviewer
name: Code Reviewer
description: Reviews diffs for correctness
capabilities: [review, comment]
preferredTier: medium
`)

	agents, err := Load(root)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.True(t, agents[0].Valid)
	assert.Equal(t, "reviewer", agents[0].ID)
	assert.Equal(t, TierMedium, agents[0].PreferredTier)
	assert.Empty(t, agents[0].Errors)
}

func TestLoad_MissingRequiredFieldsSurfacesAsInvalidNotSkipped(t *testing.T) {
	root := t.TempDir()
	writeAgent(t, root, "broken", `
name: ""
`)

	agents, err := Load(root)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.False(t, agents[0].Valid)
	assert.NotEmpty(t, agents[0].Errors)
}

func TestLoad_UnknownPreferredTierIsValidationError(t *testing.T) {
	root := t.TempDir()
	writeAgent(t, root, "weird", `
id: weird
name: Weird
description: does things
capabilities: [general]
preferredTier: huge
`)

	agents, err := Load(root)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.False(t, agents[0].Valid)
}

func TestLoad_MissingDescriptorFileIsInvalid(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ghost"), 0o755))

	agents, err := Load(root)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.False(t, agents[0].Valid)
	assert.Equal(t, "ghost", agents[0].ID)
}

func TestLoad_MalformedYAMLIsInvalid(t *testing.T) {
	root := t.TempDir()
	writeAgent(t, root, "malformed", "id: [unterminated")

	agents, err := Load(root)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.False(t, agents[0].Valid)
}

func TestLoad_DefaultsPreferredTierToMediumWhenUnset(t *testing.T) {
	root := t.TempDir()
	writeAgent(t, root, "defaulted", `
id: defaulted
name: Defaulted
description: has no tier
capabilities: [general]
`)

	agents, err := Load(root)
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.True(t, agents[0].Valid)
	assert.Equal(t, TierMedium, agents[0].PreferredTier)
}
