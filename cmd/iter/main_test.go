package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPrefix(t *testing.T) {
	assert.True(t, hasPrefix("--provider=anthropic", "--provider="))
	assert.False(t, hasPrefix("--provider", "--provider="))
	assert.False(t, hasPrefix("--p", "--provider="))
}

func TestValueOf(t *testing.T) {
	assert.Equal(t, "anthropic", valueOf("--provider=anthropic"))
	assert.Equal(t, "", valueOf("--provider"))
	assert.Equal(t, "a=b", valueOf("--foo=a=b"))
}

func TestParseRunFlagsDefaults(t *testing.T) {
	f, err := parseRunFlags([]string{"fix the build"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", f.provider)
	assert.Equal(t, 40, f.maxIterations)
	assert.Equal(t, "fix the build", f.task)
	assert.NotEmpty(t, f.workDir)
}

func TestParseRunFlagsOverrides(t *testing.T) {
	f, err := parseRunFlags([]string{
		"--provider=ollama",
		"--model=llama3",
		"--max-iterations=10",
		"--workdir=.",
		"do the thing",
	})
	require.NoError(t, err)
	assert.Equal(t, "ollama", f.provider)
	assert.Equal(t, "llama3", f.model)
	assert.Equal(t, 10, f.maxIterations)
	assert.Equal(t, "do the thing", f.task)
}

func TestParseRunFlagsMissingTask(t *testing.T) {
	_, err := parseRunFlags([]string{"--provider=anthropic"})
	assert.Error(t, err)
}

func TestParseRunFlagsBadMaxIterations(t *testing.T) {
	_, err := parseRunFlags([]string{"--max-iterations=nope", "task"})
	assert.Error(t, err)
}

func TestBuildProviderUnknown(t *testing.T) {
	f := &runFlags{provider: "bogus"}
	_, err := buildProvider(f)
	assert.Error(t, err)
}

func TestBuildProviderMissingAnthropicKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	f := &runFlags{provider: "anthropic"}
	_, err := buildProvider(f)
	assert.Error(t, err)
}

func TestBuildProviderOllamaNeedsNoKey(t *testing.T) {
	f := &runFlags{provider: "ollama"}
	p, err := buildProvider(f)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestBuildProviderMissingGeminiKey(t *testing.T) {
	t.Setenv("GOOGLE_GEMINI_API_KEY", "")
	f := &runFlags{provider: "gemini"}
	_, err := buildProvider(f)
	assert.Error(t, err)
}
