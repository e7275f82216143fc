package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AddFindingAndSummary(t *testing.T) {
	s := NewStore("sess-1")
	s.AddFinding(Finding{Severity: SeverityCritical, Title: "sql injection"})
	s.AddFinding(Finding{Severity: SeverityLow, Title: "missing doc comment"})

	summary := s.Summary()
	assert.Equal(t, 1, summary.CountBySeverity[SeverityCritical])
	assert.Equal(t, 1, summary.CountBySeverity[SeverityLow])
	require.NotEmpty(t, summary.Top)
	assert.Equal(t, SeverityCritical, summary.Top[0].Severity)
}

func TestStore_RecordToolOutput_SmallGoesToArtifacts(t *testing.T) {
	s := NewStore("sess-2")
	key, archived := s.RecordToolOutput(context.Background(), "grep_search", "short output")
	assert.False(t, archived)
	assert.Empty(t, key)
}

func TestStore_RecordToolOutput_LargeArchivesToColdMemory(t *testing.T) {
	s := NewStore("sess-3")
	large := strings.Repeat("x", ArtifactSizeThresholdBytes+50)
	key, archived := s.RecordToolOutput(context.Background(), "fs_read", large)
	if s.cold == nil {
		t.Skip("cold memory unavailable in this environment")
	}
	assert.True(t, archived)
	assert.NotEmpty(t, key)
}

func TestStore_AddMessageCompressesWhenOverThreshold(t *testing.T) {
	s := NewStore("sess-4")
	for i := 0; i < 10; i++ {
		s.AddMessage(Message{Role: "user", Content: "turn"})
	}
	history := s.History()
	assert.LessOrEqual(t, len(history), compressMessageCountThreshold)
}
