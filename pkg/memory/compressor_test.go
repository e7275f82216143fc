package memory

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldCompress_MessageCountThreshold(t *testing.T) {
	var messages []Message
	for i := 0; i < 6; i++ {
		messages = append(messages, Message{Role: "user", Content: "hi"})
	}
	assert.True(t, ShouldCompress(messages))
}

func TestShouldCompress_TokenThreshold(t *testing.T) {
	messages := []Message{{Role: "user", Content: strings.Repeat("word ", 10000)}}
	assert.True(t, ShouldCompress(messages))
}

func TestShouldCompress_BelowBothThresholds(t *testing.T) {
	messages := []Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}
	assert.False(t, ShouldCompress(messages))
}

func TestCompress_PreservesTailVerbatim(t *testing.T) {
	var messages []Message
	for i := 0; i < 10; i++ {
		messages = append(messages, Message{Role: "user", Content: "turn"})
	}
	messages[8] = Message{Role: "user", Content: "second-to-last"}
	messages[9] = Message{Role: "assistant", Content: "last"}

	compressed := Compress(messages)
	require.Len(t, compressed, 1+preservedTailTurns)
	assert.Equal(t, "second-to-last", compressed[len(compressed)-2].Content)
	assert.Equal(t, "last", compressed[len(compressed)-1].Content)
	assert.Contains(t, compressed[0].Content, "compressed")
}

func TestCompress_NoOpWhenShortEnough(t *testing.T) {
	messages := []Message{{Role: "user", Content: "hi"}}
	assert.Equal(t, messages, Compress(messages))
}
