package memory

import (
	"fmt"
	"strings"

	"github.com/loopwright/koru/pkg/index"
)

const (
	compressMessageCountThreshold = 5
	compressTokenThreshold        = 8000
	preservedTailTurns            = 2
)

// ShouldCompress reports whether the rolling conversation has grown
// past either threshold.
func ShouldCompress(messages []Message) bool {
	if len(messages) > compressMessageCountThreshold {
		return true
	}
	return estimateConversationTokens(messages) > compressTokenThreshold
}

// Compress replaces everything but the last preservedTailTurns
// messages with a single synthetic summary message, preserving the
// most recent exchange verbatim so the model never loses immediate
// context.
func Compress(messages []Message) []Message {
	if len(messages) <= preservedTailTurns {
		return messages
	}

	head := messages[:len(messages)-preservedTailTurns]
	tail := messages[len(messages)-preservedTailTurns:]

	summary := summarize(head)
	out := make([]Message, 0, 1+len(tail))
	out = append(out, Message{Role: "system", Content: summary})
	out = append(out, tail...)
	return out
}

func summarize(messages []Message) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[compressed %d earlier turns]", len(messages)))
	for _, m := range messages {
		line := m.Content
		if len(line) > 160 {
			line = line[:160] + "…"
		}
		b.WriteString(fmt.Sprintf(" (%s: %s)", m.Role, line))
	}
	return b.String()
}

func estimateConversationTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += index.EstimateTokens(m.Content)
	}
	return total
}
