package models

import "strings"

// RenderHistory flattens prior chat turns into plain text for prompt
// building. The history is opaque to retrieval; only the responders see it.
func RenderHistory(history []ChatTurn) string {
	if len(history) == 0 {
		return "(no previous messages)"
	}
	var b strings.Builder
	for _, turn := range history {
		b.WriteString(turn.Role)
		b.WriteString(": ")
		b.WriteString(turn.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
