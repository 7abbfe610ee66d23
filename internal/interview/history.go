package interview

import (
	"github.com/lexiqai/interview-engine/internal/reasoning"
)

// History is the append-only conversation of one session
type History struct {
	turns []reasoning.Turn
}

// Append adds a turn at the end
func (h *History) Append(role reasoning.Role, content string) {
	h.turns = append(h.turns, reasoning.Turn{Role: role, Content: content})
}

// Snapshot returns a copy safe to hand to another goroutine
func (h *History) Snapshot() []reasoning.Turn {
	out := make([]reasoning.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len returns the number of turns
func (h *History) Len() int {
	return len(h.turns)
}
