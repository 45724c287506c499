package conversation

import "strings"

// Role identifies who authored a turn.
type Role string

const (
	// RoleUser marks text typed (or uploaded) by the user.
	RoleUser Role = "user"
	// RoleAssistant marks text returned by the model.
	RoleAssistant Role = "assistant"
)

// DefaultWindow is the number of most recent turns used as context.
const DefaultWindow = 5

// historyHeader opens the rendered context block.
const historyHeader = "Previous conversation:\n"

// Turn is one recorded exchange unit.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// History is the ordered turn log of one session.
// It grows without bound until Clear is called; only the tail is read.
type History struct {
	turns []Turn
}

// Len returns the number of stored turns.
func (h *History) Len() int {
	return len(h.turns)
}

// Turns returns a copy of every stored turn.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Recent returns a copy of the last n turns in chronological order.
func (h *History) Recent(n int) []Turn {
	if n <= 0 || len(h.turns) == 0 {
		return nil
	}
	start := len(h.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]Turn, len(h.turns)-start)
	copy(out, h.turns[start:])
	return out
}

// AppendExchange records the user prompt followed by the model reply.
func (h *History) AppendExchange(userText, assistantText string) {
	h.turns = append(h.turns,
		Turn{Role: RoleUser, Text: userText},
		Turn{Role: RoleAssistant, Text: assistantText},
	)
}

// Clear drops every stored turn.
func (h *History) Clear() {
	h.turns = nil
}

// Render formats turns as the "Previous conversation" block.
// An empty slice renders as "".
func Render(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(historyHeader)
	for _, t := range turns {
		if t.Role == RoleUser {
			b.WriteString("User: " + t.Text + "\n")
		} else {
			b.WriteString("Assistant: " + t.Text + "\n")
		}
	}
	return b.String()
}
