package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrBrokenCorrelation is returned by Log.Validate when a tool_result does not
// answer a pending call of the closest preceding assistant message.
var ErrBrokenCorrelation = errors.New("tool result correlation broken")

// Log is an ordered conversation. Insertion order is causal order.
type Log []Message

// Clone returns a deep copy of l. A nil log clones to nil.
func (l Log) Clone() Log {
	if l == nil {
		return nil
	}
	out := make(Log, len(l))
	for i, m := range l {
		out[i] = m.Clone()
	}
	return out
}

// Last returns the final message, if any.
func (l Log) Last() (Message, bool) {
	if len(l) == 0 {
		return Message{}, false
	}
	return l[len(l)-1], true
}

// First returns the first message, if any.
func (l Log) First() (Message, bool) {
	if len(l) == 0 {
		return Message{}, false
	}
	return l[0], true
}

// IDs returns the message IDs in order.
func (l Log) IDs() []string {
	ids := make([]string, len(l))
	for i, m := range l {
		ids[i] = m.ID
	}
	return ids
}

// Index returns the position of the message with the given ID, or -1.
func (l Log) Index(id string) int {
	for i, m := range l {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// Tail returns a copy of the last n messages.
func (l Log) Tail(n int) Log {
	if n <= 0 {
		return Log{}
	}
	if n > len(l) {
		n = len(l)
	}
	return l[len(l)-n:].Clone()
}

// StartsWithSystem reports whether the first message is a system message with
// exactly the given content.
func (l Log) StartsWithSystem(content string) bool {
	first, ok := l.First()
	return ok && first.Role == RoleSystem && first.Content == content
}

// Validate checks every message's shape and the tool-call correlation rule:
// each tool_result answers, in request order, one pending call of the most
// recent assistant message with tool calls. A trailing assistant message whose
// calls have not been answered yet is allowed.
func (l Log) Validate() error {
	seen := make(map[string]struct{}, len(l))
	var pending []string
	for i, m := range l {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
		if m.ID == "" {
			return fmt.Errorf("index %d: message without id", i)
		}
		if _, dup := seen[m.ID]; dup {
			return fmt.Errorf("index %d: duplicate message id %s", i, m.ID)
		}
		seen[m.ID] = struct{}{}

		switch m.Role {
		case RoleToolResult:
			if len(pending) == 0 {
				return fmt.Errorf("index %d: orphan tool result %s: %w", i, m.ToolCallID, ErrBrokenCorrelation)
			}
			if pending[0] != m.ToolCallID {
				return fmt.Errorf("index %d: tool result %s, expected %s: %w", i, m.ToolCallID, pending[0], ErrBrokenCorrelation)
			}
			pending = pending[1:]
		case RoleSystem, RoleHuman, RoleAssistant:
			if len(pending) > 0 {
				return fmt.Errorf("index %d: %d tool call(s) left unanswered: %w", i, len(pending), ErrBrokenCorrelation)
			}
			if m.HasToolCalls() {
				pending = make([]string, len(m.ToolCalls))
				for j, tc := range m.ToolCalls {
					pending[j] = tc.ID
				}
			}
		}
	}
	return nil
}

// Transcript renders l as "role: content" lines, the text form handed to
// summarizers.
func (l Log) Transcript() string {
	var b strings.Builder
	for i, m := range l {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		for _, tc := range m.ToolCalls {
			args, _ := json.Marshal(tc.Arguments)
			fmt.Fprintf(&b, " [call %s(%s)]", tc.Name, args)
		}
	}
	return b.String()
}
