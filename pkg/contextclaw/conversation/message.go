// Package conversation – message.go defines the typed message model shared by
// every part of the agent: a closed set of roles, tool-call requests and the
// immutable Message record. Messages carry a stable ID so that compaction
// policies can address individual entries without positional ambiguity.
package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role discriminates the kind of a message. The set is closed: every switch
// over Role in this module is exhaustive.
type Role string

const (
	RoleSystem     Role = "system"
	RoleHuman      Role = "human"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleHuman, RoleAssistant, RoleToolResult:
		return true
	default:
		return false
	}
}

// ToolCall is a structured request from the model to run a named tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Message is one entry of a conversation. Treat it as a value: helpers in
// this package never mutate a Message in place.
type Message struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls is only set on assistant messages.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID and ToolName are only set on tool_result messages.
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolName   string `json:"tool_name,omitempty"`

	// IsError marks a tool_result whose content is an error payload.
	IsError bool `json:"is_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewID returns a fresh message identifier.
func NewID() string {
	return uuid.New().String()
}

func newMessage(role Role, content string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewSystem creates a system message.
func NewSystem(content string) Message {
	return newMessage(RoleSystem, content)
}

// NewHuman creates a human (user input) message.
func NewHuman(content string) Message {
	return newMessage(RoleHuman, content)
}

// NewAssistant creates an assistant message, optionally carrying tool calls.
func NewAssistant(content string, calls ...ToolCall) Message {
	m := newMessage(RoleAssistant, content)
	if len(calls) > 0 {
		m.ToolCalls = cloneCalls(calls)
	}
	return m
}

// NewToolResult creates a tool_result message answering the call callID.
func NewToolResult(callID, toolName, content string) Message {
	m := newMessage(RoleToolResult, content)
	m.ToolCallID = callID
	m.ToolName = toolName
	return m
}

// HasToolCalls reports whether m is an assistant message requesting tools.
func (m Message) HasToolCalls() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// WithID returns a copy of m that is guaranteed to carry an ID.
func (m Message) WithID() Message {
	if m.ID == "" {
		m.ID = NewID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return m
}

// Clone returns a deep copy of m.
func (m Message) Clone() Message {
	m.ToolCalls = cloneCalls(m.ToolCalls)
	return m
}

// Validate checks the per-message shape rules for m's role.
func (m Message) Validate() error {
	if !m.Role.Valid() {
		return fmt.Errorf("message %s: unknown role %q", m.ID, m.Role)
	}
	if len(m.ToolCalls) > 0 && m.Role != RoleAssistant {
		return fmt.Errorf("message %s: tool calls on %s message", m.ID, m.Role)
	}
	if m.IsError && m.Role != RoleToolResult {
		return fmt.Errorf("message %s: error flag on %s message", m.ID, m.Role)
	}
	if m.Role == RoleToolResult && m.ToolCallID == "" {
		return fmt.Errorf("message %s: tool result without tool_call_id", m.ID)
	}
	for _, tc := range m.ToolCalls {
		if tc.ID == "" || tc.Name == "" {
			return fmt.Errorf("message %s: tool call missing id or name", m.ID)
		}
	}
	return nil
}

func cloneCalls(calls []ToolCall) []ToolCall {
	if calls == nil {
		return nil
	}
	out := make([]ToolCall, len(calls))
	for i, tc := range calls {
		out[i] = tc
		if tc.Arguments != nil {
			args := make(map[string]any, len(tc.Arguments))
			for k, v := range tc.Arguments {
				args[k] = v
			}
			out[i].Arguments = args
		}
	}
	return out
}
