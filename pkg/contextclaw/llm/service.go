// Package llm – service.go defines the model service the agent loop talks to
// and the provider-neutral request/response types. Providers (OpenAI-compatible
// endpoints, Anthropic) adapt these to their own wire formats.
package llm

import (
	"context"
	"errors"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
)

// ErrMalformedReply is returned when a provider response cannot be mapped to
// a Reply (no choices, unparseable tool arguments, ...).
var ErrMalformedReply = errors.New("malformed model reply")

// JSONSchema captures the subset of JSON Schema used for tool parameters.
type JSONSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

// AsMap returns the schema as a generic JSON object.
func (s JSONSchema) AsMap() map[string]any {
	typ := s.Type
	if typ == "" {
		typ = "object"
	}
	props := s.Properties
	if props == nil {
		props = map[string]any{}
	}
	out := map[string]any{
		"type":       typ,
		"properties": props,
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

// ToolSchema describes a tool to the model.
type ToolSchema struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}

// Usage reports token consumption of one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Reply is the model's answer: text, tool calls, or both.
type Reply struct {
	Text      string                  `json:"text"`
	ToolCalls []conversation.ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage                   `json:"usage"`
	Model     string                  `json:"model,omitempty"`
}

// Service is a chat model with tool calling.
type Service interface {
	// Generate asks the model for the next message given the conversation
	// and the tools it may call.
	Generate(ctx context.Context, messages conversation.Log, tools []ToolSchema) (*Reply, error)

	// CountTokens measures the prompt size of messages.
	CountTokens(ctx context.Context, messages conversation.Log) (int, error)
}
