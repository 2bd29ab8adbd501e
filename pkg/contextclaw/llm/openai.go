package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	ai "github.com/sashabaranov/go-openai"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
)

var _ Service = (*OpenAIService)(nil)

// OpenAIService talks to an OpenAI-compatible /chat/completions endpoint.
// Token counts are estimated locally.
type OpenAIService struct {
	client      *ai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *slog.Logger
}

// NewOpenAI creates a service for an OpenAI-compatible endpoint.
func NewOpenAI(cfg ProviderConfig, logger *slog.Logger) *OpenAIService {
	clientCfg := ai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIService{
		client:      ai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		logger:      logger.With("component", "llm", "provider", ProviderOpenAI),
	}
}

// Generate implements Service.
func (s *OpenAIService) Generate(ctx context.Context, messages conversation.Log, tools []ToolSchema) (*Reply, error) {
	req := ai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
	}

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	reply, err := fromOpenAIResponse(resp)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("chat completion",
		"model", resp.Model,
		"messages", len(messages),
		"tool_calls", len(reply.ToolCalls),
		"prompt_tokens", reply.Usage.PromptTokens,
		"completion_tokens", reply.Usage.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return reply, nil
}

// CountTokens implements Service with a local estimate.
func (s *OpenAIService) CountTokens(_ context.Context, messages conversation.Log) (int, error) {
	return EstimateTokens(messages), nil
}

func toOpenAIMessages(log conversation.Log) []ai.ChatCompletionMessage {
	out := make([]ai.ChatCompletionMessage, 0, len(log))
	for _, m := range log {
		switch m.Role {
		case conversation.RoleSystem:
			out = append(out, ai.ChatCompletionMessage{Role: ai.ChatMessageRoleSystem, Content: m.Content})
		case conversation.RoleHuman:
			out = append(out, ai.ChatCompletionMessage{Role: ai.ChatMessageRoleUser, Content: m.Content})
		case conversation.RoleAssistant:
			msg := ai.ChatCompletionMessage{Role: ai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				args, _ := json.Marshal(argsOrEmpty(tc.Arguments))
				msg.ToolCalls = append(msg.ToolCalls, ai.ToolCall{
					ID:   tc.ID,
					Type: ai.ToolTypeFunction,
					Function: ai.FunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, msg)
		case conversation.RoleToolResult:
			out = append(out, ai.ChatCompletionMessage{
				Role:       ai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
				Name:       m.ToolName,
			})
		}
	}
	return out
}

func toOpenAITools(tools []ToolSchema) []ai.Tool {
	out := make([]ai.Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, ai.Tool{
			Type: ai.ToolTypeFunction,
			Function: &ai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters.AsMap(),
			},
		})
	}
	return out
}

func fromOpenAIResponse(resp ai.ChatCompletionResponse) (*Reply, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty choices", ErrMalformedReply)
	}
	msg := resp.Choices[0].Message

	reply := &Reply{
		Text:  msg.Content,
		Model: resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}
	for _, tc := range msg.ToolCalls {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("%w: tool call %s arguments: %v", ErrMalformedReply, tc.Function.Name, err)
			}
		}
		reply.ToolCalls = append(reply.ToolCalls, conversation.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return reply, nil
}

func argsOrEmpty(args map[string]any) map[string]any {
	if args == nil {
		return map[string]any{}
	}
	return args
}
