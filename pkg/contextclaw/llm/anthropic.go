package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
)

var _ Service = (*AnthropicService)(nil)

// AnthropicService talks to the Anthropic Messages API. Token counts come
// from the count_tokens endpoint, so trimming matches what the API bills.
type AnthropicService struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
	logger      *slog.Logger
}

// NewAnthropic creates a service for the Anthropic API.
func NewAnthropic(cfg ProviderConfig, logger *slog.Logger) *AnthropicService {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicService{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   int64(cfg.MaxTokens),
		logger:      logger.With("component", "llm", "provider", ProviderAnthropic),
	}
}

// Generate implements Service.
func (s *AnthropicService) Generate(ctx context.Context, messages conversation.Log, tools []ToolSchema) (*Reply, error) {
	system, msgs := toAnthropicMessages(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(s.model),
		Messages:    msgs,
		MaxTokens:   s.maxTokens,
		Temperature: anthropic.Float(s.temperature),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		params.Tools = toAnthropicTools(tools)
	}

	start := time.Now()
	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	reply, err := fromAnthropicMessage(resp)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("messages call",
		"model", s.model,
		"messages", len(messages),
		"tool_calls", len(reply.ToolCalls),
		"stop_reason", string(resp.StopReason),
		"prompt_tokens", reply.Usage.PromptTokens,
		"completion_tokens", reply.Usage.CompletionTokens,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return reply, nil
}

// CountTokens implements Service using the count_tokens endpoint.
func (s *AnthropicService) CountTokens(ctx context.Context, messages conversation.Log) (int, error) {
	system, msgs := toAnthropicMessages(messages)
	if len(msgs) == 0 {
		return EstimateTokens(messages), nil
	}

	params := anthropic.MessageCountTokensParams{
		Model:    anthropic.Model(s.model),
		Messages: msgs,
	}
	if len(system) > 0 {
		params.System = anthropic.MessageCountTokensParamsSystemUnion{OfTextBlockArray: system}
	}

	res, err := s.client.Messages.CountTokens(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("anthropic count tokens: %w", err)
	}
	return int(res.InputTokens), nil
}

// toAnthropicMessages splits system messages out and maps the rest. Runs of
// tool results are merged into one user message, as the API expects all
// results of a tool_use turn together.
func toAnthropicMessages(log conversation.Log) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	var out []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pendingResults) > 0 {
			out = append(out, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, m := range log {
		switch m.Role {
		case conversation.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case conversation.RoleHuman:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case conversation.RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, argsOrEmpty(tc.Arguments), tc.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(""))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		case conversation.RoleToolResult:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, m.IsError))
		}
	}
	flush()
	return system, out
}

func toAnthropicTools(tools []ToolSchema) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		tool := anthropic.ToolParam{
			Name: t.Name,
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: t.Parameters.AsMap()["properties"],
				Required:   t.Parameters.Required,
			},
		}
		if t.Description != "" {
			tool.Description = anthropic.String(t.Description)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out
}

func fromAnthropicMessage(resp *anthropic.Message) (*Reply, error) {
	reply := &Reply{
		Model: string(resp.Model),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			reply.Text += block.AsText().Text
		case "tool_use":
			tu := block.AsToolUse()
			args := map[string]any{}
			if len(tu.Input) > 0 {
				if err := json.Unmarshal(tu.Input, &args); err != nil {
					return nil, fmt.Errorf("%w: tool_use %s input: %v", ErrMalformedReply, tu.Name, err)
				}
			}
			reply.ToolCalls = append(reply.ToolCalls, conversation.ToolCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: args,
			})
		}
	}
	return reply, nil
}
