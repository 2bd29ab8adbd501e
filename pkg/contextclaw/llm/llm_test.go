package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
)

type stubService struct {
	reply  *Reply
	err    error
	count  int
	cntErr error
	seen   []conversation.Log
}

func (s *stubService) Generate(_ context.Context, msgs conversation.Log, _ []ToolSchema) (*Reply, error) {
	s.seen = append(s.seen, msgs)
	return s.reply, s.err
}

func (s *stubService) CountTokens(context.Context, conversation.Log) (int, error) {
	return s.count, s.cntErr
}

func weatherSchema() ToolSchema {
	return ToolSchema{
		Name:        "get_weather",
		Description: "Call to get the current weather.",
		Parameters: JSONSchema{
			Type:       "object",
			Properties: map[string]any{"location": map[string]any{"type": "string"}},
			Required:   []string{"location"},
		},
	}
}

func sampleLog() conversation.Log {
	return conversation.Log{
		conversation.NewSystem("be helpful"),
		conversation.NewHuman("weather in sf?"),
		conversation.NewAssistant("", conversation.ToolCall{ID: "call_1", Name: "get_weather", Arguments: map[string]any{"location": "sf"}}),
		conversation.NewToolResult("call_1", "get_weather", `"sunny"`),
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(nil))

	one := conversation.Log{conversation.NewHuman("abcd")}
	assert.Equal(t, replyPriming+perMessageOverhead+1, EstimateTokens(one))

	log := sampleLog()
	prev := 0
	for i := len(log) - 1; i >= 0; i-- {
		n := EstimateTokens(log[i:])
		assert.Greater(t, n, prev, "longer suffixes must estimate higher")
		prev = n
	}
}

func TestNewProvider(t *testing.T) {
	svc, err := New(ProviderConfig{Provider: "openai", Model: "gpt-4o-mini"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAIService{}, svc)

	svc, err = New(ProviderConfig{Provider: "Anthropic", Model: "claude-sonnet-4-5"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &AnthropicService{}, svc)

	_, err = New(ProviderConfig{Provider: "gemini", Model: "x"}, nil)
	assert.Error(t, err)

	_, err = New(ProviderConfig{Provider: "openai"}, nil)
	assert.Error(t, err)
}

func TestOpenAIGenerate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "gpt-test",
			"choices": [{
				"index": 0,
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_2",
						"type": "function",
						"function": {"name": "get_weather", "arguments": "{\"location\":\"nyc\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 3, "total_tokens": 15}
		}`)
	}))
	defer srv.Close()

	svc := NewOpenAI(ProviderConfig{Model: "gpt-test", APIKey: "sk-test", BaseURL: srv.URL + "/v1", MaxTokens: 64}, testLogger())
	reply, err := svc.Generate(context.Background(), sampleLog(), []ToolSchema{weatherSchema()})
	require.NoError(t, err)

	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "call_2", reply.ToolCalls[0].ID)
	assert.Equal(t, "get_weather", reply.ToolCalls[0].Name)
	assert.Equal(t, map[string]any{"location": "nyc"}, reply.ToolCalls[0].Arguments)
	assert.Equal(t, Usage{PromptTokens: 12, CompletionTokens: 3}, reply.Usage)

	msgs := body["messages"].([]any)
	require.Len(t, msgs, 4)
	roles := make([]string, len(msgs))
	for i, m := range msgs {
		roles[i] = m.(map[string]any)["role"].(string)
	}
	assert.Equal(t, []string{"system", "user", "assistant", "tool"}, roles)
	assert.Equal(t, "call_1", msgs[3].(map[string]any)["tool_call_id"])

	tools := body["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "get_weather", fn["name"])
}

func TestOpenAIMalformedReply(t *testing.T) {
	_, err := fromOpenAIResponseJSON(t, `{"choices": []}`)
	assert.ErrorIs(t, err, ErrMalformedReply)

	_, err = fromOpenAIResponseJSON(t, `{"choices": [{"message": {"role": "assistant", "tool_calls": [
		{"id": "c", "type": "function", "function": {"name": "x", "arguments": "{not json"}}]}}]}`)
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestOpenAIServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error": {"message": "overloaded", "type": "server_error"}}`)
	}))
	defer srv.Close()

	svc := NewOpenAI(ProviderConfig{Model: "gpt-test", BaseURL: srv.URL + "/v1"}, testLogger())
	_, err := svc.Generate(context.Background(), conversation.Log{conversation.NewHuman("hi")}, nil)
	assert.Error(t, err)
}

func TestAnthropicMessageMapping(t *testing.T) {
	log := conversation.Log{
		conversation.NewSystem("be helpful"),
		conversation.NewHuman("weather in sf and nyc?"),
		conversation.NewAssistant("",
			conversation.ToolCall{ID: "call_1", Name: "get_weather", Arguments: map[string]any{"location": "sf"}},
			conversation.ToolCall{ID: "call_2", Name: "get_weather", Arguments: map[string]any{"location": "nyc"}},
		),
		conversation.NewToolResult("call_1", "get_weather", `"sunny"`),
		failedResult("call_2", "get_weather", `{"error":"boom","kind":"tool_execution"}`),
	}

	system, msgs := toAnthropicMessages(log)
	require.Len(t, system, 1)
	assert.Equal(t, "be helpful", system[0].Text)

	require.Len(t, msgs, 3)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[0].Role)
	assert.Equal(t, anthropic.MessageParamRoleAssistant, msgs[1].Role)
	assert.Len(t, msgs[1].Content, 2)
	assert.Equal(t, anthropic.MessageParamRoleUser, msgs[2].Role)
	require.Len(t, msgs[2].Content, 2, "consecutive tool results share one user message")
	require.NotNil(t, msgs[2].Content[0].OfToolResult)
	require.NotNil(t, msgs[2].Content[1].OfToolResult)
	assert.False(t, msgs[2].Content[0].OfToolResult.IsError.Value)
	assert.True(t, msgs[2].Content[1].OfToolResult.IsError.Value, "failed results are flagged for the API")
}

func failedResult(callID, name, content string) conversation.Message {
	m := conversation.NewToolResult(callID, name, content)
	m.IsError = true
	return m
}

func TestSummarizer(t *testing.T) {
	stub := &stubService{reply: &Reply{Text: "  short summary \n"}}
	s := NewSummarizer(stub, testLogger())

	out, err := s.Summarize(context.Background(), "human: hi\nassistant: hello")
	require.NoError(t, err)
	assert.Equal(t, "short summary", out)

	require.Len(t, stub.seen, 1)
	prompt := stub.seen[0]
	require.Len(t, prompt, 1)
	assert.Equal(t, conversation.RoleHuman, prompt[0].Role)
	assert.True(t, strings.HasPrefix(prompt[0].Content, "Write a concise summary of the following:"))
	assert.Contains(t, prompt[0].Content, "assistant: hello")
	assert.True(t, strings.HasSuffix(prompt[0].Content, "CONCISE SUMMARY:"))

	stub.reply = &Reply{Text: "   "}
	_, err = s.Summarize(context.Background(), "x")
	assert.ErrorIs(t, err, ErrMalformedReply)

	stub.err = errors.New("down")
	_, err = s.Summarize(context.Background(), "x")
	assert.ErrorContains(t, err, "down")
}

func TestFallback(t *testing.T) {
	primary := &stubService{err: errors.New("primary down"), cntErr: errors.New("no counter")}
	secondary := &stubService{reply: &Reply{Text: "from fallback"}, count: 42}
	f := NewFallback(primary, secondary, testLogger())

	reply, err := f.Generate(context.Background(), conversation.Log{conversation.NewHuman("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "from fallback", reply.Text)

	n, err := f.CountTokens(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	secondary.err = errors.New("fallback down")
	_, err = f.Generate(context.Background(), conversation.Log{conversation.NewHuman("hi")}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary down")
	assert.Contains(t, err.Error(), "fallback down")
}
