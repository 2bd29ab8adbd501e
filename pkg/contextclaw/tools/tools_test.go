package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/llm"
)

func newTestDispatcher(t *testing.T, extra ...Tool) *Dispatcher {
	t.Helper()
	reg, err := NewRegistry(append(Builtins(), extra...)...)
	require.NoError(t, err)
	return NewDispatcher(reg, nil)
}

func decodeError(t *testing.T, content string) ErrorPayload {
	t.Helper()
	var p ErrorPayload
	require.NoError(t, json.Unmarshal([]byte(content), &p))
	return p
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(Weather())
	require.NoError(t, err)

	assert.Error(t, reg.Register(Weather()), "duplicate names are rejected")
	assert.Error(t, reg.Register(nil))
	assert.Error(t, reg.Register(Func{}))

	tool, ok := reg.Get("get_weather")
	require.True(t, ok)
	assert.Equal(t, "get_weather", tool.Name())

	_, ok = reg.Get("missing")
	assert.False(t, ok)

	schemas := reg.Schemas()
	require.Len(t, schemas, 1)
	assert.Equal(t, "get_weather", schemas[0].Name)
	assert.Equal(t, []string{"location"}, schemas[0].Parameters.Required)
}

func TestWeather(t *testing.T) {
	tool := Weather()
	out, err := tool.Execute(context.Background(), map[string]any{"location": " San Francisco "})
	require.NoError(t, err)
	assert.Equal(t, "It's sunny in San Francisco, but you better look out if you're a Gemini 😈.", out)

	for _, loc := range []string{"San Francisco, CA", "SF Bay Area", "sf"} {
		out, err = tool.Execute(context.Background(), map[string]any{"location": loc})
		require.NoError(t, err)
		assert.Contains(t, out, "sunny in San Francisco", loc)
	}

	out, err = tool.Execute(context.Background(), map[string]any{"location": "Paris"})
	require.NoError(t, err)
	assert.Equal(t, "I am not sure what the weather is in Paris", out)
}

func TestDispatchNoToolCalls(t *testing.T) {
	d := newTestDispatcher(t)
	assert.Empty(t, d.Dispatch(context.Background(), conversation.NewAssistant("plain answer")))
	assert.Empty(t, d.Dispatch(context.Background(), conversation.NewHuman("hi")))
}

func TestDispatchCorrelatesResults(t *testing.T) {
	d := newTestDispatcher(t)
	msg := conversation.NewAssistant("",
		conversation.ToolCall{ID: "c1", Name: "get_weather", Arguments: map[string]any{"location": "sf"}},
		conversation.ToolCall{ID: "c2", Name: "get_weather", Arguments: map[string]any{"location": "nyc"}},
	)

	outcomes := d.Dispatch(context.Background(), msg)
	require.Len(t, outcomes, 2)
	for i, o := range outcomes {
		assert.NoError(t, o.Err)
		assert.Equal(t, conversation.RoleToolResult, o.Result.Role)
		assert.Equal(t, msg.ToolCalls[i].ID, o.Result.ToolCallID)
		assert.Equal(t, "get_weather", o.Result.ToolName)
	}

	var text string
	require.NoError(t, json.Unmarshal([]byte(outcomes[1].Result.Content), &text))
	assert.Equal(t, "I am not sure what the weather is in nyc", text)

	log := append(conversation.Log{conversation.NewHuman("q"), msg}, Messages(outcomes)...)
	assert.NoError(t, log.Validate())
}

func TestDispatchUnknownTool(t *testing.T) {
	d := newTestDispatcher(t)
	msg := conversation.NewAssistant("", conversation.ToolCall{ID: "c1", Name: "launch_rockets"})

	outcomes := d.Dispatch(context.Background(), msg)
	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].Err, ErrToolNotFound)
	assert.Equal(t, "c1", outcomes[0].Result.ToolCallID)

	p := decodeError(t, outcomes[0].Result.Content)
	assert.Equal(t, KindToolNotFound, p.Kind)
	assert.Contains(t, p.Error, "launch_rockets")
}

func TestDispatchToolFailures(t *testing.T) {
	failing := Func{
		ToolName: "flaky",
		Fn: func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("upstream timeout")
		},
	}
	panicky := Func{
		ToolName: "panicky",
		Fn: func(context.Context, map[string]any) (any, error) {
			panic("boom")
		},
	}
	d := newTestDispatcher(t, failing, panicky)

	msg := conversation.NewAssistant("",
		conversation.ToolCall{ID: "c1", Name: "flaky"},
		conversation.ToolCall{ID: "c2", Name: "panicky"},
		conversation.ToolCall{ID: "c3", Name: "get_weather"},
	)
	outcomes := d.Dispatch(context.Background(), msg)
	require.Len(t, outcomes, 3)

	var execErr *ExecutionError
	require.ErrorAs(t, outcomes[0].Err, &execErr)
	assert.Equal(t, "flaky", execErr.Tool)
	assert.Equal(t, ErrorPayload{Error: "upstream timeout", Kind: KindToolExecution}, decodeError(t, outcomes[0].Result.Content))

	assert.Contains(t, decodeError(t, outcomes[1].Result.Content).Error, "panic: boom")

	p := decodeError(t, outcomes[2].Result.Content)
	assert.Equal(t, "missing required field: location", p.Error)
}

func TestDispatchNamelessCallGetsErrorResult(t *testing.T) {
	d := newTestDispatcher(t)
	msg := conversation.NewAssistant("",
		conversation.ToolCall{ID: "c1"},
		conversation.ToolCall{ID: "c2", Name: "get_weather", Arguments: map[string]any{"location": "sf"}},
	)
	outcomes := d.Dispatch(context.Background(), msg)
	require.Len(t, outcomes, 2, "one result per call")

	assert.Equal(t, "c1", outcomes[0].Result.ToolCallID)
	assert.ErrorIs(t, outcomes[0].Err, ErrToolNotFound)
	assert.True(t, outcomes[0].Result.IsError)
	assert.Equal(t, KindToolNotFound, decodeError(t, outcomes[0].Result.Content).Kind)

	assert.Equal(t, "c2", outcomes[1].Result.ToolCallID)
	assert.NoError(t, outcomes[1].Err)
	assert.False(t, outcomes[1].Result.IsError)
}

func TestValidateArgsTypes(t *testing.T) {
	schema := llm.JSONSchema{
		Type: "object",
		Properties: map[string]any{
			"n":    map[string]any{"type": "integer"},
			"flag": map[string]any{"type": "boolean"},
		},
	}
	assert.NoError(t, validateArgs(map[string]any{"n": float64(3), "flag": true}, schema))
	assert.Error(t, validateArgs(map[string]any{"n": "three"}, schema))
	assert.Error(t, validateArgs(map[string]any{"flag": "yes"}, schema))
}
