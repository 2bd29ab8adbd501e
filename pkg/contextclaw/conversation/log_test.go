package conversation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessagesCarryIDs(t *testing.T) {
	h := NewHuman("hi")
	a := NewAssistant("hello")
	require.NotEmpty(t, h.ID)
	require.NotEmpty(t, a.ID)
	assert.NotEqual(t, h.ID, a.ID)
	assert.Equal(t, RoleHuman, h.Role)
	assert.False(t, h.CreatedAt.IsZero())
}

func TestRoleValid(t *testing.T) {
	for _, r := range []Role{RoleSystem, RoleHuman, RoleAssistant, RoleToolResult} {
		assert.True(t, r.Valid(), r)
	}
	assert.False(t, Role("tool").Valid())
	assert.False(t, Role("").Valid())
}

func TestCloneDoesNotShareToolCalls(t *testing.T) {
	orig := NewAssistant("", ToolCall{ID: "c1", Name: "get_weather", Arguments: map[string]any{"location": "sf"}})
	log := Log{orig}

	cp := log.Clone()
	cp[0].ToolCalls[0].Arguments["location"] = "nyc"
	cp[0].ToolCalls[0].Name = "other"

	assert.Equal(t, "sf", log[0].ToolCalls[0].Arguments["location"])
	assert.Equal(t, "get_weather", log[0].ToolCalls[0].Name)
}

func TestWithIDFillsMissing(t *testing.T) {
	m := Message{Role: RoleHuman, Content: "x"}.WithID()
	assert.NotEmpty(t, m.ID)
	assert.False(t, m.CreatedAt.IsZero())

	kept := Message{ID: "fixed", Role: RoleHuman}.WithID()
	assert.Equal(t, "fixed", kept.ID)
}

func TestTail(t *testing.T) {
	log := Log{NewHuman("1"), NewAssistant("2"), NewHuman("3")}
	assert.Len(t, log.Tail(2), 2)
	assert.Equal(t, "2", log.Tail(2)[0].Content)
	assert.Len(t, log.Tail(10), 3)
	assert.Empty(t, log.Tail(0))
}

func TestValidateCorrelation(t *testing.T) {
	call1 := ToolCall{ID: "c1", Name: "a"}
	call2 := ToolCall{ID: "c2", Name: "b"}

	good := Log{
		NewHuman("q"),
		NewAssistant("", call1, call2),
		NewToolResult("c1", "a", "{}"),
		NewToolResult("c2", "b", "{}"),
		NewAssistant("done"),
	}
	require.NoError(t, good.Validate())

	t.Run("trailing pending calls allowed", func(t *testing.T) {
		require.NoError(t, good[:2].Validate())
	})

	t.Run("orphan result", func(t *testing.T) {
		err := Log{NewHuman("q"), NewToolResult("c1", "a", "{}")}.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrBrokenCorrelation))
	})

	t.Run("out of order", func(t *testing.T) {
		bad := Log{good[0], good[1], good[3], good[2]}
		assert.ErrorIs(t, bad.Validate(), ErrBrokenCorrelation)
	})

	t.Run("unanswered before next turn", func(t *testing.T) {
		bad := Log{good[0], good[1], good[2], NewHuman("again")}
		assert.ErrorIs(t, bad.Validate(), ErrBrokenCorrelation)
	})

	t.Run("duplicate id", func(t *testing.T) {
		h := NewHuman("q")
		assert.Error(t, Log{h, h}.Validate())
	})
}

func TestStartsWithSystem(t *testing.T) {
	log := Log{NewSystem("be nice"), NewHuman("hi")}
	assert.True(t, log.StartsWithSystem("be nice"))
	assert.False(t, log.StartsWithSystem("be mean"))
	assert.False(t, Log{}.StartsWithSystem("be nice"))
}

func TestTranscript(t *testing.T) {
	log := Log{
		NewHuman("weather in sf?"),
		NewAssistant("", ToolCall{ID: "c1", Name: "get_weather", Arguments: map[string]any{"location": "sf"}}),
		NewToolResult("c1", "get_weather", `"sunny"`),
	}
	out := log.Transcript()
	assert.Contains(t, out, "human: weather in sf?")
	assert.Contains(t, out, `[call get_weather({"location":"sf"})]`)
	assert.Contains(t, out, `tool_result: "sunny"`)
}
