package transcript

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/agent"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/compaction"
)

func openTestStore(t *testing.T, session string) *Store {
	t.Helper()
	store, err := OpenStore(StoreConfig{
		Path:    filepath.Join(t.TempDir(), "data", "transcript.db"),
		Session: session,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestOpenStoreRequiresPath(t *testing.T) {
	_, err := OpenStore(StoreConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Path is required")
}

func TestStoreRecordsEvents(t *testing.T) {
	store := openTestStore(t, "s1")
	ctx := context.Background()

	events := []agent.Event{
		{Kind: agent.EventTurnStarted, TurnID: "t1", Strategy: compaction.StrategySummarize, State: agent.StateStart, Iteration: 0, LogLen: 3},
		{Kind: agent.EventRouted, TurnID: "t1", Strategy: compaction.StrategySummarize, State: agent.StateModelCall, Decision: agent.DecisionTools, Iteration: 1, LogLen: 5},
		{Kind: agent.EventToolResult, TurnID: "t1", Strategy: compaction.StrategySummarize, State: agent.StateDispatchTools, ToolName: "get_weather", ToolCallID: "c1", Duration: 12 * time.Millisecond, Err: errors.New("boom")},
		{Kind: agent.EventCompacted, TurnID: "t1", Strategy: compaction.StrategySummarize, State: agent.StateCompact, Update: "replace(3)", LogLen: 3},
	}
	for _, ev := range events {
		store.Observe(ctx, ev)
	}

	records, err := store.Recent(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "turn_started", records[0].Kind)
	assert.Equal(t, "s1", records[0].Session)
	assert.Equal(t, "summarize", records[0].Strategy)

	assert.Equal(t, "tools", records[1].Decision)
	assert.Equal(t, 1, records[1].Iteration)

	assert.Equal(t, "get_weather", records[2].ToolName)
	assert.Equal(t, "c1", records[2].ToolCallID)
	assert.Equal(t, "boom", records[2].Error)
	assert.Equal(t, 12*time.Millisecond, records[2].Duration)

	assert.Equal(t, "replace(3)", records[3].Detail)
	assert.False(t, records[3].CreatedAt.IsZero())
}

func TestStoreRecentLimitAndSession(t *testing.T) {
	store := openTestStore(t, "a")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Write(ctx, agent.Event{Kind: agent.EventRouted, TurnID: "t", Iteration: i}))
	}

	records, err := store.Recent(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 3, records[0].Iteration)
	assert.Equal(t, 4, records[1].Iteration)

	records, err = store.Recent(ctx, "other", 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStoreWriteSurvivesCancelledContext(t *testing.T) {
	store := openTestStore(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, store.Write(ctx, agent.Event{Kind: agent.EventTurnFailed, TurnID: "t", Err: context.Canceled}))

	records, err := store.Recent(context.Background(), "", 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, context.Canceled.Error(), records[0].Error)
}

func TestStoreTurns(t *testing.T) {
	store := openTestStore(t, "s")
	ctx := context.Background()

	write := func(ev agent.Event) {
		ev.Strategy = compaction.StrategySelectiveDelete
		require.NoError(t, store.Write(ctx, ev))
	}

	write(agent.Event{Kind: agent.EventTurnStarted, TurnID: "t1", LogLen: 2})
	write(agent.Event{Kind: agent.EventModelReplied, TurnID: "t1", LogLen: 3})
	write(agent.Event{Kind: agent.EventToolResult, TurnID: "t1", LogLen: 4, Err: errors.New("x")})
	write(agent.Event{Kind: agent.EventModelReplied, TurnID: "t1", LogLen: 5})
	write(agent.Event{Kind: agent.EventCompacted, TurnID: "t1", LogLen: 3})
	write(agent.Event{Kind: agent.EventTurnCompleted, TurnID: "t1", LogLen: 3})

	write(agent.Event{Kind: agent.EventTurnStarted, TurnID: "t2", LogLen: 3})
	write(agent.Event{Kind: agent.EventTurnFailed, TurnID: "t2", LogLen: 4, Err: errors.New("model down")})

	turns, err := store.Turns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)

	t1 := turns[0]
	assert.Equal(t, "t1", t1.TurnID)
	assert.Equal(t, "selective_delete", t1.Strategy)
	assert.Equal(t, 2, t1.ModelCalls)
	assert.Equal(t, 1, t1.ToolCalls)
	assert.Equal(t, 1, t1.ToolErrors)
	assert.True(t, t1.Compacted)
	assert.False(t, t1.Failed)
	assert.Equal(t, 3, t1.FinalLen)

	t2 := turns[1]
	assert.Equal(t, "t2", t2.TurnID)
	assert.True(t, t2.Failed)
	assert.False(t, t2.Compacted)
	assert.Equal(t, 4, t2.FinalLen)
}

func TestStoreImplementsObserver(t *testing.T) {
	store := openTestStore(t, "")
	var obs agent.Observer = agent.Observers{store}
	obs.Observe(context.Background(), agent.Event{Kind: agent.EventTurnCompleted, TurnID: "t"})

	records, err := store.Recent(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
