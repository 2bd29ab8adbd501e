package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/compaction"
)

// State is a node of the loop's state machine.
type State string

const (
	StateStart         State = "start"
	StateModelCall     State = "model_call"
	StateDispatchTools State = "dispatch_tools"
	StateCompact       State = "compact"
	StateEnd           State = "end"
)

// EventKind identifies what an Event reports.
type EventKind string

const (
	EventTurnStarted      EventKind = "turn_started"
	EventPreambleInjected EventKind = "preamble_injected"
	EventModelReplied     EventKind = "model_replied"
	EventRouted           EventKind = "routed"
	EventToolResult       EventKind = "tool_result"
	EventCompacted        EventKind = "compacted"
	EventTurnCompleted    EventKind = "turn_completed"
	EventTurnFailed       EventKind = "turn_failed"
)

// Event is emitted at every state transition of a turn.
type Event struct {
	Kind      EventKind
	TurnID    string
	Strategy  compaction.Strategy
	State     State
	Iteration int

	// LogLen is the length of the working log after the transition.
	LogLen int

	// PromptLen is the number of messages sent to the model (model_replied).
	PromptLen int

	Decision   Decision // routed
	ToolName   string   // tool_result
	ToolCallID string   // tool_result
	Update     string   // compacted

	PromptTokens     int // model_replied
	CompletionTokens int // model_replied

	Duration time.Duration
	Err      error
	Time     time.Time
}

// Observer receives loop events. Implementations must not block for long;
// they run inline with the turn.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// Observers fans an event out to several observers in order.
type Observers []Observer

func (o Observers) Observe(ctx context.Context, ev Event) {
	for _, obs := range o {
		if obs != nil {
			obs.Observe(ctx, ev)
		}
	}
}

type nopObserver struct{}

func (nopObserver) Observe(context.Context, Event) {}

// SlogObserver writes events as structured log records.
type SlogObserver struct {
	logger *slog.Logger
}

// NewSlogObserver creates an observer logging to logger.
func NewSlogObserver(logger *slog.Logger) *SlogObserver {
	return &SlogObserver{logger: logger.With("component", "agent")}
}

// Observe implements Observer.
func (s *SlogObserver) Observe(ctx context.Context, ev Event) {
	attrs := []any{
		"turn_id", ev.TurnID,
		"state", string(ev.State),
		"iteration", ev.Iteration,
		"log_len", ev.LogLen,
	}

	switch ev.Kind {
	case EventTurnStarted:
		s.logger.DebugContext(ctx, "turn started", append(attrs, "strategy", string(ev.Strategy))...)
	case EventPreambleInjected:
		s.logger.DebugContext(ctx, "system preamble injected", attrs...)
	case EventModelReplied:
		s.logger.InfoContext(ctx, "model call complete", append(attrs,
			"prompt_messages", ev.PromptLen,
			"prompt_tokens", ev.PromptTokens,
			"completion_tokens", ev.CompletionTokens,
			"llm_ms", ev.Duration.Milliseconds(),
		)...)
	case EventRouted:
		s.logger.DebugContext(ctx, "routed", append(attrs, "decision", string(ev.Decision))...)
	case EventToolResult:
		attrs = append(attrs, "tool", ev.ToolName, "tool_call_id", ev.ToolCallID, "tool_ms", ev.Duration.Milliseconds())
		if ev.Err != nil {
			s.logger.WarnContext(ctx, "tool call failed", append(attrs, "error", ev.Err)...)
			return
		}
		s.logger.InfoContext(ctx, "tool call complete", attrs...)
	case EventCompacted:
		s.logger.InfoContext(ctx, "history compacted", append(attrs,
			"strategy", string(ev.Strategy),
			"update", ev.Update,
		)...)
	case EventTurnCompleted:
		s.logger.InfoContext(ctx, "turn completed", append(attrs, "turn_ms", ev.Duration.Milliseconds())...)
	case EventTurnFailed:
		s.logger.ErrorContext(ctx, "turn failed", append(attrs, "error", ev.Err)...)
	default:
		s.logger.DebugContext(ctx, string(ev.Kind), attrs...)
	}
}
