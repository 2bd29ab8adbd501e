// Package agent – loop.go implements the turn loop: call the model, dispatch
// any tool calls it asks for, feed the results back, and repeat until the
// model answers without tools. The active compaction policy decides how
// updates land in the log, what the model sees, and whether the log shrinks
// once the turn is over.
//
// A turn is atomic from the caller's point of view: RunTurn works on a copy
// and hands back the caller's log untouched when anything fatal happens.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/compaction"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/llm"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/tools"
)

var (
	// ErrModelService marks turn failures caused by the model: a failed call
	// or a reply that cannot be used.
	ErrModelService = errors.New("model service error")

	// ErrMaxIterations is returned when a turn exceeds Config.MaxIterations.
	ErrMaxIterations = errors.New("max iterations reached")
)

// TurnError reports a failed turn.
type TurnError struct {
	TurnID    string
	Stage     State
	Iteration int

	// Partial is the working log at the time of failure, for inspection
	// only. The log returned alongside the error is the pre-turn log.
	Partial conversation.Log

	Err error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("turn %s failed at %s (iteration %d): %v", e.TurnID, e.Stage, e.Iteration, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

// Loop runs turns of one conversation. It holds no conversation state; the
// log is passed in and returned by RunTurn.
type Loop struct {
	model          llm.Service
	dispatcher     *tools.Dispatcher
	policy         compaction.Policy
	preamble       string
	runTimeout     time.Duration
	llmCallTimeout time.Duration
	maxIterations  int
	observer       Observer
	logger         *slog.Logger
}

// New creates a loop with default settings.
func New(model llm.Service, dispatcher *tools.Dispatcher, policy compaction.Policy, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		model:          model,
		dispatcher:     dispatcher,
		policy:         policy,
		preamble:       DefaultPreamble,
		runTimeout:     DefaultRunTimeout,
		llmCallTimeout: DefaultLLMCallTimeout,
		observer:       nopObserver{},
		logger:         logger.With("component", "agent"),
	}
}

// NewWithConfig creates a loop with explicit configuration.
func NewWithConfig(model llm.Service, dispatcher *tools.Dispatcher, policy compaction.Policy, cfg Config, logger *slog.Logger) *Loop {
	l := New(model, dispatcher, policy, logger)
	if cfg.RunTimeoutSeconds > 0 {
		l.runTimeout = time.Duration(cfg.RunTimeoutSeconds) * time.Second
	}
	if cfg.LLMCallTimeoutSeconds > 0 {
		l.llmCallTimeout = time.Duration(cfg.LLMCallTimeoutSeconds) * time.Second
	}
	if cfg.MaxIterations >= 0 {
		l.maxIterations = cfg.MaxIterations
	}
	l.preamble = ComposePreamble(cfg)
	return l
}

// SetObserver sets the observer that receives loop events.
func (l *Loop) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	l.observer = o
}

// Policy returns the active compaction policy.
func (l *Loop) Policy() compaction.Policy {
	return l.policy
}

// Preamble returns the system preamble the loop injects.
func (l *Loop) Preamble() string {
	return l.preamble
}

// turn carries the per-turn bookkeeping.
type turn struct {
	id        string
	start     time.Time
	iteration int
	log       conversation.Log
}

// RunTurn adds input to log and runs the loop until the model produces a
// reply without tool calls, then applies post-turn compaction if the policy
// asks for it. On failure the caller's log is returned with a *TurnError.
func (l *Loop) RunTurn(ctx context.Context, log conversation.Log, input conversation.Message) (conversation.Log, error) {
	t := &turn{id: uuid.New().String(), start: time.Now(), log: log.Clone()}

	runCtx := ctx
	if l.runTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, l.runTimeout)
		defer cancel()
	}

	l.emit(runCtx, t, Event{Kind: EventTurnStarted, State: StateStart})

	input = input.WithID()
	if err := input.Validate(); err != nil {
		return log, l.fail(runCtx, t, StateStart, fmt.Errorf("invalid input: %w", err))
	}

	// ── Preamble: exactly one leading system message ──
	// Policies that delete or summarize old messages keep it out of the
	// stored log; callModel adds it to every prompt regardless.
	if l.policy.KeepsPreamble() {
		var injected bool
		t.log, injected = EnsurePreamble(t.log, l.preamble)
		if injected {
			l.emit(runCtx, t, Event{Kind: EventPreambleInjected, State: StateStart})
		}
	}

	if err := l.apply(t, compaction.Append{Messages: []conversation.Message{input}}); err != nil {
		return log, l.fail(runCtx, t, StateStart, err)
	}

	for {
		t.iteration++

		if l.maxIterations > 0 && t.iteration > l.maxIterations {
			return log, l.fail(runCtx, t, StateModelCall,
				fmt.Errorf("%w (%d)", ErrMaxIterations, l.maxIterations))
		}
		if err := runCtx.Err(); err != nil {
			if ctx.Err() != nil {
				return log, l.fail(runCtx, t, StateModelCall, fmt.Errorf("agent cancelled: %w", ctx.Err()))
			}
			return log, l.fail(runCtx, t, StateModelCall,
				fmt.Errorf("agent run timeout (%s): %w", l.runTimeout, err))
		}

		// ── Model call ──
		reply, stage, err := l.callModel(runCtx, t)
		if err != nil {
			return log, l.fail(runCtx, t, stage, err)
		}

		assistant := conversation.NewAssistant(reply.Text, reply.ToolCalls...)
		if err := l.apply(t, compaction.Append{Messages: []conversation.Message{assistant}}); err != nil {
			return log, l.fail(runCtx, t, StateModelCall, err)
		}

		// ── Routing ──
		decision := Route(t.log, l.policy.NeedsCompaction)
		l.emit(runCtx, t, Event{Kind: EventRouted, State: StateModelCall, Decision: decision})

		switch decision {
		case DecisionTools:
			if err := l.dispatchTools(runCtx, t, assistant); err != nil {
				return log, l.fail(runCtx, t, StateDispatchTools, err)
			}

		case DecisionCompact:
			update, err := l.policy.Compact(runCtx, t.log)
			if err != nil {
				return log, l.fail(runCtx, t, StateCompact, err)
			}
			if update != nil {
				if err := l.apply(t, update); err != nil {
					return log, l.fail(runCtx, t, StateCompact, err)
				}
			}
			l.emit(runCtx, t, Event{Kind: EventCompacted, State: StateCompact, Update: compaction.Describe(update)})
			return l.complete(runCtx, t), nil

		case DecisionEnd:
			return l.complete(runCtx, t), nil
		}
	}
}

// callModel builds the prompt through the policy and asks the model for the
// next message. The returned state tells which stage failed.
func (l *Loop) callModel(ctx context.Context, t *turn) (*llm.Reply, State, error) {
	prompt, _ := EnsurePreamble(t.log, l.preamble)
	prompt, err := l.policy.Prompt(ctx, prompt)
	if err != nil {
		return nil, StateCompact, fmt.Errorf("build prompt: %w", err)
	}
	if len(prompt) < len(t.log) {
		l.logger.Debug("prompt narrower than log",
			"turn_id", t.id,
			"log_len", len(t.log),
			"prompt_len", len(prompt),
		)
	}

	var schemas []llm.ToolSchema
	if l.dispatcher != nil {
		schemas = l.dispatcher.Registry().Schemas()
	}

	callCtx := ctx
	if l.llmCallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, l.llmCallTimeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := l.model.Generate(callCtx, prompt, schemas)
	duration := time.Since(start)
	if err != nil {
		return nil, StateModelCall, fmt.Errorf("%w: %w", ErrModelService, err)
	}
	if err := normalizeReply(reply); err != nil {
		return nil, StateModelCall, fmt.Errorf("%w: %w", ErrModelService, err)
	}

	l.emit(ctx, t, Event{
		Kind:             EventModelReplied,
		State:            StateModelCall,
		PromptLen:        len(prompt),
		PromptTokens:     reply.Usage.PromptTokens,
		CompletionTokens: reply.Usage.CompletionTokens,
		Duration:         duration,
	})
	return reply, "", nil
}

// normalizeReply rejects unusable replies and fills in missing call IDs.
func normalizeReply(reply *llm.Reply) error {
	if reply == nil {
		return fmt.Errorf("%w: nil reply", llm.ErrMalformedReply)
	}
	for i := range reply.ToolCalls {
		if reply.ToolCalls[i].Name == "" {
			return fmt.Errorf("%w: tool call %d has no name", llm.ErrMalformedReply, i)
		}
		if reply.ToolCalls[i].ID == "" {
			reply.ToolCalls[i].ID = "call_" + uuid.New().String()
		}
	}
	return nil
}

// dispatchTools runs the calls of msg and appends their results.
func (l *Loop) dispatchTools(ctx context.Context, t *turn, msg conversation.Message) error {
	if l.dispatcher == nil {
		return fmt.Errorf("model requested %d tool call(s) but no tools are configured", len(msg.ToolCalls))
	}
	outcomes := l.dispatcher.Dispatch(ctx, msg)
	if err := l.apply(t, compaction.Append{Messages: tools.Messages(outcomes)}); err != nil {
		return err
	}
	for _, o := range outcomes {
		l.emit(ctx, t, Event{
			Kind:       EventToolResult,
			State:      StateDispatchTools,
			ToolName:   o.Call.Name,
			ToolCallID: o.Call.ID,
			Duration:   o.Duration,
			Err:        o.Err,
		})
	}
	return nil
}

func (l *Loop) apply(t *turn, u compaction.Update) error {
	next, err := l.policy.Reduce(t.log, u)
	if err != nil {
		return err
	}
	t.log = next
	return nil
}

func (l *Loop) complete(ctx context.Context, t *turn) conversation.Log {
	l.emit(ctx, t, Event{Kind: EventTurnCompleted, State: StateEnd, Duration: time.Since(t.start)})
	return t.log
}

func (l *Loop) fail(ctx context.Context, t *turn, stage State, err error) error {
	l.emit(ctx, t, Event{Kind: EventTurnFailed, State: stage, Err: err, Duration: time.Since(t.start)})
	return &TurnError{
		TurnID:    t.id,
		Stage:     stage,
		Iteration: t.iteration,
		Partial:   t.log,
		Err:       err,
	}
}

func (l *Loop) emit(ctx context.Context, t *turn, ev Event) {
	ev.TurnID = t.id
	ev.Strategy = l.policy.Strategy()
	ev.Iteration = t.iteration
	ev.LogLen = len(t.log)
	ev.Time = time.Now()
	l.observer.Observe(ctx, ev)
}
