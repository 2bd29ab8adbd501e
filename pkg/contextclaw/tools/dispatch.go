package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
)

// ExecutionError wraps a failure raised by a registered tool.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Error kinds carried in error payloads.
const (
	KindToolNotFound  = "tool_not_found"
	KindToolExecution = "tool_execution"
)

// ErrorPayload is the JSON content of a tool_result that reports a failure.
type ErrorPayload struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// Outcome records what happened to one tool call.
type Outcome struct {
	Call     conversation.ToolCall
	Result   conversation.Message
	Err      error
	Duration time.Duration
}

// Dispatcher executes the tool calls of an assistant message.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, logger: logger.With("component", "tools")}
}

// Registry returns the registry calls are resolved against.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch runs the tool calls of msg in request order and returns one
// outcome per call. Messages that are not assistant tool-call messages yield
// nothing. Failures never escape: an unknown tool or a failing tool becomes a
// tool_result carrying an ErrorPayload, so every call gets exactly one result.
func (d *Dispatcher) Dispatch(ctx context.Context, msg conversation.Message) []Outcome {
	if !msg.HasToolCalls() {
		return nil
	}

	outcomes := make([]Outcome, 0, len(msg.ToolCalls))
	for _, call := range msg.ToolCalls {
		start := time.Now()
		content, err := d.run(ctx, call)
		outcome := Outcome{
			Call:     call,
			Result:   conversation.NewToolResult(call.ID, call.Name, content),
			Err:      err,
			Duration: time.Since(start),
		}
		if err != nil {
			outcome.Result.IsError = true
			d.logger.Warn("tool call failed",
				"tool", call.Name,
				"tool_call_id", call.ID,
				"error", err,
			)
		} else {
			d.logger.Debug("tool call complete",
				"tool", call.Name,
				"tool_call_id", call.ID,
				"duration_ms", outcome.Duration.Milliseconds(),
			)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// Messages extracts the tool_result messages from outcomes.
func Messages(outcomes []Outcome) []conversation.Message {
	msgs := make([]conversation.Message, len(outcomes))
	for i, o := range outcomes {
		msgs[i] = o.Result
	}
	return msgs
}

// run executes one call and returns the serialized content. The error is
// informational; content always holds something to put in the log.
func (d *Dispatcher) run(ctx context.Context, call conversation.ToolCall) (string, error) {
	if call.Name == "" {
		err := fmt.Errorf("%w: call has no name", ErrToolNotFound)
		return errorContent(err, KindToolNotFound), err
	}
	tool, ok := d.registry.Get(call.Name)
	if !ok {
		err := fmt.Errorf("%w: %s", ErrToolNotFound, call.Name)
		return errorContent(err, KindToolNotFound), err
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if err := validateArgs(args, tool.Parameters()); err != nil {
		err = &ExecutionError{Tool: call.Name, Err: err}
		return errorContent(err, KindToolExecution), err
	}

	result, err := safeExecute(ctx, tool, args)
	if err != nil {
		err = &ExecutionError{Tool: call.Name, Err: err}
		return errorContent(err, KindToolExecution), err
	}

	data, err := json.Marshal(result)
	if err != nil {
		err = &ExecutionError{Tool: call.Name, Err: fmt.Errorf("encode result: %w", err)}
		return errorContent(err, KindToolExecution), err
	}
	return string(data), nil
}

// safeExecute runs the tool, converting a panic into an error.
func safeExecute(ctx context.Context, tool Tool, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return tool.Execute(ctx, args)
}

func errorContent(err error, kind string) string {
	msg := err.Error()
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		msg = execErr.Err.Error()
	}
	data, _ := json.Marshal(ErrorPayload{Error: msg, Kind: kind})
	return string(data)
}
