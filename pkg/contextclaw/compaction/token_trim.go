package compaction

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
)

// TokenTrim limits what the model sees to a token budget. The stored log
// keeps growing; only the prompt view is trimmed, right before each call.
type TokenTrim struct {
	base
	maxTokens int
	counter   TokenCounter
}

// NewTokenTrim creates a token_trim policy.
func NewTokenTrim(maxTokens int, counter TokenCounter, logger *slog.Logger) *TokenTrim {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenTrim{base: base{logger: logger}, maxTokens: maxTokens, counter: counter}
}

func (p *TokenTrim) Strategy() Strategy { return StrategyTokenTrim }

// Prompt returns the trimmed view of log.
func (p *TokenTrim) Prompt(ctx context.Context, log conversation.Log) (conversation.Log, error) {
	out, err := TrimTokens(ctx, log, p.maxTokens, p.counter)
	if err != nil {
		return nil, err
	}
	if len(out) < len(log) {
		p.logger.Debug("prompt trimmed to token budget",
			"messages_before", len(log),
			"messages_after", len(out),
			"max_tokens", p.maxTokens,
		)
	}
	return out, nil
}

// TrimTokens selects the longest suffix of log that fits maxTokens, keeping a
// leading system message when it fits too. The suffix always starts on a
// human message and ends on a human or tool_result message, so an assistant
// tool call is never cut off from its results.
//
// When nothing fits with the system message, the system message goes first;
// when nothing fits at all, the suffix starting at the last human message is
// returned even though it exceeds the budget. A log with no human message to
// anchor on yields ErrCompactionInvariant.
func TrimTokens(ctx context.Context, log conversation.Log, maxTokens int, counter TokenCounter) (conversation.Log, error) {
	if len(log) == 0 {
		return conversation.Log{}, nil
	}

	var system conversation.Log
	rest := log
	if log[0].Role == conversation.RoleSystem {
		system = log[:1]
		rest = log[1:]
	}

	// ── End anchor: drop trailing messages that are not human/tool_result ──
	end := len(rest)
	for end > 0 && !endAnchor(rest[end-1].Role) {
		end--
	}
	rest = rest[:end]

	// ── Start anchor: candidate suffixes begin at human messages ──
	var starts []int
	for i, m := range rest {
		if m.Role == conversation.RoleHuman {
			starts = append(starts, i)
		}
	}
	if len(starts) == 0 {
		return nil, fmt.Errorf("%w: no human message to anchor the prompt on", ErrCompactionInvariant)
	}

	build := func(withSystem bool, start int) conversation.Log {
		out := make(conversation.Log, 0, len(system)+len(rest)-start)
		if withSystem {
			out = append(out, system...)
		}
		out = append(out, rest[start:]...)
		return out
	}

	// first returns the index into starts of the longest fitting suffix, or
	// len(starts) if none fits. Longer suffixes never count fewer tokens.
	first := func(withSystem bool) (int, error) {
		lo, hi := 0, len(starts)
		for lo < hi {
			mid := (lo + hi) / 2
			n, err := counter.CountTokens(ctx, build(withSystem, starts[mid]))
			if err != nil {
				return 0, fmt.Errorf("count tokens: %w", err)
			}
			if n <= maxTokens {
				hi = mid
			} else {
				lo = mid + 1
			}
		}
		return lo, nil
	}

	if len(system) > 0 {
		k, err := first(true)
		if err != nil {
			return nil, err
		}
		if k < len(starts) {
			return build(true, starts[k]).Clone(), nil
		}
	}

	k, err := first(false)
	if err != nil {
		return nil, err
	}
	if k < len(starts) {
		return build(false, starts[k]).Clone(), nil
	}

	return build(false, starts[len(starts)-1]).Clone(), nil
}

func endAnchor(r conversation.Role) bool {
	return r == conversation.RoleHuman || r == conversation.RoleToolResult
}
