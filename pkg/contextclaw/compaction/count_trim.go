package compaction

import (
	"fmt"
	"log/slog"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
)

// CountTrim keeps the last N messages after every update. It has no notion of
// anchoring, so a window boundary can land between an assistant tool call and
// its results. That split is kept as-is and reported at warn level.
type CountTrim struct {
	base
	max int
}

// NewCountTrim creates a count_trim policy with window size max.
func NewCountTrim(max int, logger *slog.Logger) *CountTrim {
	if logger == nil {
		logger = slog.Default()
	}
	return &CountTrim{base: base{logger: logger}, max: max}
}

func (p *CountTrim) Strategy() Strategy { return StrategyCountTrim }

// Reduce handles Append (append then trim) and TrimToCount. Any other update
// yields ErrUnsupportedUpdate.
func (p *CountTrim) Reduce(log conversation.Log, u Update) (conversation.Log, error) {
	switch u := u.(type) {
	case Append:
		out, err := appendMessages(log, u.Messages)
		if err != nil {
			return nil, err
		}
		return p.trim(out, p.max), nil
	case TrimToCount:
		if u.N <= 0 {
			return nil, fmt.Errorf("%w: trim count must be positive, got %d", ErrCompactionInvariant, u.N)
		}
		return p.trim(log.Clone(), u.N), nil
	default:
		return nil, fmt.Errorf("%w: count_trim accepts append or trim_to_count, got %s", ErrUnsupportedUpdate, Describe(u))
	}
}

func (p *CountTrim) trim(log conversation.Log, n int) conversation.Log {
	out := keepLast(log, n)
	if len(out) < len(log) && out[0].Role == conversation.RoleToolResult {
		p.logger.Warn("count trim split a tool call from its results",
			"tool_call_id", out[0].ToolCallID,
			"dropped", len(log)-len(out),
		)
	}
	return out
}
