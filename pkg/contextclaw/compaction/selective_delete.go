package compaction

import (
	"context"
	"log/slog"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
)

// SelectiveDelete drops the oldest messages by ID once a turn ends with a
// plain reply. Roles and content are not considered.
type SelectiveDelete struct {
	base
	count int
}

// NewSelectiveDelete creates a selective_delete policy removing count
// messages per turn.
func NewSelectiveDelete(count int, logger *slog.Logger) *SelectiveDelete {
	if logger == nil {
		logger = slog.Default()
	}
	return &SelectiveDelete{base: base{logger: logger}, count: count}
}

func (p *SelectiveDelete) Strategy() Strategy { return StrategySelectiveDelete }

// KeepsPreamble is false: a stored preamble would be the first message
// deleted and come back every turn, growing the log by one per turn.
func (p *SelectiveDelete) KeepsPreamble() bool { return false }

// NeedsCompaction reports whether the log is longer than the delete count.
func (p *SelectiveDelete) NeedsCompaction(log conversation.Log) bool {
	return len(log) > p.count
}

// Compact returns a Remove for the oldest messages.
func (p *SelectiveDelete) Compact(_ context.Context, log conversation.Log) (Update, error) {
	if !p.NeedsCompaction(log) {
		return nil, nil
	}
	ids := log[:p.count].IDs()
	p.logger.Debug("deleting oldest messages", "ids", ids, "log_len", len(log))
	return Remove{IDs: ids}, nil
}
