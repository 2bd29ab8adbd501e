package compaction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
)

// Summarize replaces everything but the most recent messages with a single
// system message holding a summary. Summaries are lossy; the replaced
// messages are gone from the log afterwards.
type Summarize struct {
	base
	threshold  int
	keep       int
	prefix     string
	summarizer Summarizer
}

// NewSummarize creates a summarize policy. It fires once the log holds more
// than threshold messages and keeps the last keep messages verbatim.
func NewSummarize(threshold, keep int, prefix string, summarizer Summarizer, logger *slog.Logger) *Summarize {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarize{
		base:       base{logger: logger},
		threshold:  threshold,
		keep:       keep,
		prefix:     prefix,
		summarizer: summarizer,
	}
}

func (p *Summarize) Strategy() Strategy { return StrategySummarize }

// KeepsPreamble is false: only conversation text counts toward the
// threshold and reaches the summarizer.
func (p *Summarize) KeepsPreamble() bool { return false }

// NeedsCompaction reports whether the log is past the threshold and the model
// is not waiting on tool results.
func (p *Summarize) NeedsCompaction(log conversation.Log) bool {
	last, ok := log.Last()
	if !ok || last.HasToolCalls() {
		return false
	}
	return len(log) > p.threshold
}

// Compact summarizes the older part of log. The retained tail never begins
// with a tool_result: the cut moves forward past any leading results so they
// are summarized along with their tool call.
func (p *Summarize) Compact(ctx context.Context, log conversation.Log) (Update, error) {
	if len(log) <= p.keep {
		return nil, nil
	}

	cut := len(log) - p.keep
	for cut < len(log)-1 && log[cut].Role == conversation.RoleToolResult {
		cut++
	}
	older, tail := log[:cut], log[cut:]

	summary, err := p.summarizer.Summarize(ctx, older.Transcript())
	if err != nil {
		return nil, fmt.Errorf("summarize %d messages: %w", len(older), err)
	}
	summary = strings.TrimSpace(summary)

	out := make([]conversation.Message, 0, len(tail)+1)
	out = append(out, conversation.NewSystem(p.prefix+summary))
	out = append(out, tail.Clone()...)

	p.logger.Info("conversation summarized",
		"messages_summarized", len(older),
		"messages_kept", len(tail),
		"summary_len", len(summary),
	)
	return Replace{Messages: out}, nil
}

// IsSummary reports whether m is a summary marker written with prefix.
func IsSummary(m conversation.Message, prefix string) bool {
	return m.Role == conversation.RoleSystem && strings.HasPrefix(m.Content, prefix)
}
