// Package compaction – policy.go defines the history compaction strategies the
// agent loop can run with. A strategy decides three things: how updates are
// folded into the log (Reduce), what the model gets to see (Prompt), and
// whether and how the log shrinks once a turn is over (NeedsCompaction and
// Compact).
//
// Strategies:
//   - token_trim: prompt view is the longest anchored suffix that fits a token budget.
//   - count_trim: every update appends then keeps the last N messages.
//   - selective_delete: after a plain reply, the two oldest messages are deleted.
//   - summarize: past a threshold, older messages collapse into one summary message.
package compaction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
)

// Strategy names a compaction policy.
type Strategy string

const (
	StrategyTokenTrim       Strategy = "token_trim"
	StrategyCountTrim       Strategy = "count_trim"
	StrategySelectiveDelete Strategy = "selective_delete"
	StrategySummarize       Strategy = "summarize"
)

// DefaultSummaryPrefix marks system messages produced by the summarize policy.
const DefaultSummaryPrefix = "Summary of previous conversation: "

// Strategies lists every known strategy in display order.
func Strategies() []Strategy {
	return []Strategy{StrategyTokenTrim, StrategyCountTrim, StrategySelectiveDelete, StrategySummarize}
}

// Description returns a one-line explanation of s.
func (s Strategy) Description() string {
	switch s {
	case StrategyTokenTrim:
		return "send the model the longest human-anchored suffix that fits the token budget"
	case StrategyCountTrim:
		return "keep only the last N messages after every update (may split tool pairs)"
	case StrategySelectiveDelete:
		return "delete the two oldest messages after every plain reply"
	case StrategySummarize:
		return "summarize all but the most recent messages once the log grows past a threshold"
	default:
		return "unknown strategy"
	}
}

// ParseStrategy resolves a strategy name. Dashes are accepted for underscores.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_"))
	for _, known := range Strategies() {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown compaction strategy %q", name)
}

// TokenCounter measures the prompt size of a log.
type TokenCounter interface {
	CountTokens(ctx context.Context, log conversation.Log) (int, error)
}

// Summarizer condenses text. It has no tool awareness.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Policy is one compaction strategy.
type Policy interface {
	// Strategy returns the policy's name.
	Strategy() Strategy

	// Reduce folds u into log and returns the new log. The input is never
	// modified. Unknown update variants yield ErrUnsupportedUpdate.
	Reduce(log conversation.Log, u Update) (conversation.Log, error)

	// Prompt returns the view of log to send to the model.
	Prompt(ctx context.Context, log conversation.Log) (conversation.Log, error)

	// NeedsCompaction reports whether a finished turn should be compacted.
	NeedsCompaction(log conversation.Log) bool

	// Compact computes the post-turn update. A nil Update means no change.
	Compact(ctx context.Context, log conversation.Log) (Update, error)

	// KeepsPreamble reports whether the system preamble is stored in the log.
	// When false the preamble only appears in the prompt view, so it neither
	// counts toward the policy's limits nor gets deleted or summarized.
	KeepsPreamble() bool
}

// Config holds the tunables for every strategy; only the fields of the
// selected strategy are used.
type Config struct {
	// Strategy selects the policy (default: token_trim).
	Strategy Strategy `yaml:"strategy"`

	// MaxTokens is the token_trim budget (default: 500).
	MaxTokens int `yaml:"max_tokens"`

	// MaxMessages is the count_trim window (default: 4).
	MaxMessages int `yaml:"max_messages"`

	// DeleteCount is how many of the oldest messages selective_delete drops
	// once the log is longer than that count (default: 2).
	DeleteCount int `yaml:"delete_count"`

	// SummarizeThreshold is the log length past which summarize fires (default: 4).
	SummarizeThreshold int `yaml:"summarize_threshold"`

	// KeepRecent is how many trailing messages survive a summary (default: 2).
	KeepRecent int `yaml:"keep_recent"`

	// SummaryPrefix tags summary messages.
	SummaryPrefix string `yaml:"summary_prefix"`
}

// DefaultConfig returns the stock settings for all strategies.
func DefaultConfig() Config {
	return Config{
		Strategy:           StrategyTokenTrim,
		MaxTokens:          500,
		MaxMessages:        4,
		DeleteCount:        2,
		SummarizeThreshold: 4,
		KeepRecent:         2,
		SummaryPrefix:      DefaultSummaryPrefix,
	}
}

// Validate checks the settings of the selected strategy.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyTokenTrim:
		if c.MaxTokens <= 0 {
			return fmt.Errorf("token_trim: max_tokens must be positive, got %d", c.MaxTokens)
		}
	case StrategyCountTrim:
		if c.MaxMessages <= 0 {
			return fmt.Errorf("count_trim: max_messages must be positive, got %d", c.MaxMessages)
		}
	case StrategySelectiveDelete:
		if c.DeleteCount <= 0 {
			return fmt.Errorf("selective_delete: delete_count must be positive, got %d", c.DeleteCount)
		}
	case StrategySummarize:
		if c.KeepRecent <= 0 {
			return fmt.Errorf("summarize: keep_recent must be positive, got %d", c.KeepRecent)
		}
		if c.SummarizeThreshold <= c.KeepRecent+1 {
			return fmt.Errorf("summarize: summarize_threshold (%d) must exceed keep_recent+1 (%d)",
				c.SummarizeThreshold, c.KeepRecent+1)
		}
	default:
		return fmt.Errorf("unknown compaction strategy %q", c.Strategy)
	}
	return nil
}

// Deps are the collaborators a policy may need.
type Deps struct {
	// Counter is required by token_trim.
	Counter TokenCounter

	// Summarizer is required by summarize.
	Summarizer Summarizer

	Logger *slog.Logger
}

// New builds the policy selected by cfg.
func New(cfg Config, deps Deps) (Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "compaction", "strategy", string(cfg.Strategy))

	switch cfg.Strategy {
	case StrategyTokenTrim:
		if deps.Counter == nil {
			return nil, fmt.Errorf("token_trim requires a token counter")
		}
		return NewTokenTrim(cfg.MaxTokens, deps.Counter, logger), nil
	case StrategyCountTrim:
		return NewCountTrim(cfg.MaxMessages, logger), nil
	case StrategySelectiveDelete:
		return NewSelectiveDelete(cfg.DeleteCount, logger), nil
	case StrategySummarize:
		if deps.Summarizer == nil {
			return nil, fmt.Errorf("summarize requires a summarizer")
		}
		prefix := cfg.SummaryPrefix
		if prefix == "" {
			prefix = DefaultSummaryPrefix
		}
		return NewSummarize(cfg.SummarizeThreshold, cfg.KeepRecent, prefix, deps.Summarizer, logger), nil
	}
	return nil, fmt.Errorf("unknown compaction strategy %q", cfg.Strategy)
}

// base supplies the defaults shared by most policies: the standard reducer,
// an unmodified prompt view and no post-turn compaction.
type base struct {
	logger *slog.Logger
}

func (base) Reduce(log conversation.Log, u Update) (conversation.Log, error) {
	return reduce(log, u)
}

func (base) Prompt(_ context.Context, log conversation.Log) (conversation.Log, error) {
	return log.Clone(), nil
}

func (base) NeedsCompaction(conversation.Log) bool { return false }

func (base) Compact(context.Context, conversation.Log) (Update, error) { return nil, nil }

func (base) KeepsPreamble() bool { return true }
