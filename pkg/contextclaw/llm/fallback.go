package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
)

var _ Service = (*Fallback)(nil)

// Fallback wraps a primary and a fallback Service. If the primary fails, the
// call is retried once on the fallback.
type Fallback struct {
	primary  Service
	fallback Service
	logger   *slog.Logger
}

// NewFallback creates a Fallback.
func NewFallback(primary, fallback Service, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{primary: primary, fallback: fallback, logger: logger.With("component", "llm")}
}

// Generate implements Service.
func (f *Fallback) Generate(ctx context.Context, messages conversation.Log, tools []ToolSchema) (*Reply, error) {
	reply, err := f.primary.Generate(ctx, messages, tools)
	if err == nil {
		return reply, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	f.logger.Warn("primary model failed, using fallback", "error", err)

	reply, fbErr := f.fallback.Generate(ctx, messages, tools)
	if fbErr != nil {
		return nil, fmt.Errorf("primary failed: %w; fallback also failed: %v", err, fbErr)
	}
	return reply, nil
}

// CountTokens implements Service. Counts come from the primary; if it cannot
// count, the fallback is asked.
func (f *Fallback) CountTokens(ctx context.Context, messages conversation.Log) (int, error) {
	n, err := f.primary.CountTokens(ctx, messages)
	if err == nil {
		return n, nil
	}
	f.logger.Debug("primary token count failed, using fallback", "error", err)
	return f.fallback.CountTokens(ctx, messages)
}

// Primary returns the primary service.
func (f *Fallback) Primary() Service {
	return f.primary
}
