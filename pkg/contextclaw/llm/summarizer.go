package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
)

// summaryPrompt asks for a plain prose summary of a transcript.
const summaryPrompt = "Write a concise summary of the following:\n\n\"%s\"\n\nCONCISE SUMMARY:"

// Summarizer condenses conversation text with a model. It never offers tools.
type Summarizer struct {
	svc    Service
	logger *slog.Logger
}

// NewSummarizer creates a summarizer backed by svc.
func NewSummarizer(svc Service, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{svc: svc, logger: logger.With("component", "summarizer")}
}

// Summarize returns a prose summary of text.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	prompt := conversation.Log{conversation.NewHuman(fmt.Sprintf(summaryPrompt, text))}
	reply, err := s.svc.Generate(ctx, prompt, nil)
	if err != nil {
		return "", fmt.Errorf("summary call failed: %w", err)
	}
	summary := strings.TrimSpace(reply.Text)
	if summary == "" {
		return "", fmt.Errorf("%w: empty summary", ErrMalformedReply)
	}
	s.logger.Debug("summary generated", "input_len", len(text), "summary_len", len(summary))
	return summary, nil
}
