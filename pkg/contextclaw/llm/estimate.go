package llm

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
)

const (
	// perMessageOverhead approximates role and framing tokens per message.
	perMessageOverhead = 4
	// replyPriming approximates the tokens that prime the assistant reply.
	replyPriming = 3
	// charsPerToken is the usual rule of thumb for English text.
	charsPerToken = 4
)

// EstimateTokens approximates the prompt size of log without a tokenizer:
// roughly four characters per token plus a fixed overhead per message.
// Longer logs never estimate lower than their suffixes.
func EstimateTokens(log conversation.Log) int {
	if len(log) == 0 {
		return 0
	}
	total := replyPriming
	for _, m := range log {
		chars := utf8.RuneCountInString(m.Content)
		for _, tc := range m.ToolCalls {
			chars += utf8.RuneCountInString(tc.Name)
			if len(tc.Arguments) > 0 {
				args, _ := json.Marshal(tc.Arguments)
				chars += utf8.RuneCount(args)
			}
		}
		total += perMessageOverhead + (chars+charsPerToken-1)/charsPerToken
	}
	return total
}
