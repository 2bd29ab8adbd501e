package llm

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	ai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fromOpenAIResponseJSON(t *testing.T, raw string) (*Reply, error) {
	t.Helper()
	var resp ai.ChatCompletionResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	return fromOpenAIResponse(resp)
}
