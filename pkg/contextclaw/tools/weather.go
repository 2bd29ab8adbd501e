package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/llm"
)

// Weather is the demo get_weather tool.
func Weather() Tool {
	return Func{
		ToolName:        "get_weather",
		ToolDescription: "Call to get the current weather.",
		Schema: llm.JSONSchema{
			Type: "object",
			Properties: map[string]any{
				"location": map[string]any{
					"type":        "string",
					"description": "City to look up",
				},
			},
			Required: []string{"location"},
		},
		Fn: func(_ context.Context, args map[string]any) (any, error) {
			location, _ := args["location"].(string)
			lower := strings.ToLower(location)
			for _, city := range []string{"sf", "san francisco"} {
				if strings.Contains(lower, city) {
					return "It's sunny in San Francisco, but you better look out if you're a Gemini 😈.", nil
				}
			}
			return fmt.Sprintf("I am not sure what the weather is in %s", location), nil
		},
	}
}

// Builtins returns the tools registered by default.
func Builtins() []Tool {
	return []Tool{Weather()}
}
