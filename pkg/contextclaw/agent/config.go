package agent

import "time"

const (
	// DefaultRunTimeout bounds a whole turn, tool round-trips included.
	DefaultRunTimeout = 600 * time.Second

	// DefaultLLMCallTimeout is the safety net for a single model call. It only
	// catches hung connections; the run timeout is the primary limit.
	DefaultLLMCallTimeout = 5 * time.Minute

	// DefaultPreamble is the system message placed at the head of every
	// conversation.
	DefaultPreamble = "You are a helpful AI assistant, please respond to the users query to the best of your ability!"
)

// Config holds the loop parameters.
type Config struct {
	// RunTimeoutSeconds is the max seconds for one turn (default: 600).
	RunTimeoutSeconds int `yaml:"run_timeout_seconds"`

	// LLMCallTimeoutSeconds is the safety-net timeout per model call
	// (default: 300).
	LLMCallTimeoutSeconds int `yaml:"llm_call_timeout_seconds"`

	// MaxIterations caps model calls per turn (default: 0 = unlimited).
	MaxIterations int `yaml:"max_iterations"`

	// Preamble is the core system prompt.
	Preamble string `yaml:"preamble"`

	// Instructions are appended to the preamble as a separate section.
	Instructions string `yaml:"instructions,omitempty"`
}

// DefaultConfig returns the stock loop settings.
func DefaultConfig() Config {
	return Config{
		RunTimeoutSeconds:     int(DefaultRunTimeout / time.Second),
		LLMCallTimeoutSeconds: int(DefaultLLMCallTimeout / time.Second),
		MaxIterations:         0, // unlimited: the loop ends when the model stops calling tools
		Preamble:              DefaultPreamble,
	}
}
