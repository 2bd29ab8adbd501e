// Package config – config.go defines the contextclaw configuration file: the
// model backend, the compaction strategy, loop limits, tools, logging and the
// event transcript. Every section starts from defaults; a YAML file only
// needs the keys it wants to change.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/agent"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/compaction"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/llm"
)

// Config is the root configuration.
type Config struct {
	// Name identifies this assistant in logs and the transcript.
	Name string `yaml:"name"`

	// Model is the primary model backend.
	Model llm.ProviderConfig `yaml:"model"`

	// Fallback is an optional second backend tried when the primary fails.
	Fallback *llm.ProviderConfig `yaml:"fallback,omitempty"`

	// History selects and tunes the compaction strategy.
	History compaction.Config `yaml:"history"`

	// Agent holds the loop limits and the system preamble.
	Agent agent.Config `yaml:"agent"`

	Tools      ToolsConfig      `yaml:"tools"`
	Logging    LoggingConfig    `yaml:"logging"`
	Transcript TranscriptConfig `yaml:"transcript"`
}

// ToolsConfig toggles the built-in tools.
type ToolsConfig struct {
	// Weather enables the get_weather demo tool (default: true).
	Weather bool `yaml:"weather"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn or error (default: info).
	Level string `yaml:"level"`

	// Format is text or json (default: text).
	Format string `yaml:"format"`
}

// TranscriptConfig configures the sqlite event transcript.
type TranscriptConfig struct {
	// Enabled turns event recording on (default: false).
	Enabled bool `yaml:"enabled"`

	// Path is the sqlite database file (default: ./data/transcript.db).
	Path string `yaml:"path"`
}

// DefaultConfig returns a configuration that works with an OpenAI key in the
// environment.
func DefaultConfig() *Config {
	return &Config{
		Name: "contextclaw",
		Model: llm.ProviderConfig{
			Provider:  llm.ProviderOpenAI,
			Model:     "gpt-4o-mini",
			APIKey:    "${OPENAI_API_KEY}",
			MaxTokens: llm.DefaultMaxTokens,
		},
		History: compaction.DefaultConfig(),
		Agent:   agent.DefaultConfig(),
		Tools:   ToolsConfig{Weather: true},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Transcript: TranscriptConfig{
			Enabled: false,
			Path:    "./data/transcript.db",
		},
	}
}

// Validate reports every problem found in the configuration.
func (c *Config) Validate() error {
	var errs []error

	if err := validateProvider("model", c.Model); err != nil {
		errs = append(errs, err)
	}
	if c.Fallback != nil {
		if err := validateProvider("fallback", *c.Fallback); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.History.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("history: %w", err))
	}
	if c.Agent.RunTimeoutSeconds < 0 || c.Agent.LLMCallTimeoutSeconds < 0 || c.Agent.MaxIterations < 0 {
		errs = append(errs, errors.New("agent: timeouts and max_iterations must not be negative"))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging: unknown level %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging: unknown format %q", c.Logging.Format))
	}
	if c.Transcript.Enabled && c.Transcript.Path == "" {
		errs = append(errs, errors.New("transcript: path is required when enabled"))
	}

	return errors.Join(errs...)
}

func validateProvider(section string, p llm.ProviderConfig) error {
	switch strings.ToLower(p.Provider) {
	case llm.ProviderOpenAI, llm.ProviderAnthropic:
	default:
		return fmt.Errorf("%s: unknown provider %q", section, p.Provider)
	}
	if p.Model == "" {
		return fmt.Errorf("%s: model is required", section)
	}
	if p.MaxTokens < 0 {
		return fmt.Errorf("%s: max_tokens must not be negative", section)
	}
	return nil
}
