package llm

import (
	"fmt"
	"log/slog"
	"strings"
)

// Provider names.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ProviderConfig selects and configures a model backend.
type ProviderConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider string `yaml:"provider"`

	// Model is the model identifier sent to the provider.
	Model string `yaml:"model"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKey is the credential. Prefer the keyring or an env var over
	// writing it here.
	APIKey string `yaml:"api_key,omitempty"`

	// Temperature for generation (default: 0).
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the completion length (default: 1024).
	MaxTokens int `yaml:"max_tokens"`
}

// DefaultMaxTokens is the completion cap when none is configured.
const DefaultMaxTokens = 1024

// New builds the service for cfg.Provider.
func New(cfg ProviderConfig, logger *slog.Logger) (Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("provider %q: model is required", cfg.Provider)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI, "":
		return NewOpenAI(cfg, logger), nil
	case ProviderAnthropic:
		return NewAnthropic(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (expected %s or %s)", cfg.Provider, ProviderOpenAI, ProviderAnthropic)
	}
}
