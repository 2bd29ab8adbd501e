// Package config – keyring.go provides secure credential storage using the
// operating system's native keyring (Linux: Secret Service/GNOME Keyring,
// macOS: Keychain, Windows: Credential Manager).
//
// Priority for resolving API keys:
//  1. OS keyring (encrypted by the OS)
//  2. Environment variable (CONTEXTCLAW_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY)
//  3. .env file (loaded into the environment by LoadDotEnv)
//  4. config.yaml value (plaintext on disk)
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/llm"
)

const (
	// keyringService is the service name used in the OS keyring.
	keyringService = "contextclaw"

	// genericKeyEnv overrides the key for any provider.
	genericKeyEnv = "CONTEXTCLAW_API_KEY"
)

// KeyringKey returns the keyring entry name for a provider's API key.
func KeyringKey(provider string) string {
	if provider == "" {
		provider = llm.ProviderOpenAI
	}
	return strings.ToLower(provider) + "_api_key"
}

// ProviderEnvVar returns the conventional environment variable for a
// provider's API key.
func ProviderEnvVar(provider string) string {
	switch strings.ToLower(provider) {
	case llm.ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}

// StoreKeyring saves a secret to the OS keyring.
func StoreKeyring(key, value string) error {
	return keyring.Set(keyringService, key, value)
}

// GetKeyring retrieves a secret from the OS keyring.
// Returns empty string if not found.
func GetKeyring(key string) string {
	val, err := keyring.Get(keyringService, key)
	if err != nil {
		return ""
	}
	return val
}

// DeleteKeyring removes a secret from the OS keyring.
func DeleteKeyring(key string) error {
	return keyring.Delete(keyringService, key)
}

// KeyringAvailable checks if the OS keyring is accessible.
func KeyringAvailable() bool {
	testKey := "__contextclaw_test__"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, testKey)
	return true
}

// ResolveAPIKeys resolves the API key of the primary and fallback backends
// in place. It reports whether the primary ended up with a key.
func ResolveAPIKeys(cfg *Config, logger *slog.Logger) bool {
	ok := resolveAPIKey(&cfg.Model, logger.With("backend", "model"))
	if cfg.Fallback != nil {
		resolveAPIKey(cfg.Fallback, logger.With("backend", "fallback"))
	}
	return ok
}

func resolveAPIKey(p *llm.ProviderConfig, logger *slog.Logger) bool {
	// 1. OS keyring.
	if val := GetKeyring(KeyringKey(p.Provider)); val != "" {
		p.APIKey = val
		logger.Debug("API key loaded from OS keyring")
		return true
	}

	// 2. Environment (including anything .env put there).
	for _, name := range []string{genericKeyEnv, ProviderEnvVar(p.Provider)} {
		if val := os.Getenv(name); val != "" {
			p.APIKey = val
			logger.Debug("API key loaded from environment", "var", name)
			return true
		}
	}

	// 3. Plain config value, unless it is an unexpanded ${VAR} reference.
	if p.APIKey != "" && !isEnvReference(p.APIKey) {
		logger.Debug("API key loaded from config")
		return true
	}

	p.APIKey = ""
	logger.Warn("no API key found",
		"provider", p.Provider,
		"hint", fmt.Sprintf("set %s or run: contextclaw config set-key", ProviderEnvVar(p.Provider)),
	)
	return false
}

// MigrateKeyToKeyring stores apiKey for provider in the OS keyring.
func MigrateKeyToKeyring(provider, apiKey string, logger *slog.Logger) error {
	if err := StoreKeyring(KeyringKey(provider), apiKey); err != nil {
		return fmt.Errorf("storing in keyring: %w", err)
	}
	logger.Info("API key stored in OS keyring",
		"service", keyringService,
		"key", KeyringKey(provider),
		"hint", "You can now remove it from .env and the config file")
	return nil
}

func isEnvReference(s string) bool {
	return strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}")
}
