package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/compaction"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/llm"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, compaction.StrategyTokenTrim, cfg.History.Strategy)
	assert.Equal(t, 500, cfg.History.MaxTokens)
	assert.True(t, cfg.Tools.Weather)
}

func TestParseConfigOverlaysDefaults(t *testing.T) {
	t.Setenv("TEST_CC_MODEL", "claude-sonnet-4-5")
	data := []byte(`
model:
  provider: anthropic
  model: ${TEST_CC_MODEL}
  api_key: ${TEST_CC_UNSET_KEY}
history:
  strategy: summarize
  keep_recent: 3
  summarize_threshold: 6
logging:
  format: json
`)
	cfg, err := ParseConfig(data)
	require.NoError(t, err)

	assert.Equal(t, llm.ProviderAnthropic, cfg.Model.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Model.Model)
	assert.Equal(t, "${TEST_CC_UNSET_KEY}", cfg.Model.APIKey, "unset variables stay as references")
	assert.Equal(t, compaction.StrategySummarize, cfg.History.Strategy)
	assert.Equal(t, 3, cfg.History.KeepRecent)
	assert.Equal(t, 4, cfg.History.MaxMessages, "untouched keys keep their defaults")
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
	require.NoError(t, cfg.Validate())
}

func TestParseConfigRejectsBadYAML(t *testing.T) {
	_, err := ParseConfig([]byte("model: [unterminated"))
	assert.Error(t, err)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.Provider = "gemini"
	cfg.History.Strategy = "lru"
	cfg.Logging.Format = "xml"
	cfg.Fallback = &llm.ProviderConfig{Provider: "openai"}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"gemini", "lru", "xml", "fallback: model is required"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "contextclaw.yaml")
	cfg := DefaultConfig()
	cfg.History.Strategy = compaction.StrategyCountTrim
	cfg.History.MaxMessages = 8
	cfg.Transcript.Enabled = true

	require.NoError(t, SaveConfigToFile(cfg, path))
	loaded, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, compaction.StrategyCountTrim, loaded.History.Strategy)
	assert.Equal(t, 8, loaded.History.MaxMessages)
	assert.True(t, loaded.Transcript.Enabled)

	_, err = LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("HOME", dir)

	assert.Empty(t, FindConfigFile())
	require.NoError(t, os.WriteFile("contextclaw.yaml", []byte("name: x\n"), 0o644))
	assert.Equal(t, "contextclaw.yaml", FindConfigFile())
}

func TestResolveAPIKeysPriority(t *testing.T) {
	keyring.MockInit()
	t.Setenv(genericKeyEnv, "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	t.Run("config value", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Model.APIKey = "sk-from-config"
		assert.True(t, ResolveAPIKeys(cfg, discard()))
		assert.Equal(t, "sk-from-config", cfg.Model.APIKey)
	})

	t.Run("unexpanded reference counts as missing", func(t *testing.T) {
		cfg := DefaultConfig()
		assert.False(t, ResolveAPIKeys(cfg, discard()))
		assert.Empty(t, cfg.Model.APIKey)
	})

	t.Run("env beats config", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-from-env")
		cfg := DefaultConfig()
		cfg.Model.APIKey = "sk-from-config"
		assert.True(t, ResolveAPIKeys(cfg, discard()))
		assert.Equal(t, "sk-from-env", cfg.Model.APIKey)
	})

	t.Run("keyring beats env", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")
		require.NoError(t, MigrateKeyToKeyring("anthropic", "sk-ant-keyring", discard()))
		defer func() { _ = DeleteKeyring(KeyringKey("anthropic")) }()

		cfg := DefaultConfig()
		cfg.Model.Provider = llm.ProviderAnthropic
		cfg.Fallback = &llm.ProviderConfig{Provider: "openai", Model: "gpt-4o-mini", APIKey: "sk-fb"}
		assert.True(t, ResolveAPIKeys(cfg, discard()))
		assert.Equal(t, "sk-ant-keyring", cfg.Model.APIKey)
		assert.Equal(t, "sk-fb", cfg.Fallback.APIKey)
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TEST_CC_DOTENV=from-file\n"), 0o600))
	t.Setenv("TEST_CC_DOTENV", "")
	require.NoError(t, os.Unsetenv("TEST_CC_DOTENV"))

	require.NoError(t, LoadDotEnv(discard(), filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("TEST_CC_DOTENV"))
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent to testing.T.Chdir in Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
