package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/agent"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/compaction"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/config"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/conversation"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/llm"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/tools"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/transcript"
)

// resolveConfig loads config from the --config flag, auto-discovers it, or
// falls back to defaults. The --strategy flag overrides history.strategy.
func resolveConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadConfigFromFile(configPath)
		if err != nil {
			return nil, configPath, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
		cfg = loaded
	}

	if name, _ := cmd.Root().PersistentFlags().GetString("strategy"); name != "" {
		strategy, err := compaction.ParseStrategy(name)
		if err != nil {
			return nil, configPath, err
		}
		cfg.History.Strategy = strategy
	}

	if err := cfg.Validate(); err != nil {
		return nil, configPath, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, configPath, nil
}

// setupLogger builds the process logger. Text output goes through tint,
// colored only when stderr is a terminal.
func setupLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return newLogger(os.Stderr, logLevel(cmd, cfg), logFormat(cmd, cfg))
}

func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		noColor := true
		if f, ok := w.(*os.File); ok {
			noColor = !term.IsTerminal(int(f.Fd()))
		}
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    noColor,
		})
	}
	return slog.New(handler)
}

func logLevel(cmd *cobra.Command, cfg *config.Config) slog.Level {
	if verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose"); verbose {
		return slog.LevelDebug
	}
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func logFormat(cmd *cobra.Command, cfg *config.Config) string {
	if f, _ := cmd.Root().PersistentFlags().GetString("log-format"); f != "" {
		return strings.ToLower(f)
	}
	return strings.ToLower(cfg.Logging.Format)
}

// session is one conversation driven from the CLI.
type session struct {
	id     string
	loop   *agent.Loop
	log    conversation.Log
	store  *transcript.Store
	logger *slog.Logger
}

// newSession wires config into a ready loop: credentials, model backends,
// compaction policy, tools and observers.
func newSession(cfg *config.Config, logger *slog.Logger) (*session, func(), error) {
	// ── Credentials ──
	if err := config.LoadDotEnv(logger); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}
	if !config.ResolveAPIKeys(cfg, logger) {
		return nil, nil, fmt.Errorf("no API key for provider %q: set %s or run 'contextclaw config set-key'",
			cfg.Model.Provider, config.ProviderEnvVar(cfg.Model.Provider))
	}

	// ── Model ──
	model, err := llm.New(cfg.Model, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("model: %w", err)
	}
	if cfg.Fallback != nil {
		secondary, err := llm.New(*cfg.Fallback, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("fallback model: %w", err)
		}
		model = llm.NewFallback(model, secondary, logger)
	}

	// ── Compaction policy ──
	policy, err := compaction.New(cfg.History, compaction.Deps{
		Counter:    model,
		Summarizer: llm.NewSummarizer(model, logger),
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("compaction: %w", err)
	}

	// ── Tools ──
	var builtins []tools.Tool
	if cfg.Tools.Weather {
		builtins = append(builtins, tools.Weather())
	}
	registry, err := tools.NewRegistry(builtins...)
	if err != nil {
		return nil, nil, fmt.Errorf("tools: %w", err)
	}
	dispatcher := tools.NewDispatcher(registry, logger)

	loop := agent.NewWithConfig(model, dispatcher, policy, cfg.Agent, logger)

	s := &session{
		id:     uuid.New().String(),
		loop:   loop,
		logger: logger.With("component", "cli"),
	}

	// ── Observers ──
	observers := agent.Observers{agent.NewSlogObserver(logger)}
	cleanup := func() {}
	if cfg.Transcript.Enabled {
		store, err := transcript.OpenStore(transcript.StoreConfig{
			Path:    cfg.Transcript.Path,
			Session: s.id,
			Logger:  logger,
		})
		if err != nil {
			return nil, nil, err
		}
		s.store = store
		observers = append(observers, store)
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close transcript", "error", err)
			}
		}
	}
	loop.SetObserver(observers)

	logger.Debug("session ready",
		"session", s.id,
		"provider", cfg.Model.Provider,
		"model", cfg.Model.Model,
		"strategy", string(policy.Strategy()),
		"tools", registry.Names(),
	)
	return s, cleanup, nil
}

// send runs one turn. On failure the conversation keeps its pre-turn log.
func (s *session) send(ctx context.Context, text string) (string, error) {
	next, err := s.loop.RunTurn(ctx, s.log, conversation.NewHuman(text))
	if err != nil {
		return "", err
	}
	s.log = next
	return lastReply(next), nil
}

// reset starts a fresh conversation.
func (s *session) reset() {
	s.log = nil
}

// lastReply returns the content of the final assistant message. A
// summarize compaction may have moved it, so search from the end.
func lastReply(log conversation.Log) string {
	for i := len(log) - 1; i >= 0; i-- {
		m := log[i]
		if m.Role == conversation.RoleAssistant && !m.HasToolCalls() {
			return m.Content
		}
	}
	return ""
}
