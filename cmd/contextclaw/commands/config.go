package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/config"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/llm"
)

// newConfigCmd creates the `contextclaw config` command group.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage contextclaw configuration.

Examples:
  contextclaw config init
  contextclaw config show
  contextclaw config validate
  contextclaw config set-key --provider anthropic`,
	}

	cmd.AddCommand(
		newConfigInitCmd(),
		newConfigShowCmd(),
		newConfigValidateCmd(),
		newConfigSetKeyCmd(),
		newConfigDeleteKeyCmd(),
	)
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default contextclaw.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, _ := cmd.Flags().GetString("output")
			force, _ := cmd.Flags().GetBool("force")

			if _, err := os.Stat(target); err == nil && !force {
				return fmt.Errorf("%s already exists. Remove it, edit it directly, or pass --force", target)
			}

			if err := config.SaveConfigToFile(config.DefaultConfig(), target); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created %s with default configuration.\n", target)
			fmt.Fprintln(out, "\nNext steps:")
			fmt.Fprintln(out, "  1. Pick a strategy under history.strategy (see: contextclaw strategies)")
			fmt.Fprintln(out, "  2. Store your API key: contextclaw config set-key")
			fmt.Fprintln(out, "  3. Run: contextclaw chat")
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "contextclaw.yaml", "file to write")
	cmd.Flags().Bool("force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if path == "" {
				path = "(defaults)"
			}

			// Never print secrets.
			redact(&cfg.Model)
			if cfg.Fallback != nil {
				redact(cfg.Fallback)
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# Loaded from: %s\n\n%s", path, data)
			return nil
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			if path == "" {
				path = "(defaults)"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config: %s\n", path)
			fmt.Fprintf(out, "  Name:       %s\n", cfg.Name)
			fmt.Fprintf(out, "  Model:      %s/%s\n", cfg.Model.Provider, cfg.Model.Model)
			if cfg.Fallback != nil {
				fmt.Fprintf(out, "  Fallback:   %s/%s\n", cfg.Fallback.Provider, cfg.Fallback.Model)
			}
			fmt.Fprintf(out, "  Strategy:   %s\n", cfg.History.Strategy)
			fmt.Fprintf(out, "  Tools:      weather=%v\n", cfg.Tools.Weather)
			fmt.Fprintf(out, "  Transcript: %v (%s)\n", cfg.Transcript.Enabled, cfg.Transcript.Path)
			fmt.Fprintln(out, "\nConfiguration is valid.")
			return nil
		},
	}
}

func newConfigSetKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-key",
		Short: "Store the provider API key in the OS keyring",
		Long: `Store the API key in the operating system keyring (Keychain, Secret
Service, Credential Manager). The key is read from stdin without echo.

Examples:
  contextclaw config set-key
  contextclaw config set-key --provider anthropic`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, _ := cmd.Flags().GetString("provider")
			if !config.KeyringAvailable() {
				return fmt.Errorf("OS keyring is not available; set %s instead", config.ProviderEnvVar(provider))
			}

			key, err := readSecret(cmd, fmt.Sprintf("%s API key: ", provider))
			if err != nil {
				return err
			}
			if key == "" {
				return fmt.Errorf("empty key")
			}

			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
			return config.MigrateKeyToKeyring(provider, key, logger)
		},
	}
	cmd.Flags().String("provider", llm.ProviderOpenAI, "provider the key belongs to (openai or anthropic)")
	return cmd
}

func newConfigDeleteKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-key",
		Short: "Remove the provider API key from the OS keyring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			provider, _ := cmd.Flags().GetString("provider")
			if err := config.DeleteKeyring(config.KeyringKey(provider)); err != nil {
				return fmt.Errorf("deleting key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from the OS keyring.\n", config.KeyringKey(provider))
			return nil
		},
	}
	cmd.Flags().String("provider", llm.ProviderOpenAI, "provider the key belongs to (openai or anthropic)")
	return cmd
}

// readSecret reads a line from stdin, without echo when stdin is a terminal.
func readSecret(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading key: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	var line string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &line); err != nil {
		return "", fmt.Errorf("reading key: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func redact(p *llm.ProviderConfig) {
	if p.APIKey != "" && !strings.HasPrefix(p.APIKey, "${") {
		p.APIKey = "****"
	}
}
