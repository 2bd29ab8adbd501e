package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/compaction"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/config"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/llm"
)

// defaultModels maps each provider to the model offered first in setup.
var defaultModels = map[string]string{
	llm.ProviderOpenAI:    "gpt-4o-mini",
	llm.ProviderAnthropic: "claude-3-5-haiku-latest",
}

// newSetupCmd creates the `contextclaw setup` interactive wizard.
func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard that writes contextclaw.yaml: provider,
model, compaction strategy and where to keep the API key.

Examples:
  contextclaw setup`,
		Args: cobra.NoArgs,
		RunE: runSetup,
	}
	cmd.Flags().StringP("output", "o", "contextclaw.yaml", "file to write")
	return cmd
}

// setupAnswers collects the wizard's input.
type setupAnswers struct {
	name       string
	provider   string
	model      string
	baseURL    string
	strategy   string
	apiKey     string
	keyStore   string
	transcript bool
	confirm    bool
}

const (
	keyStoreKeyring = "keyring"
	keyStoreDotEnv  = "env"
	keyStoreSkip    = "skip"
)

func runSetup(cmd *cobra.Command, _ []string) error {
	target, _ := cmd.Flags().GetString("output")
	cfg := config.DefaultConfig()

	a := setupAnswers{
		name:     cfg.Name,
		provider: cfg.Model.Provider,
		strategy: string(cfg.History.Strategy),
		keyStore: keyStoreDotEnv,
		confirm:  true,
	}

	// ── Step 1: backend ──
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Assistant name").
				Value(&a.name),
			huh.NewSelect[string]().
				Title("Model provider").
				Options(
					huh.NewOption("OpenAI (or any OpenAI-compatible endpoint)", llm.ProviderOpenAI),
					huh.NewOption("Anthropic", llm.ProviderAnthropic),
				).
				Value(&a.provider),
		),
	).Run(); err != nil {
		return err
	}

	a.model = defaultModels[a.provider]

	// ── Step 2: model, strategy and key ──
	keyOptions := []huh.Option[string]{
		huh.NewOption(".env file (plaintext, keep it out of git)", keyStoreDotEnv),
		huh.NewOption(fmt.Sprintf("Skip (set %s later)", config.ProviderEnvVar(a.provider)), keyStoreSkip),
	}
	if config.KeyringAvailable() {
		a.keyStore = keyStoreKeyring
		keyOptions = append([]huh.Option[string]{
			huh.NewOption("OS keyring (encrypted by the OS)", keyStoreKeyring),
		}, keyOptions...)
	}

	strategyOptions := make([]huh.Option[string], 0, len(compaction.Strategies()))
	for _, s := range compaction.Strategies() {
		strategyOptions = append(strategyOptions,
			huh.NewOption(fmt.Sprintf("%s: %s", s, s.Description()), string(s)))
	}

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Model").
				Value(&a.model).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("model is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Base URL").
				Description("Leave empty for the provider's default endpoint.").
				Value(&a.baseURL),
			huh.NewSelect[string]().
				Title("History compaction strategy").
				Options(strategyOptions...).
				Value(&a.strategy),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("API key").
				Description("Press Enter to skip.").
				EchoMode(huh.EchoModePassword).
				Value(&a.apiKey),
			huh.NewSelect[string]().
				Title("Where should the key be stored?").
				Options(keyOptions...).
				Value(&a.keyStore),
			huh.NewConfirm().
				Title("Record loop events to a sqlite transcript?").
				Value(&a.transcript),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Save to %s?", target)).
				Value(&a.confirm),
		),
	).Run(); err != nil {
		return err
	}

	if !a.confirm {
		fmt.Fprintln(cmd.OutOrStdout(), "Setup cancelled.")
		return nil
	}

	if _, err := os.Stat(target); err == nil {
		overwrite := false
		if err := huh.NewConfirm().
			Title(fmt.Sprintf("%s already exists. Overwrite?", target)).
			Value(&overwrite).
			Run(); err != nil {
			return err
		}
		if !overwrite {
			fmt.Fprintln(cmd.OutOrStdout(), "Setup cancelled. Existing file kept.")
			return nil
		}
	}

	applySetup(cfg, a)
	if err := config.SaveConfigToFile(cfg, target); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s created.\n", target)

	if a.apiKey != "" {
		switch a.keyStore {
		case keyStoreKeyring:
			if err := config.StoreKeyring(config.KeyringKey(a.provider), a.apiKey); err != nil {
				fmt.Fprintf(out, "[!] Keyring failed: %v. Falling back to .env\n", err)
				return writeDotEnv(cmd, a.provider, a.apiKey)
			}
			fmt.Fprintln(out, "API key stored in the OS keyring.")
		case keyStoreDotEnv:
			if err := writeDotEnv(cmd, a.provider, a.apiKey); err != nil {
				return err
			}
		}
	}

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Review", target)
	fmt.Fprintln(out, "  2. Run: contextclaw chat")
	return nil
}

// applySetup copies the wizard answers into cfg.
func applySetup(cfg *config.Config, a setupAnswers) {
	cfg.Name = strings.TrimSpace(a.name)
	cfg.Model.Provider = a.provider
	cfg.Model.Model = strings.TrimSpace(a.model)
	cfg.Model.BaseURL = strings.TrimSpace(a.baseURL)
	cfg.Model.APIKey = "${" + config.ProviderEnvVar(a.provider) + "}"
	cfg.History.Strategy = compaction.Strategy(a.strategy)
	cfg.Transcript.Enabled = a.transcript
}

// writeDotEnv appends the key to .env with owner-only permissions.
func writeDotEnv(cmd *cobra.Command, provider, key string) error {
	name := config.ProviderEnvVar(provider)
	f, err := os.OpenFile(".env", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "[!] Failed to write .env: %v\n", err)
		fmt.Fprintf(cmd.ErrOrStderr(), "    Set it manually: export %s=...\n", name)
		return nil
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "# contextclaw secrets, do not commit.\n%s=%s\n", name, key); err != nil {
		return fmt.Errorf("writing .env: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ".env updated with your API key (permissions: 600).")
	return nil
}
