package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/config"
	"github.com/jholhewres/contextclaw/pkg/contextclaw/transcript"
)

// healthReport is printed by `contextclaw health`.
type healthReport struct {
	Status     string            `json:"status"`
	Version    string            `json:"version"`
	Config     string            `json:"config"`
	Strategy   string            `json:"strategy"`
	Provider   string            `json:"provider"`
	Checks     map[string]string `json:"checks"`
	Transcript string            `json:"transcript,omitempty"`
}

// newHealthCmd creates the `contextclaw health` command. It checks the
// configuration, credentials and transcript store without calling a model.
func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check configuration, credentials and storage",
		Long: `Report whether contextclaw is ready to run: the config parses and
validates, an API key resolves for the primary model, and the transcript
database opens when enabled. Exits non-zero when a check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report := healthReport{
				Status:  "ok",
				Version: cmd.Root().Version,
				Config:  "(defaults)",
				Checks:  map[string]string{},
			}

			cfg, path, err := resolveConfig(cmd)
			if path != "" {
				report.Config = path
			}
			if err != nil {
				report.Status = "fail"
				report.Checks["config"] = err.Error()
				return printHealth(cmd.OutOrStdout(), report)
			}
			report.Checks["config"] = "ok"
			report.Strategy = string(cfg.History.Strategy)
			report.Provider = cfg.Model.Provider

			quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
			if err := config.LoadDotEnv(quiet); err != nil {
				report.Checks["dotenv"] = err.Error()
			}
			if config.ResolveAPIKeys(cfg, quiet) {
				report.Checks["api_key"] = "ok"
			} else {
				report.Status = "fail"
				report.Checks["api_key"] = "missing: set " + config.ProviderEnvVar(cfg.Model.Provider)
			}

			if config.KeyringAvailable() {
				report.Checks["keyring"] = "ok"
			} else {
				report.Checks["keyring"] = "unavailable"
			}

			if cfg.Transcript.Enabled {
				report.Transcript = cfg.Transcript.Path
				store, err := transcript.OpenStore(transcript.StoreConfig{Path: cfg.Transcript.Path, Logger: quiet})
				if err != nil {
					report.Status = "fail"
					report.Checks["transcript"] = err.Error()
				} else {
					report.Checks["transcript"] = "ok"
					store.Close()
				}
			}

			return printHealth(cmd.OutOrStdout(), report)
		},
	}
}

func printHealth(w io.Writer, report healthReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.Status != "ok" {
		return fmt.Errorf("health check failed")
	}
	return nil
}
