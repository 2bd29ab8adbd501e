package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/transcript"
)

// newTranscriptCmd creates the `contextclaw transcript` command group.
func newTranscriptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript",
		Short: "Inspect the recorded loop events",
		Long: `Inspect the sqlite event transcript written when transcript.enabled
is true in the config.

Examples:
  contextclaw transcript events --limit 20
  contextclaw transcript turns`,
	}
	cmd.PersistentFlags().Int("limit", 20, "maximum number of rows")
	cmd.AddCommand(newTranscriptEventsCmd(), newTranscriptTurnsCmd())
	return cmd
}

func newTranscriptEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the most recent events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openTranscript(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			session, _ := cmd.Flags().GetString("session")
			records, err := store.Recent(cmd.Context(), session, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTURN\tKIND\tSTATE\tITER\tLOG\tDETAIL")
			for _, r := range records {
				detail := r.Decision
				switch {
				case r.ToolName != "":
					detail = r.ToolName
				case r.Detail != "":
					detail = r.Detail
				}
				if r.Error != "" {
					detail += " error=" + r.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					r.CreatedAt.Local().Format("15:04:05"), shortID(r.TurnID), r.Kind, r.State,
					r.Iteration, r.LogLen, detail)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("session", "", "only events of this session")
	return cmd
}

func newTranscriptTurnsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "turns",
		Short: "Summarize the most recent turns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openTranscript(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			limit, _ := cmd.Flags().GetInt("limit")
			turns, err := store.Turns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TURN\tSTRATEGY\tMODEL CALLS\tTOOLS\tTOOL ERRORS\tCOMPACTED\tSTATUS\tLOG")
			for _, t := range turns {
				status := "ok"
				if t.Failed {
					status = "failed"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%v\t%s\t%d\n",
					shortID(t.TurnID), t.Strategy, t.ModelCalls, t.ToolCalls, t.ToolErrors,
					t.Compacted, status, t.FinalLen)
			}
			return w.Flush()
		},
	}
}

func openTranscript(cmd *cobra.Command) (*transcript.Store, error) {
	cfg, _, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	return transcript.OpenStore(transcript.StoreConfig{
		Path:   cfg.Transcript.Path,
		Logger: setupLogger(cmd, cfg),
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
