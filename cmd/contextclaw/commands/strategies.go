package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/compaction"
)

// newStrategiesCmd creates the `contextclaw strategies` command.
func newStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the history compaction strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defaults := compaction.DefaultConfig()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STRATEGY\tDESCRIPTION")
			for _, s := range compaction.Strategies() {
				name := string(s)
				if s == defaults.Strategy {
					name += " (default)"
				}
				fmt.Fprintf(w, "%s\t%s\n", name, s.Description())
			}
			return w.Flush()
		},
	}
}

func strategyNames() []string {
	var names []string
	for _, s := range compaction.Strategies() {
		names = append(names, string(s))
	}
	return names
}
