package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
)

// newAskCmd creates the `contextclaw ask` command that runs a single turn.
func newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Run a single turn and print the reply",
		Long: `Send one message to the agent, let it call tools as needed, and print
the final reply. Use --show-log to also print the resulting history.

Examples:
  contextclaw ask "what's the weather in sf?"
  contextclaw ask --show-log --strategy summarize "hi, I'm bob"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := resolveConfig(cmd)
			if err != nil {
				return err
			}
			logger := setupLogger(cmd, cfg)

			sess, cleanup, err := newSession(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			reply, err := sess.send(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}

			if showLog, _ := cmd.Flags().GetBool("show-log"); showLog {
				fmt.Fprint(cmd.ErrOrStderr(), sess.log.Transcript())
				fmt.Fprintln(cmd.ErrOrStderr())
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().Bool("show-log", false, "print the conversation history after the turn")
	return cmd
}
