package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/jholhewres/contextclaw/pkg/contextclaw/agent"
)

// newChatCmd creates the `contextclaw chat` interactive session.
func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat. Every line is one turn; the configured
compaction strategy keeps the history bounded between turns.

Commands inside the session:
  /log     print the current conversation history
  /reset   start a new conversation
  /quit    exit

Examples:
  contextclaw chat
  contextclaw chat --strategy count_trim
  contextclaw chat -v`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
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

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36myou>\033[0m ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stdout(), "%s (%s, strategy %s). Type /quit to exit.\n",
		cfg.Name, cfg.Model.Model, sess.loop.Policy().Strategy())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/reset":
			sess.reset()
			fmt.Fprintln(rl.Stdout(), "Conversation cleared.")
			continue
		case "/log":
			fmt.Fprint(rl.Stdout(), sess.log.Transcript())
			fmt.Fprintf(rl.Stdout(), "(%d messages)\n", len(sess.log))
			continue
		}

		// Ctrl+C during a turn cancels the turn, not the session.
		turnCtx, cancel := signal.NotifyContext(ctx, os.Interrupt)
		reply, err := sess.send(turnCtx, line)
		cancel()

		if err != nil {
			var turnErr *agent.TurnError
			if errors.As(err, &turnErr) {
				fmt.Fprintf(rl.Stderr(), "error (%s): %v\n", turnErr.Stage, turnErr.Err)
			} else {
				fmt.Fprintf(rl.Stderr(), "error: %v\n", err)
			}
			continue
		}
		fmt.Fprintf(rl.Stdout(), "\033[32m%s>\033[0m %s\n", cfg.Name, reply)
	}
}

// historyFile returns the readline history path under the user's config dir.
func historyFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "contextclaw")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return ""
	}
	return filepath.Join(dir, "history")
}
