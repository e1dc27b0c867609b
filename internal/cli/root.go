// Package cli implements the cobra command tree: script, schedule,
// runs, trigger, webhook, config, daemon, run and version. Every
// command that touches the store opens its own store handle, and every
// command exits non-zero with a diagnostic on user error (cobra prints
// the error RunE returns and sets the exit code).
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mjarkko/scripter/internal/store"
)

var dbPath string

// Execute builds the root command and runs it against os.Args.
func Execute() error {
	root := newRootCmd()
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "scripter",
		Short:         "Scripter: script scheduler and automation engine.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&dbPath, "db", "scripter.db", "path to the SQLite database file")

	root.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newDaemonCmd(),
		newScriptCmd(),
		newScheduleCmd(),
		newRunsCmd(),
		newTriggerCmd(),
		newWebhookCmd(),
		newConfigCmd(),
	)

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "scripter v0.0.1")
			return nil
		},
	}
}

func openStore(ctx context.Context) (*store.Store, error) {
	s, err := store.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store at %s: %w", dbPath, err)
	}
	return s, nil
}

func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
