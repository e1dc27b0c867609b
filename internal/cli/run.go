package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mjarkko/scripter/internal/lockservice"
	"github.com/mjarkko/scripter/internal/runservice"
)

func newRunCmd() *cobra.Command {
	var scriptID int64
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Trigger a script manually",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			log := cliLogger()
			locks := lockservice.New(s)
			runs := runservice.New(s, locks, lockservice.OwnerID(), 60*time.Second, log)

			run, err := runs.ExecuteSync(ctx, scriptID, "manual")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Triggered script %d (manual), run #%d: %s\n", scriptID, run.ID, run.Status)
			return nil
		},
	}
	cmd.Flags().Int64Var(&scriptID, "script-id", 0, "script id")
	cmd.MarkFlagRequired("script-id")
	return cmd
}
