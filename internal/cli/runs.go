package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mjarkko/scripter/internal/domain"
	"github.com/mjarkko/scripter/internal/timefmt"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect execution history",
	}
	cmd.AddCommand(newRunsListCmd(), newRunsShowCmd(), newRunsClearCmd())
	return cmd
}

func newRunsListCmd() *cobra.Command {
	var limit int
	var scriptID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(ctx, scriptID, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs found.")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "id\tscript\ttrigger\tstatus\texit\tstarted\t\t\tfinished")
			for _, r := range runs {
				exit := ""
				if r.ExitCode != nil {
					exit = fmt.Sprintf("%d", *r.ExitCode)
				}
				fmt.Fprintf(out, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.ScriptID, r.Trigger, r.Status, exit,
					timefmt.ToLocalDisplay(&r.StartedAt), timefmt.ToLocalDisplay(r.FinishedAt))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "max runs to show")
	cmd.Flags().Int64Var(&scriptID, "script-id", 0, "filter by script id")
	return cmd
}

func newRunsShowCmd() *cobra.Command {
	var maxChars int
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run's full detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			r, err := s.GetRun(ctx, id)
			if err != nil {
				if err == domain.ErrRunNotFound {
					return fmt.Errorf("run %d not found", id)
				}
				return err
			}

			clip := func(text string) string {
				if len(text) <= maxChars {
					return text
				}
				return text[:maxChars] + "\n...[truncated]"
			}

			exit := ""
			if r.ExitCode != nil {
				exit = fmt.Sprintf("%d", *r.ExitCode)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id: %d\n", r.ID)
			fmt.Fprintf(out, "script_id: %d\n", r.ScriptID)
			fmt.Fprintf(out, "status: %s\n", r.Status)
			fmt.Fprintf(out, "exit_code: %s\n", exit)
			fmt.Fprintf(out, "started: %s\n", timefmt.ToLocalDisplay(&r.StartedAt))
			fmt.Fprintf(out, "finished: %s\n", timefmt.ToLocalDisplay(r.FinishedAt))
			fmt.Fprintln(out, "\n--- stdout ---")
			fmt.Fprintln(out, clip(r.Stdout))
			fmt.Fprintln(out, "\n--- stderr ---")
			fmt.Fprintln(out, clip(r.Stderr))
			return nil
		},
	}
	cmd.Flags().IntVar(&maxChars, "max", 4000, "max chars to display for stdout/stderr")
	return cmd
}

func newRunsClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all run history",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.ClearRuns(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cleared all runs.")
			return nil
		},
	}
}
