package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mjarkko/scripter/internal/cronexpr"
	"github.com/mjarkko/scripter/internal/timefmt"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage schedules",
	}
	cmd.AddCommand(newScheduleAddCmd(), newScheduleAddCronCmd(), newScheduleListCmd())
	return cmd
}

func newScheduleAddCmd() *cobra.Command {
	var scriptID int64
	var interval int64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a fixed-interval schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			sch, err := s.CreateIntervalSchedule(ctx, scriptID, interval)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added schedule #%d for script %d every %ds\n", sch.ID, scriptID, interval)
			return nil
		},
	}
	cmd.Flags().Int64Var(&scriptID, "script-id", 0, "script id")
	cmd.Flags().Int64Var(&interval, "interval", 0, "interval in seconds")
	cmd.MarkFlagRequired("script-id")
	cmd.MarkFlagRequired("interval")
	return cmd
}

func newScheduleAddCronCmd() *cobra.Command {
	var scriptID int64
	var cron, tz string
	cmd := &cobra.Command{
		Use:   "add-cron",
		Short: `Add a cron schedule, e.g. --cron "0 9 * * 1-5"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cronexpr.Validate(cron); err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			var tzPtr *string
			if tz != "" {
				tzPtr = &tz
			}
			sch, err := s.CreateCronSchedule(ctx, scriptID, cron, tzPtr)
			if err != nil {
				return err
			}
			label := tz
			if label == "" {
				label = "local"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added cron schedule #%d for script %d: %s (%s)\n", sch.ID, scriptID, cron, label)
			return nil
		},
	}
	cmd.Flags().Int64Var(&scriptID, "script-id", 0, "script id")
	cmd.Flags().StringVar(&cron, "cron", "", `cron expression, e.g. "0 9 * * 1-5"`)
	cmd.Flags().StringVar(&tz, "tz", "", `IANA timezone, e.g. "America/New_York"`)
	cmd.MarkFlagRequired("script-id")
	cmd.MarkFlagRequired("cron")
	return cmd
}

func newScheduleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			schedules, err := s.ListSchedules(ctx)
			if err != nil {
				return err
			}
			if len(schedules) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No schedules found.")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "id\tscript\tkind\tspec\ttz\tlast_run")
			for _, sch := range schedules {
				script, err := s.GetScript(ctx, sch.ScriptID)
				scriptName := fmt.Sprintf("%d", sch.ScriptID)
				if err == nil {
					scriptName = script.Name
				}

				kind := "interval"
				spec := ""
				if sch.Cron != nil {
					kind = "cron"
					spec = *sch.Cron
				} else if sch.IntervalSeconds != nil {
					spec = fmt.Sprintf("%ds", *sch.IntervalSeconds)
				}

				tz := ""
				if sch.TZ != nil {
					tz = *sch.TZ
				}

				fmt.Fprintf(out, "%d\t%s\t%s\t%s\t%s\t%s\n", sch.ID, scriptName, kind, spec, tz, timefmt.ToLocalDisplay(sch.LastRun))
			}
			return nil
		},
	}
}
