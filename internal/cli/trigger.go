package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mjarkko/scripter/internal/domain"
	"github.com/mjarkko/scripter/internal/fswatch"
)

func newTriggerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Manage file triggers",
	}
	cmd.AddCommand(newTriggerAddFileCmd(), newTriggerListCmd(), newTriggerDebugScanCmd(), newTriggerRemoveCmd())
	return cmd
}

func newTriggerAddFileCmd() *cobra.Command {
	var scriptID int64
	var path string
	var recursive bool
	cmd := &cobra.Command{
		Use:   "add-file",
		Short: "Watch a path for changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			ft, err := s.CreateFileTrigger(ctx, scriptID, path, recursive)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added file trigger #%d watching %s\n", ft.ID, path)
			return nil
		},
	}
	cmd.Flags().Int64Var(&scriptID, "script-id", 0, "script id")
	cmd.Flags().StringVar(&path, "path", "", "path to watch")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "watch directory recursively")
	cmd.MarkFlagRequired("script-id")
	cmd.MarkFlagRequired("path")
	return cmd
}

func newTriggerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List file triggers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			triggers, err := s.ListFileTriggers(ctx)
			if err != nil {
				return err
			}
			if len(triggers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No file triggers.")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "id\tscript\tpath\trecursive")
			for _, ft := range triggers {
				scriptName := fmt.Sprintf("%d", ft.ScriptID)
				if script, err := s.GetScript(ctx, ft.ScriptID); err == nil {
					scriptName = script.Name
				}
				fmt.Fprintf(out, "%d\t%s\t%s\t%t\n", ft.ID, scriptName, ft.Path, ft.Recursive)
			}
			return nil
		},
	}
}

func newTriggerDebugScanCmd() *cobra.Command {
	var path string
	var recursive bool
	cmd := &cobra.Command{
		Use:   "debug-scan",
		Short: "Scan a path twice against the mutation oracle and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			o := fswatch.New()
			first := o.Scan(path, recursive)
			second := o.Scan(path, recursive)
			fmt.Fprintf(cmd.OutOrStdout(), "first_scan_changed=%t second_scan_changed=%t\n", first, second)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "path to scan")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "scan directory recursively")
	cmd.MarkFlagRequired("path")
	return cmd
}

func newTriggerRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <trigger-id>",
		Short: "Remove a file trigger",
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
			if err := s.RemoveFileTrigger(ctx, id); err != nil {
				if err == domain.ErrFileTriggerNotFound {
					return fmt.Errorf("trigger %d not found", id)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed trigger %d\n", id)
			return nil
		},
	}
}
