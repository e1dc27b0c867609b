package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mjarkko/scripter/internal/domain"
)

func newScriptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Manage scripts",
	}
	cmd.AddCommand(newScriptAddCmd(), newScriptListCmd(), newScriptShowCmd())
	return cmd
}

func newScriptAddCmd() *cobra.Command {
	var name, command, cwd string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new script",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			sc, err := s.CreateScript(ctx, name, command, cwd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added script #%d: %s\n", sc.ID, sc.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "script name")
	cmd.Flags().StringVar(&command, "command", "", "shell command")
	cmd.Flags().StringVar(&cwd, "cwd", "", "working directory")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("command")
	return cmd
}

func newScriptListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			scripts, err := s.ListScripts(ctx)
			if err != nil {
				return err
			}
			if len(scripts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No scripts found.")
				return nil
			}
			for _, sc := range scripts {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", sc.ID, sc.Name, sc.Command)
			}
			return nil
		},
	}
}

func newScriptShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <script-id>",
		Short: "Show one script",
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
			sc, err := s.GetScript(ctx, id)
			if err != nil {
				if err == domain.ErrScriptNotFound {
					return fmt.Errorf("script %d not found", id)
				}
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id: %d\n", sc.ID)
			fmt.Fprintf(out, "name: %s\n", sc.Name)
			fmt.Fprintf(out, "command: %s\n", sc.Command)
			fmt.Fprintf(out, "cwd: %s\n", sc.Cwd)
			fmt.Fprintf(out, "created_at: %s\n", sc.CreatedAt)
			fmt.Fprintf(out, "updated_at: %s\n", sc.UpdatedAt)
			return nil
		},
	}
}
