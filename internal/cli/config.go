package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mjarkko/scripter/internal/yamlconfig"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Import/export config files",
	}
	cmd.AddCommand(newConfigApplyCmd(), newConfigExportCmd())
	return cmd
}

func newConfigApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <path>",
		Short: "Apply a YAML config file to the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read config %s: %w", path, err)
			}
			doc, err := yamlconfig.Parse(data)
			if err != nil {
				return err
			}

			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := yamlconfig.Apply(ctx, s, doc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied config: %s\n", path)
			return nil
		},
	}
}

func newConfigExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export <path>",
		Short: "Export the store's current config to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			doc, err := yamlconfig.Export(ctx, s)
			if err != nil {
				return err
			}
			data, err := doc.Marshal()
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0644); err != nil {
				return fmt.Errorf("write config %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported config to: %s\n", path)
			return nil
		},
	}
}
