package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mjarkko/scripter/config"
	"github.com/mjarkko/scripter/internal/domain"
	"github.com/mjarkko/scripter/internal/lockservice"
	"github.com/mjarkko/scripter/internal/runservice"
	"github.com/mjarkko/scripter/internal/webhook"
)

func newWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage and serve webhooks",
	}
	cmd.AddCommand(newWebhookAddCmd(), newWebhookListCmd(), newWebhookRemoveCmd(), newWebhookServeCmd())
	return cmd
}

func newWebhookAddCmd() *cobra.Command {
	var name string
	var scriptID int64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			wh, err := s.CreateWebhook(ctx, name, scriptID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added webhook #%d: %s -> script %d\n", wh.ID, wh.Name, scriptID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "webhook name")
	cmd.Flags().Int64Var(&scriptID, "script-id", 0, "script id")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("script-id")
	return cmd
}

func newWebhookListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List webhooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			webhooks, err := s.ListWebhooks(ctx)
			if err != nil {
				return err
			}
			if len(webhooks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No webhooks.")
				return nil
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "id\tname\tscript")
			for _, wh := range webhooks {
				scriptName := fmt.Sprintf("%d", wh.ScriptID)
				if script, err := s.GetScript(ctx, wh.ScriptID); err == nil {
					scriptName = script.Name
				}
				fmt.Fprintf(out, "%d\t%s\t%s\n", wh.ID, wh.Name, scriptName)
			}
			return nil
		},
	}
}

func newWebhookRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a webhook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			name := args[0]
			wh, err := s.GetWebhookByName(ctx, name)
			if err != nil {
				if err == domain.ErrWebhookNotFound {
					return fmt.Errorf("webhook %q not found", name)
				}
				return err
			}
			if err := s.RemoveWebhook(ctx, wh.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed webhook %q\n", name)
			return nil
		},
	}
}

func newWebhookServeCmd() *cobra.Command {
	cfg, err := config.Load()
	if err != nil {
		cfg = &config.Config{}
	}

	defaultPort, err2 := strconv.Atoi(cfg.WebhookPort)
	if err2 != nil {
		defaultPort = 5055
	}

	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the webhook HTTP endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			logger := newDaemonLogger(cfg.Env, cfg.SlogLevel())
			locks := lockservice.New(s)
			runs := runservice.New(s, locks, lockservice.OwnerID(), 60*time.Second, logger)
			handler := webhook.NewHandler(s, runs, logger)
			router := webhook.NewRouter(handler, logger)

			addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
			fmt.Fprintf(cmd.OutOrStdout(), "Serving webhooks on %s\n", addr)

			server := &http.Server{Addr: addr, Handler: router}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = server.Shutdown(shutdownCtx)
			}()

			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", cfg.WebhookHost, "bind host")
	cmd.Flags().IntVar(&port, "port", defaultPort, "bind port")
	return cmd
}
