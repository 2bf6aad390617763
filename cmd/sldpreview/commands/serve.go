package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"sldpreview/internal/app"
	"sldpreview/internal/config"
)

func newMCPCommand(cfg func() config.Config) *cobra.Command {
	var document string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the MCP tools on stdin/stdout",
		Long: `Serve the MCP tools on stdin/stdout. Destructive tools wait for approval
from the desktop app, which reads pending requests from the shared database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return app.ServeMCP(ctx, cfg(), document)
		},
	}
	cmd.Flags().StringVar(&document, "document", "", "Style document to open before serving")
	return cmd
}

func newWatchCommand(cfg func() config.Config) *cobra.Command {
	var opts connectOptions
	cmd := &cobra.Command{
		Use:   "watch <document>",
		Short: "Keep a document connected, reloading it on save and refreshing on a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			c := cfg()
			svc, snap, closeFn, err := opts.connect(ctx, c, args[0])
			if err != nil {
				return err
			}
			defer closeFn()
			if err := writeJSON(cmd.OutOrStdout(), snap); err != nil {
				return err
			}

			if err := svc.Watch(ctx, c.RefreshSchedule); err != nil {
				return err
			}
			log.Info().Str("document", args[0]).Msg("watching, press Ctrl+C to stop")
			<-ctx.Done()
			svc.WaitRunning(context.Background())
			return nil
		},
	}
	opts.bind(cmd)
	return cmd
}
