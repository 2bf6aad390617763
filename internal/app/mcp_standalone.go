package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"sldpreview/internal/config"
	mcpserver "sldpreview/internal/mcp"
	"sldpreview/internal/service"
)

// ServeMCP runs a standalone MCP server on stdin/stdout with no GUI. When
// document is not empty it is opened first. It returns when the client
// disconnects or ctx is cancelled.
func ServeMCP(ctx context.Context, cfg config.Config, document string) error {
	backend, err := OpenBackend(cfg, service.LogEmitter{})
	if err != nil {
		return err
	}
	defer backend.Close()

	if document != "" {
		if _, err := backend.Preview.OpenDocument(ctx, document); err != nil {
			return fmt.Errorf("open %s: %w", document, err)
		}
		if cfg.Watch {
			if err := backend.Preview.Watch(ctx, cfg.RefreshSchedule); err != nil {
				log.Warn().Err(err).Msg("watch failed")
			}
		}
	}

	srv := mcpserver.New(ctx, mcpserver.Deps{
		Emitter:   service.LogEmitter{},
		Preview:   backend.Preview,
		Approvals: backend.Approvals, // the desktop app answers through the shared database
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ServeStdio() }()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}
