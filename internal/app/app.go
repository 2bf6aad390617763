package app

import (
	"context"

	"github.com/rs/zerolog/log"
	wailsRuntime "github.com/wailsapp/wails/v2/pkg/runtime"

	"sldpreview/internal/config"
	"sldpreview/internal/service"
	"sldpreview/internal/storage"
)

// App is the main Wails application struct.
// All exported methods are available as Wails bindings.
type App struct {
	ctx context.Context
	cfg config.Config

	backend   *Backend
	preview   *service.PreviewService
	approvals *storage.ApprovalStore
	watcher   *approvalWatcher
}

// New creates a new App.
func New(cfg config.Config) *App {
	return &App{cfg: cfg}
}

// Startup is called when the app starts.
func (a *App) Startup(ctx context.Context) {
	a.ctx = ctx

	backend, err := OpenBackend(a.cfg, a)
	if err != nil {
		wailsRuntime.LogFatalf(ctx, "Failed to open backend: %v", err)
		return
	}
	a.backend = backend
	a.preview = backend.Preview
	a.approvals = backend.Approvals

	// A standalone MCP server shares the database and queues its approvals there
	a.watcher = newApprovalWatcher(ctx, a.approvals, a)
	a.watcher.Start()

	log.Info().Str("data_dir", a.cfg.DataDir).Msg("app started")
}

// Shutdown is called when the app is closing.
func (a *App) Shutdown(ctx context.Context) {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.backend != nil {
		a.preview.WaitRunning(ctx)
		if err := a.backend.Close(); err != nil {
			log.Error().Err(err).Msg("close backend")
		}
	}
}

// Emit forwards service events to the frontend.
func (a *App) Emit(_ context.Context, event string, data any) {
	if a.ctx == nil {
		return
	}
	wailsRuntime.EventsEmit(a.ctx, event, data)
}

// Config returns the settings the app started with.
func (a *App) Config() config.Config {
	return a.cfg
}
