package app

import (
	"fmt"

	"sldpreview/internal/config"
	"sldpreview/internal/secret"
	"sldpreview/internal/service"
	"sldpreview/internal/storage"
)

// Backend is the storage and services shared by the desktop app, the
// standalone MCP server and the CLI.
type Backend struct {
	DB        *storage.DB
	Preview   *service.PreviewService
	Approvals *storage.ApprovalStore
	Secrets   secret.SecretStore
}

// OpenBackend opens the application database and builds the preview
// service around it. Events go to emitter.
func OpenBackend(cfg config.Config, emitter service.EventEmitter) (*Backend, error) {
	secrets, err := secret.New(cfg.SecretBackend)
	if err != nil {
		return nil, err
	}
	db, err := storage.New(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	preview := service.NewPreviewService(
		storage.NewProfileStore(db),
		storage.NewSampleValueStore(db),
		secrets,
		emitter,
	)
	return &Backend{
		DB:        db,
		Preview:   preview,
		Approvals: storage.NewApprovalStore(db),
		Secrets:   secrets,
	}, nil
}

// Close stops the preview service and closes the database.
func (b *Backend) Close() error {
	b.Preview.Close()
	return b.DB.Close()
}
