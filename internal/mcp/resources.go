package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"sldpreview/internal/style"
)

const (
	uriDocumentSchema = "sldpreview://schema/style-document"
	uriSnapshot       = "sldpreview://preview/snapshot"
	uriProfiles       = "sldpreview://profiles"
)

func (s *Server) registerResources() {
	// ── sldpreview://schema/style-document ─────────────
	s.mcp.AddResource(mcp.NewResource(
		uriDocumentSchema,
		"Style Document JSON Schema",
		mcp.WithResourceDescription("JSON Schema of the style documents accepted by open_document and load_document"),
		mcp.WithMIMEType("application/json"),
	), s.handleDocumentSchemaResource)

	// ── sldpreview://preview/snapshot ──────────────────
	s.mcp.AddResource(mcp.NewResource(
		uriSnapshot,
		"Current Preview",
		mcp.WithResourceDescription("Active data source of the open document"),
		mcp.WithMIMEType("application/json"),
	), s.handleSnapshotResource)

	// ── sldpreview://profiles ──────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		uriProfiles,
		"Connection Profiles",
		mcp.WithMIMEType("application/json"),
	), s.handleProfilesResource)
}

func (s *Server) handleDocumentSchemaResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := style.JSONSchema()
	if err != nil {
		return nil, fmt.Errorf("generate schema: %w", err)
	}
	return jsonContents(uriDocumentSchema, data), nil
}

func (s *Server) handleSnapshotResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if s.preview.Document() == nil {
		return jsonContents(uriSnapshot, []byte("null")), nil
	}
	data, err := json.MarshalIndent(s.preview.Snapshot(ctx), "", "  ")
	if err != nil {
		return nil, err
	}
	return jsonContents(uriSnapshot, data), nil
}

func (s *Server) handleProfilesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	profiles, err := s.preview.ListProfiles()
	if err != nil {
		return nil, err
	}

	type profileSummary struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Driver string `json:"driver"`
	}
	summaries := []profileSummary{}
	for _, p := range profiles {
		summaries = append(summaries, profileSummary{ID: p.ID, Name: p.Name, Driver: string(p.Driver)})
	}

	data, _ := json.MarshalIndent(summaries, "", "  ")
	return jsonContents(uriProfiles, data), nil
}

func jsonContents(uri string, data []byte) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}
}
