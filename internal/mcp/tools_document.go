package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/paulmach/orb/geojson"
)

func (s *Server) registerDocumentTools() {
	s.mcp.AddTool(mcp.NewTool("open_document",
		mcp.WithDescription("Open a style document from disk, infer its schema and connect it to the current data source"),
		mcp.WithString("path", mcp.Description("Path of the style document (JSON)"), mcp.Required()),
	), s.handleOpenDocument)

	s.mcp.AddTool(mcp.NewTool("load_document",
		mcp.WithDescription("Load a style document passed inline as JSON. Sample values are keyed by the optional name."),
		mcp.WithString("document", mcp.Description("Style document JSON"), mcp.Required()),
		mcp.WithString("name", mcp.Description("Name used to key stored sample values (optional)")),
	), s.handleLoadDocument)

	s.mcp.AddTool(mcp.NewTool("reload_document",
		mcp.WithDescription("Re-read the open document from disk and infer its schema again"),
	), s.handleReloadDocument)

	s.mcp.AddTool(mcp.NewTool("get_snapshot",
		mcp.WithDescription("Describe the active data source: geometry kind, feature type, fields and the first feature's values"),
	), s.handleGetSnapshot)

	s.mcp.AddTool(mcp.NewTool("update_inline_features",
		mcp.WithDescription("Replace the embedded features of a user layer and rebuild its inline source"),
		mcp.WithString("layerId", mcp.Description("ID of the user layer"), mcp.Required()),
		mcp.WithString("features", mcp.Description("GeoJSON FeatureCollection"), mcp.Required()),
	), s.handleUpdateInlineFeatures)
}

func (s *Server) handleOpenDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	snap, err := s.preview.OpenDocument(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	return jsonResult(snap)
}

func (s *Server) handleLoadDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data := req.GetString("document", "")
	if data == "" {
		return nil, fmt.Errorf("document is required")
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return nil, err
	}
	snap, err := s.preview.LoadDocument(ctx, req.GetString("name", ""), doc)
	if err != nil {
		return nil, err
	}
	return jsonResult(snap)
}

func (s *Server) handleReloadDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.preview.Reload(ctx); err != nil {
		return nil, fmt.Errorf("reload: %w", err)
	}
	return jsonResult(s.preview.Snapshot(ctx))
}

func (s *Server) handleGetSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.preview.Document() == nil {
		return textResult("No document is open. Use open_document or load_document first."), nil
	}
	return jsonResult(s.preview.Snapshot(ctx))
}

func (s *Server) handleUpdateInlineFeatures(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layerID := req.GetString("layerId", "")
	raw := req.GetString("features", "")
	if layerID == "" || raw == "" {
		return nil, fmt.Errorf("layerId and features are required")
	}
	fc, err := geojson.UnmarshalFeatureCollection([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("features: %w", err)
	}
	if err := s.preview.UpdateInlineFeatures(ctx, layerID, fc); err != nil {
		return nil, err
	}
	return jsonResult(s.preview.Snapshot(ctx))
}
