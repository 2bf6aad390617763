package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"sldpreview/internal/service"
)

func (s *Server) registerProfileTools() {
	s.mcp.AddTool(mcp.NewTool("list_profiles",
		mcp.WithDescription("List saved connection profiles (passwords are never returned)"),
	), s.handleListProfiles)

	s.mcp.AddTool(mcp.NewTool("create_profile",
		mcp.WithDescription("Save a connection profile. The password goes to the secret store."),
		mcp.WithString("name", mcp.Description("Profile name"), mcp.Required()),
		mcp.WithString("driver", mcp.Description("postgis, mysql, mongodb, sqlite, geopkg or geojson"), mcp.Required()),
		mcp.WithString("host", mcp.Description("Host name, or file path for file stores"), mcp.Required()),
		mcp.WithNumber("port", mcp.Description("Port (optional)")),
		mcp.WithString("database", mcp.Description("Database name (optional)")),
		mcp.WithString("username", mcp.Description("User name (optional)")),
		mcp.WithString("password", mcp.Description("Password (optional)")),
		mcp.WithString("schema", mcp.Description("Postgres schema (optional)")),
		mcp.WithString("table", mcp.Description("Feature table or collection (optional)")),
	), s.handleCreateProfile)

	s.mcp.AddTool(mcp.NewTool("test_profile",
		mcp.WithDescription("Open and close a profile's data source to check it is reachable"),
		mcp.WithString("profileId", mcp.Description("Profile ID"), mcp.Required()),
	), s.handleTestProfile)

	s.mcp.AddTool(mcp.NewTool("delete_profile",
		mcp.WithDescription("Delete a connection profile and its stored password. 🛑 Requires user approval."),
		mcp.WithString("profileId", mcp.Description("Profile ID"), mcp.Required()),
	), s.handleDeleteProfile)

	s.mcp.AddTool(mcp.NewTool("connect_document",
		mcp.WithDescription("Connect the open document to a data source, by saved profile or by raw connection properties. With neither, the document falls back to a synthesized source. Field types are corrected against the source."),
		mcp.WithString("profileId", mcp.Description("Saved profile ID (optional)")),
		mcp.WithObject("properties", mcp.Description(`Connection properties, e.g. {"dbtype":"geojson","url":"/data/roads.geojson"} (optional)`)),
	), s.handleConnectDocument)

	s.mcp.AddTool(mcp.NewTool("disconnect",
		mcp.WithDescription("Drop the external data source and synthesize from a fresh inference of the document"),
	), s.handleDisconnect)
}

func (s *Server) handleListProfiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	profiles, err := s.preview.ListProfiles()
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return jsonResult(profiles)
}

func (s *Server) handleCreateProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	input := service.ProfileInput{
		Name:     req.GetString("name", ""),
		Driver:   req.GetString("driver", ""),
		Host:     req.GetString("host", ""),
		Port:     int(getFloat(args, "port", 0)),
		Database: req.GetString("database", ""),
		Username: req.GetString("username", ""),
		Password: req.GetString("password", ""),
		Schema:   req.GetString("schema", ""),
		Table:    req.GetString("table", ""),
	}
	if input.Name == "" || input.Driver == "" || input.Host == "" {
		return nil, fmt.Errorf("name, driver and host are required")
	}
	p, err := s.preview.CreateProfile(input)
	if err != nil {
		return nil, err
	}
	return jsonResult(p)
}

func (s *Server) handleTestProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("profileId", "")
	if id == "" {
		return nil, fmt.Errorf("profileId is required")
	}
	if err := s.preview.TestProfile(ctx, id); err != nil {
		return textResult(fmt.Sprintf("Connection failed: %v", err)), nil
	}
	return textResult("Connection OK"), nil
}

func (s *Server) handleDeleteProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("profileId", "")
	if id == "" {
		return nil, fmt.Errorf("profileId is required")
	}

	approved, err := s.approval.Request("delete_profile",
		fmt.Sprintf("Delete connection profile %s", id),
		fmt.Sprintf(`{"profileId":%q}`, id))
	if err != nil || !approved {
		return textResult("Profile deletion rejected by user"), nil
	}

	if err := s.preview.DeleteProfile(id); err != nil {
		return nil, fmt.Errorf("delete profile: %w", err)
	}
	return textResult(fmt.Sprintf("Deleted profile %s", id)), nil
}

func (s *Server) handleConnectDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.preview.Document() == nil {
		return nil, fmt.Errorf("no document is open (use open_document first)")
	}
	if id := req.GetString("profileId", ""); id != "" {
		snap, err := s.preview.ConnectProfile(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("connect profile: %w", err)
		}
		return jsonResult(snap)
	}

	props, err := stringMap(req.GetArguments()["properties"])
	if err != nil {
		return nil, err
	}
	snap, err := s.preview.ConnectProperties(ctx, props)
	if err != nil {
		return nil, err
	}
	return jsonResult(snap)
}

func (s *Server) handleDisconnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.preview.Disconnect(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResult(snap)
}
