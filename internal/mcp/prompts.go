package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("review_style",
		mcp.WithPromptDescription("Walk through the attributes and geometry a style document needs"),
		mcp.WithArgument("path",
			mcp.ArgumentDescription("Path of the style document"),
			mcp.RequiredArgument(),
		),
	), s.handleReviewStylePrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("connect_datasource",
		mcp.WithPromptDescription("Connect a style document to a real data source and check its field types"),
		mcp.WithArgument("path",
			mcp.ArgumentDescription("Path of the style document"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("driver",
			mcp.ArgumentDescription("Data source driver (postgis, mysql, mongodb, sqlite, geopkg, geojson)"),
			mcp.RequiredArgument(),
		),
	), s.handleConnectDatasourcePrompt)
}

func (s *Server) handleReviewStylePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	path := req.Params.Arguments["path"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Review the style document %s", path),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Review the style document at "%s". Follow these steps:

1. Use open_document to load it.
2. Use classify_geometry to see which geometry kind its symbolizers imply.
3. Use infer_schema to list the attributes its expressions and filters refer to.
4. Use get_snapshot to show the sample feature the preview renders with.

Summarize which attributes a real dataset must provide, with their types, and point out any attribute whose type looks doubtful.`, path),
				},
			},
		},
	}, nil
}

func (s *Server) handleConnectDatasourcePrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	path := req.Params.Arguments["path"]
	driver := req.Params.Arguments["driver"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Connect %s to a %s source", path, driver),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Connect the style document at "%s" to a %s data source:

1. Use open_document to load it.
2. Use list_profiles to find a saved %s profile. If there is none, ask me for the connection details and use create_profile, then test_profile.
3. Use connect_document with the profile ID.
4. Use get_snapshot and compare the connected fields with infer_schema. Report any attribute the style uses that the source does not have.`, path, driver, driver),
				},
			},
		},
	}, nil
}
