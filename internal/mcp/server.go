package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"sldpreview/internal/service"
)

// Server is the MCP server for sldpreview.
// It exposes tools, resources, and prompts so AI agents can inspect a style
// document, the schema inferred from it and the data source behind it.
type Server struct {
	mcp      *server.MCPServer
	emitter  EventEmitter
	approval *ApprovalQueue
	preview  *service.PreviewService
}

// Deps holds all dependencies passed from the host to the MCP server.
type Deps struct {
	Emitter EventEmitter
	Preview *service.PreviewService
	// Approvals, when set, routes approvals through the shared database
	// (standalone mode).
	Approvals ApprovalBackend
}

// New creates and configures a new MCP server with all tools and resources.
func New(ctx context.Context, deps Deps) *Server {
	emitter := deps.Emitter
	if emitter == nil {
		emitter = service.LogEmitter{}
	}
	approval := NewApprovalQueue(ctx, emitter)
	if deps.Approvals != nil {
		approval.SetBackend(deps.Approvals)
	}
	s := &Server{
		emitter:  emitter,
		approval: approval,
		preview:  deps.Preview,
	}

	s.mcp = server.NewMCPServer(
		"sldpreview-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerDocumentTools()
	s.registerSchemaTools()
	s.registerProfileTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// MCPServer exposes the underlying server, for hosts that serve it over
// another transport.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	log.Info().Msg("starting MCP stdio server")
	return server.ServeStdio(s.mcp)
}

// Approve forwards a user approval to the approval queue.
func (s *Server) Approve(actionID string) {
	s.approval.Approve(actionID)
}

// Reject forwards a user rejection to the approval queue.
func (s *Server) Reject(actionID string) {
	s.approval.Reject(actionID)
}

// ── Helpers ────────────────────────────────────────────────

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}
