// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes read-only agevault pipeline tools via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/agevault/internal/apperr"
	"github.com/starford/agevault/internal/journal"
	"github.com/starford/agevault/internal/models"
	"github.com/starford/agevault/internal/pipelineservice"
)

// Server wraps the MCP server with agevault tools.
type Server struct {
	mcp *server.MCPServer
	svc *pipelineservice.Service
}

// New creates a new MCP server with all agevault tools registered.
func New(svc *pipelineservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"agevault",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("pipeline_status",
		mcp.WithDescription("Report file counts for every pipeline folder and whether the key file exists."),
	), s.pipelineStatus)

	s.mcp.AddTool(mcp.NewTool("list_stage",
		mcp.WithDescription("List the files waiting in one pipeline folder."),
		mcp.WithString("stage", mcp.Required(),
			mcp.Description("One of: local, encrypt, vault, decrypt"),
			mcp.Enum("local", "encrypt", "vault", "decrypt"),
		),
	), s.listStage)

	s.mcp.AddTool(mcp.NewTool("recent_activity",
		mcp.WithDescription("Return the most recent encrypt and decrypt outcomes, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of entries (default 20)")),
	), s.recentActivity)

	s.mcp.AddTool(mcp.NewTool("get_pipeline_contract",
		mcp.WithDescription("Explains how files move between the pipeline folders. "+
			"Call this before telling a user where to drop a file."),
	), s.getPipelineContract)

	s.mcp.AddResource(
		mcp.NewResource("agevault://pipeline", "Pipeline Contract",
			mcp.WithResourceDescription("How the four agevault folders hand files to each other."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPipelineResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) pipelineStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Status(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(st, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listStage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stage, err := req.RequireString("stage")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	files, err := s.svc.ListStage(ctx, models.Stage(strings.ToLower(stage)))
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown stage: %s", stage)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(files) == 0 {
		return mcp.NewToolResultText("no files"), nil
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) recentActivity(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)
	if limit <= 0 {
		limit = journal.DefaultLimit
	}
	entries, err := s.svc.History(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("no activity recorded"), nil
	}
	out, _ := json.MarshalIndent(entries, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getPipelineContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PipelineContract), nil
}

func (s *Server) readPipelineResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "agevault://pipeline",
			MIMEType: "text/markdown",
			Text:     PipelineContract,
		},
	}, nil
}
