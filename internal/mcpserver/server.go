// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Tessera tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/lo"

	"github.com/starford/tessera/internal/apperr"
	"github.com/starford/tessera/internal/noteservice"
)

const conventionsURI = "tessera://note-conventions"

// Server wraps the MCP server with Tessera tools.
type Server struct {
	mcp    *server.MCPServer
	svc    *noteservice.Service
	logger *slog.Logger
}

// New creates a new MCP server with all Tessera tools registered.
func New(svc *noteservice.Service, logger *slog.Logger) *Server {
	s := &Server{svc: svc, logger: logger}

	s.mcp = server.NewMCPServer(
		"Tessera",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Ranked search through note titles and content. Title matches rank above body matches."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note at the specified path. Fails if the note already exists. "+
			"See the "+conventionsURI+" resource for valid paths."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new note")),
		mcp.WithString("content", mcp.Description("Initial content (may be empty)")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes, most recently modified first, optionally within one folder."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("list_versions",
		mcp.WithDescription("List the backups kept for a note, newest first."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note")),
	), s.listVersions)

	s.mcp.AddResource(
		mcp.NewResource(conventionsURI, "Note Conventions",
			mcp.WithResourceDescription("How notes are named, stored and backed up."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readConventions,
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

// toolError reports err to the client with a fixed message. The full error
// only goes to the log.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Debug("mcp: tool failed", slog.String("tool", tool), slog.String("error", err.Error()))
	return mcp.NewToolResultError(apperr.Message(err))
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.SearchHits(ctx, query, req.GetInt("limit", noteservice.DefaultSearchLimit))
	if err != nil {
		return s.toolError("search_notes", err), nil
	}
	out, _ := json.MarshalIndent(hits, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.svc.Read(ctx, path)
	if err != nil {
		return s.toolError("read_note", err), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content := req.GetString("content", "")

	err = s.svc.Create(ctx, path)
	if err == nil && content != "" {
		err = s.svc.Save(ctx, path, content, "")
	}
	switch {
	case apperr.IsSoft(err):
		return mcp.NewToolResultText(fmt.Sprintf("created: %s (%s)", path, apperr.ErrNotSearchable)), nil
	case err != nil:
		return s.toolError("create_note", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", path)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := strings.Trim(req.GetString("folder", ""), "/")

	names, err := s.svc.List(ctx)
	if err != nil {
		return s.toolError("list_notes", err), nil
	}
	if folder != "" {
		names = lo.Filter(names, func(n string, _ int) bool {
			return strings.HasPrefix(n, folder+"/")
		})
	}
	if len(names) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) listVersions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	versions, err := s.svc.ListVersions(ctx, path)
	if err != nil {
		return s.toolError("list_versions", err), nil
	}
	if len(versions) == 0 {
		return mcp.NewToolResultText("no versions found"), nil
	}
	out, _ := json.MarshalIndent(versions, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readConventions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      conventionsURI,
			MIMEType: "text/markdown",
			Text:     NoteConventions,
		},
	}, nil
}
