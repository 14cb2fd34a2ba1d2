package mcp

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/docfind-mcp/internal/refresh"
	"github.com/dshills/docfind-mcp/internal/searcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "docfind-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP stdio server with the search and refresh
// services it exposes as tools.
type Server struct {
	mcp    *server.MCPServer
	search *searcher.SearchService
	stores *refresh.StoreManager
	orch   *refresh.Orchestrator
	log    *slog.Logger
}

// NewServer creates an MCP server over the given services. The store
// handle opens lazily on first use, so the server starts even before a
// database exists; tools answer "not initialized" until one is built.
func NewServer(search *searcher.SearchService, stores *refresh.StoreManager,
	orch *refresh.Orchestrator, log *slog.Logger) *Server {

	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion),
		search: search,
		stores: stores,
		orch:   orch,
		log:    log,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio and blocks until the client
// disconnects.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Info("mcp server starting", "name", ServerName, "version", ServerVersion)
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(queryDocsTool(), s.handleQueryDocs)
	s.mcp.AddTool(getChunkTool(), s.handleGetChunk)
	s.mcp.AddTool(refreshDocsTool(), s.handleRefreshDocs)
	s.mcp.AddTool(getRefreshStatusTool(), s.handleGetRefreshStatus)
}
