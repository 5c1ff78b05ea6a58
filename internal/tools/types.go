// Package tools provides the registry and shared plumbing for MCP tools.
package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/TomokiIshimine/jupyter-mcp/internal/config"
	"github.com/TomokiIshimine/jupyter-mcp/internal/logging"
	"github.com/TomokiIshimine/jupyter-mcp/internal/notebook"
)

// Context carries the dependencies every tool handler needs. It is
// constructed once by the server and threaded into each handler explicitly;
// there is no ambient global state.
type Context struct {
	Logger  *logging.Logger
	Config  *config.Config
	Manager *notebook.Manager
}

// ServerTool pairs an MCP tool definition with its registration function.
// RegisterFunc exists so each tool can call mcp.AddTool with its own typed
// handler while the server treats all tools uniformly.
type ServerTool struct {
	Tool         *mcp.Tool
	RegisterFunc func(server *mcp.Server)
}
