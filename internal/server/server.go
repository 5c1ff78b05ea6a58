// Package server implements the MCP server for Jupyter notebook tools.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/TomokiIshimine/jupyter-mcp/internal/config"
	"github.com/TomokiIshimine/jupyter-mcp/internal/jupyter"
	"github.com/TomokiIshimine/jupyter-mcp/internal/kernel"
	"github.com/TomokiIshimine/jupyter-mcp/internal/logging"
	nb "github.com/TomokiIshimine/jupyter-mcp/internal/notebook"
	"github.com/TomokiIshimine/jupyter-mcp/internal/prompts"
	"github.com/TomokiIshimine/jupyter-mcp/internal/tools"
	"github.com/TomokiIshimine/jupyter-mcp/internal/tools/notebook"
	"github.com/TomokiIshimine/jupyter-mcp/pkg/version"
)

// Server represents the Jupyter MCP server. It owns the Jupyter client, the
// kernel coordinator, and the notebook state manager, and exposes the tool
// surface over an MCP transport.
type Server struct {
	mcpServer *mcp.Server
	registry  *tools.Registry
	logger    *logging.Logger
	cfg       *config.Config
	manager   *nb.Manager
}

// Options configures the server instance.
type Options struct {
	Logger *logging.Logger
	Config *config.Config
}

// New creates a new Jupyter MCP server with the given options. The
// configuration is required; the logger defaults to LOG_LEVEL or info.
func New(opts *Options) (*Server, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}

	if opts.Logger == nil {
		logLevel := os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			logLevel = "info"
		}
		opts.Logger = logging.NewLogger(logLevel)
	}

	client := jupyter.NewClient(opts.Config.ServerURL, opts.Config.Token)
	coordinator := kernel.NewCoordinator(client, opts.Config, opts.Logger)
	manager := nb.NewManager(opts.Config.NotebookPath, client, coordinator, opts.Logger)

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "jupyter-mcp",
		Version: version.GetVersion().Version,
	}, &mcp.ServerOptions{
		Instructions: prompts.ServerInstructions,
	})

	server := &Server{
		mcpServer: mcpServer,
		registry:  tools.NewRegistry(),
		logger:    opts.Logger,
		cfg:       opts.Config,
		manager:   manager,
	}

	if err := server.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return server, nil
}

// Start initializes the notebook manager and validates the tool registry.
// Initialization is bounded by the configured startup timeout.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("Starting Jupyter MCP server",
		slog.String("version", version.GetVersion().Version),
		slog.String("notebook", s.cfg.NotebookPath),
		slog.String("server_url", s.cfg.ServerURL),
		slog.Int("tools", s.registry.Count()),
	)

	if err := s.registry.Validate(); err != nil {
		return fmt.Errorf("tool registry validation failed: %w", err)
	}

	startupCtx, cancel := context.WithTimeout(ctx, s.cfg.StartupTimeout)
	defer cancel()

	if err := s.manager.Initialize(startupCtx); err != nil {
		return fmt.Errorf("failed to initialize notebook manager: %w", err)
	}

	return nil
}

// Stop stops the MCP server gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping Jupyter MCP server")

	select {
	case <-ctx.Done():
		s.logger.Warn("Server stop timed out")
		return ctx.Err()
	default:
		s.logger.Info("Server stopped successfully")
		return nil
	}
}

// GetRegistry returns the tool registry.
func (s *Server) GetRegistry() *tools.Registry {
	return s.registry
}

// registerTools registers all notebook tools with the MCP server.
func (s *Server) registerTools() error {
	s.logger.Debug("Registering tools with MCP server")

	toolCtx := &tools.Context{
		Logger:  s.logger,
		Config:  s.cfg,
		Manager: s.manager,
	}

	var toolNames []string
	for _, tool := range notebook.CreateNotebookTools(toolCtx) {
		if err := s.registry.Register(tool); err != nil {
			return err
		}
		tool.RegisterFunc(s.mcpServer)
		toolNames = append(toolNames, tool.Tool.Name)

		s.logger.Debug("Registered tool", "name", tool.Tool.Name)
	}

	s.logger.Info("Successfully registered tools",
		slog.Int("count", len(toolNames)),
		slog.Any("tools", toolNames),
	)

	return nil
}

// Serve runs the MCP server with the specified transport. It connects the
// MCP server to the transport and waits for either the session to complete
// or the context to be cancelled.
func (s *Server) Serve(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("Starting MCP server transport",
		slog.String("transport", fmt.Sprintf("%T", transport)),
	)

	session, err := s.mcpServer.Connect(ctx, transport)
	if err != nil {
		return fmt.Errorf("failed to connect MCP server: %w", err)
	}

	sessionDone := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("MCP session goroutine panicked",
					slog.Any("panic", r))
				sessionDone <- fmt.Errorf("session panicked: %v", r)
			}
		}()
		sessionDone <- session.Wait()
	}()

	select {
	case err := <-sessionDone:
		s.logger.Info("MCP session finished")
		return err
	case <-ctx.Done():
		s.logger.Info("MCP server shutting down due to context cancellation")
		return ctx.Err()
	}
}
