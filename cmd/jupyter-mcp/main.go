// Package main implements the Jupyter MCP server executable. It provides a
// Model Context Protocol server that exposes Jupyter notebook manipulation
// tools backed by a running Jupyter server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/TomokiIshimine/jupyter-mcp/internal/config"
	"github.com/TomokiIshimine/jupyter-mcp/internal/logging"
	"github.com/TomokiIshimine/jupyter-mcp/internal/server"
	"github.com/TomokiIshimine/jupyter-mcp/pkg/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "jupyter-mcp",
	Short: "Jupyter MCP server",
	Long: `Jupyter MCP server provides a Model Context Protocol server that lets
MCP clients add, edit, delete, and execute cells of a Jupyter notebook
hosted on a running Jupyter server.`,
	RunE: runServer,
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information and exit")
}

// runServer starts the MCP server
func runServer(cmd *cobra.Command, args []string) error {
	if versionFlag, _ := cmd.Flags().GetBool("version"); versionFlag {
		fmt.Println(version.GetVersion().String())
		return nil
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := logging.NewLogger(logLevel)

	// Resolve configuration first so a missing token fails before any
	// transport is opened.
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Invalid configuration", slog.Any("error", err))
		return err
	}

	srv, err := server.New(&server.Options{
		Logger: logger,
		Config: cfg,
	})
	if err != nil {
		logger.Error("Failed to create server", slog.Any("error", err))
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		logger.Error("Failed to start server", slog.Any("error", err))
		return fmt.Errorf("failed to start server: %w", err)
	}

	transport := mcp.NewStdioTransport()

	logger.Info("Jupyter MCP Server starting",
		slog.String("version", version.GetVersion().Version),
		slog.String("notebook", cfg.NotebookPath),
		slog.Int("tools_available", srv.GetRegistry().Count()))

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx, transport)
	}()

	select {
	case err := <-serverDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Server error", slog.Any("error", err))
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping server", slog.Any("error", err))
	}

	logger.Info("Jupyter MCP Server stopped")
	return nil
}
