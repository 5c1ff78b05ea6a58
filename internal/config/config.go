// Package config resolves process-wide settings from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/TomokiIshimine/jupyter-mcp/internal/errors"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultNotebookPath   = "notebook.ipynb"
	DefaultServerURL      = "http://localhost:8888"
	DefaultImageDir       = "mcp_images"
	DefaultTimeout        = 180 * time.Second
	DefaultStartupTimeout = 60 * time.Second
)

// Config holds the immutable application configuration, resolved once at
// startup. Instances are shared read-only across all components.
type Config struct {
	// NotebookPath is the server-side path of the single notebook this
	// process operates on.
	NotebookPath string

	// ServerURL is the base URL of the Jupyter server.
	ServerURL string

	// Token authenticates every request to the Jupyter server. Required.
	Token string

	// KernelName overrides kernel resolution when set.
	KernelName string

	// ImageDir is where PNG outputs are written. Created if absent.
	ImageDir string

	// Timeout bounds a single kernel execute round-trip.
	Timeout time.Duration

	// StartupTimeout bounds notebook manager initialization.
	StartupTimeout time.Duration
}

// Load resolves configuration from the environment. A .env file in the
// working directory is applied first when present. A missing TOKEN is a
// fatal configuration error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		NotebookPath: getenv("NOTEBOOK_PATH", DefaultNotebookPath),
		ServerURL:    getenv("SERVER_URL", DefaultServerURL),
		Token:        os.Getenv("TOKEN"),
		KernelName:   os.Getenv("KERNEL_NAME"),
		ImageDir:     getenv("MCP_IMAGE_DIR", DefaultImageDir),
	}

	var err error
	if cfg.Timeout, err = getenvSeconds("TIMEOUT", DefaultTimeout); err != nil {
		return nil, err
	}
	if cfg.StartupTimeout, err = getenvSeconds("STARTUP_TIMEOUT", DefaultStartupTimeout); err != nil {
		return nil, err
	}

	if cfg.Token == "" {
		return nil, errors.Configuration("TOKEN environment variable must be set to connect to Jupyter Server")
	}

	if err := os.MkdirAll(cfg.ImageDir, 0o755); err != nil {
		return nil, errors.Configuration("failed to create image directory %s: %v", cfg.ImageDir, err)
	}

	return cfg, nil
}

func getenv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

// getenvSeconds reads a whole-second duration from the environment.
func getenvSeconds(name string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return fallback, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Configuration("%s must be an integer number of seconds, got %q", name, v)
	}
	return time.Duration(secs) * time.Second, nil
}
