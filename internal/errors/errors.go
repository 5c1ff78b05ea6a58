// Package errors provides the error taxonomy shared across the Jupyter MCP server.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for each failure category. Every error produced by the
// jupyter client, the kernel coordinator, and the notebook manager wraps
// exactly one of these, so callers can classify failures with errors.Is.
var (
	// ErrConfiguration indicates invalid or missing startup configuration.
	ErrConfiguration = errors.New("configuration error")

	// ErrServerConnection indicates a transport-level failure reaching the
	// Jupyter server (connection refused, timeout, malformed response).
	ErrServerConnection = errors.New("server connection error")

	// ErrNotebook indicates a notebook-content-level failure.
	ErrNotebook = errors.New("notebook error")

	// ErrNotebookNotFound is the distinguished 404 signal on notebook fetch.
	// It matches ErrNotebook as well, so generic notebook handling still
	// applies where the distinction does not matter.
	ErrNotebookNotFound = fmt.Errorf("%w: notebook not found", ErrNotebook)

	// ErrKernel indicates a kernelspec, session, or execution channel failure.
	ErrKernel = errors.New("kernel error")
)

// Configuration creates a configuration error with a formatted message.
func Configuration(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// ServerConnection creates a server connection error with a formatted message.
func ServerConnection(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrServerConnection, fmt.Sprintf(format, args...))
}

// Notebook creates a notebook error with a formatted message.
func Notebook(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotebook, fmt.Sprintf(format, args...))
}

// NotebookNotFound creates the distinguished not-found error for a path.
func NotebookNotFound(path string) error {
	return fmt.Errorf("%w: %s", ErrNotebookNotFound, path)
}

// Kernel creates a kernel error with a formatted message.
func Kernel(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrKernel, fmt.Sprintf(format, args...))
}

// Wrap creates a new error by wrapping an existing error with additional context.
// This uses fmt.Errorf with %w verb for proper error chain support.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target any) bool {
	return errors.As(err, target)
}
