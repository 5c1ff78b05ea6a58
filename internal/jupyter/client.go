// Package jupyter implements a thin client for the Jupyter server REST API
// and provides the websocket endpoint used for kernel messaging.
package jupyter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/TomokiIshimine/jupyter-mcp/internal/errors"
)

// Client talks to a single Jupyter server. Every call opens a fresh
// connection so a transport failure stays isolated to the triggering
// operation. Call volume is tool-invocation-rate, so the per-call
// connection overhead does not matter.
type Client struct {
	serverURL string
	token     string
}

// NewClient creates a client for the given server URL and auth token.
func NewClient(serverURL, token string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		token:     token,
	}
}

// Session is a server-tracked pairing of a notebook path and a running kernel.
type Session struct {
	ID       string          `json:"id"`
	Path     string          `json:"path"`
	Notebook SessionNotebook `json:"notebook"`
	Kernel   SessionKernel   `json:"kernel"`
}

// SessionNotebook identifies the notebook a session is bound to.
type SessionNotebook struct {
	Path string `json:"path"`
}

// SessionKernel identifies the kernel a session runs on.
type SessionKernel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Kernelspecs is the server's kernelspec inventory.
type Kernelspecs struct {
	Default     string                     `json:"default"`
	Kernelspecs map[string]json.RawMessage `json:"kernelspecs"`
}

// do performs one HTTP request with the auth header attached. Transport
// failures are mapped to ErrServerConnection; status handling is left to
// the caller.
func (c *Client) do(ctx context.Context, method, apiPath string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+apiPath, reader)
	if err != nil {
		return nil, errors.ServerConnection("invalid request for %s: %v", apiPath, err)
	}
	req.Header.Set("Authorization", "token "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := &http.Client{
		Transport: &http.Transport{DisableKeepAlives: true},
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, errors.ServerConnection("failed to connect to Jupyter server: %v", err)
	}
	return resp, nil
}

// decode reads and decodes a JSON response body. A malformed body is a
// transport-level failure, not a content-level one.
func decode(resp *http.Response, v any) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.ServerConnection("malformed response from Jupyter server: %v", err)
	}
	return nil
}

// GetKernelspecs fetches the available kernel specifications.
func (c *Client) GetKernelspecs(ctx context.Context) (*Kernelspecs, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/kernelspecs", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Kernel("failed to get kernelspecs: %d", resp.StatusCode)
	}

	var specs Kernelspecs
	if err := decode(resp, &specs); err != nil {
		return nil, err
	}
	return &specs, nil
}

// GetNotebookContent fetches the notebook model stored at path. A 404 is
// reported as the distinguished ErrNotebookNotFound so callers can decide
// to create a new notebook instead of failing.
func (c *Client) GetNotebookContent(ctx context.Context, path string) (map[string]any, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/contents/"+path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var data map[string]any
		if err := decode(resp, &data); err != nil {
			return nil, err
		}
		return data, nil
	case http.StatusNotFound:
		return nil, errors.NotebookNotFound(path)
	default:
		return nil, errors.Notebook("failed to access notebook: %d", resp.StatusCode)
	}
}

// SaveNotebookContent persists a notebook model to path. The content is
// wrapped in the contents API envelope expected by the server.
func (c *Client) SaveNotebookContent(ctx context.Context, path string, content any) error {
	body := map[string]any{
		"type":    "notebook",
		"format":  "json",
		"content": content,
	}

	resp, err := c.do(ctx, http.MethodPut, "/api/contents/"+path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.Notebook("failed to save notebook: %d", resp.StatusCode)
	}
	return nil
}

// GetSessions lists the server's active sessions.
func (c *Client) GetSessions(ctx context.Context) ([]Session, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/sessions", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Kernel("failed to get sessions: %d", resp.StatusCode)
	}

	var sessions []Session
	if err := decode(resp, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CreateSession creates a new session binding the notebook path to a kernel
// of the given name.
func (c *Client) CreateSession(ctx context.Context, path, kernelName string) (*Session, error) {
	body := map[string]any{
		"path": path,
		"type": "notebook",
		"kernel": map[string]any{
			"name": kernelName,
		},
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/sessions", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, errors.Kernel("failed to create session: %d", resp.StatusCode)
	}

	var session Session
	if err := decode(resp, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// KernelChannelURL derives the websocket endpoint for a kernel's message
// channel, carrying the auth token as a query parameter.
func (c *Client) KernelChannelURL(kernelID string) (string, error) {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return "", errors.ServerConnection("invalid server URL %q: %v", c.serverURL, err)
	}

	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/kernels/" + kernelID + "/channels"
	u.RawQuery = "token=" + url.QueryEscape(c.token)

	return u.String(), nil
}
