// Package kernel coordinates Jupyter kernel sessions and drives code
// execution over the kernel message channel.
package kernel

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/TomokiIshimine/jupyter-mcp/internal/config"
	errs "github.com/TomokiIshimine/jupyter-mcp/internal/errors"
	"github.com/TomokiIshimine/jupyter-mcp/internal/jupyter"
	"github.com/TomokiIshimine/jupyter-mcp/internal/logging"
	"github.com/TomokiIshimine/jupyter-mcp/internal/notebook"
)

// errChannelDial marks a failure to open the kernel channel. A dial failure
// on a reused session is the stale-session signal that triggers one
// recreate-and-retry.
var errChannelDial = fmt.Errorf("%w: failed to open kernel channel", errs.ErrKernel)

// header is the routing portion of a kernel message envelope.
type header struct {
	MsgID   string `json:"msg_id"`
	MsgType string `json:"msg_type"`
	Session string `json:"session"`
}

// message is the kernel wire protocol envelope.
type message struct {
	Header       header         `json:"header"`
	ParentHeader header         `json:"parent_header"`
	Metadata     map[string]any `json:"metadata"`
	Content      map[string]any `json:"content"`
}

// Coordinator resolves which kernel to use, finds or creates the session
// bound to a notebook path, and runs one execute round-trip per call.
type Coordinator struct {
	client *jupyter.Client
	cfg    *config.Config
	logger *logging.Logger

	mu            sync.Mutex
	available     map[string]json.RawMessage
	defaultKernel string
}

// NewCoordinator creates a coordinator backed by the given client.
func NewCoordinator(client *jupyter.Client, cfg *config.Config, logger *logging.Logger) *Coordinator {
	return &Coordinator{
		client: client,
		cfg:    cfg,
		logger: logger.WithComponent("kernel"),
	}
}

// Initialize discovers the kernels advertised by the server and resolves
// the default: the server's own default if present, else a python-family
// kernel, else the first available one.
func (c *Coordinator) Initialize(ctx context.Context) error {
	specs, err := c.client.GetKernelspecs(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.available = specs.Kernelspecs
	c.defaultKernel = resolveDefault(specs)

	c.logger.Debug("kernels resolved", "available", len(c.available), "default", c.defaultKernel)
	return nil
}

// resolveDefault picks a default kernel name from the advertised specs.
func resolveDefault(specs *jupyter.Kernelspecs) string {
	if _, ok := specs.Kernelspecs[specs.Default]; ok && specs.Default != "" {
		return specs.Default
	}
	if _, ok := specs.Kernelspecs["python3"]; ok {
		return "python3"
	}

	names := make([]string, 0, len(specs.Kernelspecs))
	for name := range specs.Kernelspecs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.HasPrefix(name, "python") {
			return name
		}
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

// KernelName returns the kernel to use: the configured override when set,
// else the resolved server default, else python3.
func (c *Coordinator) KernelName() string {
	if c.cfg.KernelName != "" {
		return c.cfg.KernelName
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.defaultKernel != "" {
		return c.defaultKernel
	}
	return "python3"
}

// getOrCreateSession finds the session bound to notebookPath, creating one
// when no match exists. reused reports whether an existing session matched.
func (c *Coordinator) getOrCreateSession(ctx context.Context, notebookPath string) (sess jupyter.Session, reused bool, err error) {
	sessions, err := c.client.GetSessions(ctx)
	if err != nil {
		return jupyter.Session{}, false, err
	}

	for _, s := range sessions {
		if s.Path == notebookPath || s.Notebook.Path == notebookPath {
			return s, true, nil
		}
	}

	created, err := c.client.CreateSession(ctx, notebookPath, c.KernelName())
	if err != nil {
		return jupyter.Session{}, false, err
	}
	c.logger.Info("created kernel session", "session", created.ID, "kernel", created.Kernel.ID)
	return *created, false, nil
}

// Execute runs one code string against the kernel bound to notebookPath.
// The whole round-trip is bounded by the configured timeout. A channel dial
// failure on a reused session discards that session and retries once with a
// freshly created one, since the server may have torn the kernel down.
func (c *Coordinator) Execute(ctx context.Context, notebookPath, code string) ([]notebook.Output, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	sess, reused, err := c.getOrCreateSession(ctx, notebookPath)
	if err != nil {
		return nil, err
	}

	outputs, err := c.executeCode(ctx, code, sess.ID, sess.Kernel.ID)
	if err != nil && reused && errs.Is(err, errChannelDial) {
		c.logger.Warn("kernel channel dial failed on reused session, recreating",
			"session", sess.ID, "error", err)
		created, cerr := c.client.CreateSession(ctx, notebookPath, c.KernelName())
		if cerr != nil {
			return nil, cerr
		}
		return c.executeCode(ctx, code, created.ID, created.Kernel.ID)
	}
	return outputs, err
}

// executeCode opens the kernel channel, sends one execute request, and
// aggregates matching messages until the execute reply arrives.
func (c *Coordinator) executeCode(ctx context.Context, code, sessionID, kernelID string) ([]notebook.Output, error) {
	wsURL, err := c.client.KernelChannelURL(kernelID)
	if err != nil {
		return nil, err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errChannelDial, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, errs.Kernel("failed to set channel deadline: %v", err)
		}
		if err := conn.SetWriteDeadline(deadline); err != nil {
			return nil, errs.Kernel("failed to set channel deadline: %v", err)
		}
	}

	msgID := uuid.NewString()
	if err := conn.WriteJSON(executeRequest(code, msgID, sessionID)); err != nil {
		return nil, errs.Kernel("failed to send execute request: %v", err)
	}

	return c.collectOutputs(conn, msgID)
}

// collectOutputs receives until the execute reply correlated with msgID.
// Messages with a different parent are discarded; matching output messages
// are appended in arrival order. The reply itself contributes no output.
func (c *Coordinator) collectOutputs(conn *websocket.Conn, msgID string) ([]notebook.Output, error) {
	var outputs []notebook.Output
	for {
		var msg message
		if err := conn.ReadJSON(&msg); err != nil {
			if isTimeout(err) {
				return nil, errs.Kernel("kernel execution timed out after %s", c.cfg.Timeout)
			}
			return nil, errs.Kernel("kernel channel error: %v", err)
		}

		if msg.ParentHeader.MsgID != msgID {
			continue
		}

		if msg.Header.MsgType == "execute_reply" {
			return outputs, nil
		}
		if output, ok := notebook.OutputFromKernelMessage(msg.Header.MsgType, msg.Content); ok {
			outputs = append(outputs, output)
		}
	}
}

// executeRequest builds the execute request envelope: interactive input
// disabled, history recording enabled.
func executeRequest(code, msgID, sessionID string) message {
	return message{
		Header: header{
			MsgID:   msgID,
			MsgType: "execute_request",
			Session: sessionID,
		},
		ParentHeader: header{},
		Metadata:     map[string]any{},
		Content: map[string]any{
			"code":             code,
			"silent":           false,
			"store_history":    true,
			"user_expressions": map[string]any{},
			"allow_stdin":      false,
		},
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errs.As(err, &netErr) && netErr.Timeout()
}
