package notebook

import (
	"context"
	"fmt"
	"sync"

	errs "github.com/TomokiIshimine/jupyter-mcp/internal/errors"
	"github.com/TomokiIshimine/jupyter-mcp/internal/jupyter"
	"github.com/TomokiIshimine/jupyter-mcp/internal/logging"
)

// User-correctable conditions surfaced by cell operations. Tool handlers
// convert these into plain string results; everything else propagates as a
// failure. Both match ErrNotebook.
var (
	ErrCellIndexOutOfRange = fmt.Errorf("%w: cell index out of range", errs.ErrNotebook)
	ErrNotCodeCell         = fmt.Errorf("%w: cell is not a code cell", errs.ErrNotebook)
)

// Executor runs code against the kernel bound to a notebook path. It is
// implemented by the kernel session coordinator.
type Executor interface {
	// Initialize resolves the kernels available on the server.
	Initialize(ctx context.Context) error

	// Execute runs one code string, returning outputs in the order they
	// arrived on the kernel channel.
	Execute(ctx context.Context, notebookPath, code string) ([]Output, error)
}

// CellInfo is the read-only view of one cell returned by Cells.
type CellInfo struct {
	Index    int
	CellType string
	Source   string
	Outputs  []Output
}

// Manager owns the canonical notebook document and its collaborative
// mirror. A single mutex serializes every read-modify-write cycle, so tool
// operations never interleave: each one re-reads server truth, mutates,
// syncs the mirror, and saves while holding the gate.
type Manager struct {
	mu       sync.Mutex
	path     string
	client   *jupyter.Client
	executor Executor
	logger   *logging.Logger

	doc    *Document
	mirror *Mirror
}

// NewManager creates a manager for the notebook at path. The manager is
// unusable until Initialize succeeds.
func NewManager(path string, client *jupyter.Client, executor Executor, logger *logging.Logger) *Manager {
	return &Manager{
		path:     path,
		client:   client,
		executor: executor,
		logger:   logger.WithComponent("notebook-manager"),
		mirror:   NewMirror(),
	}
}

// Path returns the notebook path this manager operates on.
func (m *Manager) Path() string {
	return m.path
}

// Initialize resolves available kernels, loads the notebook from the server
// (creating and persisting an empty one if it does not exist yet), and
// constructs the collaborative mirror from the loaded document.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.executor.Initialize(ctx); err != nil {
		return err
	}
	if err := m.loadOrCreate(ctx); err != nil {
		return err
	}
	if err := m.mirror.Set(m.doc); err != nil {
		return errs.Wrap(err, "failed to initialize collaborative mirror")
	}

	m.logger.Info("notebook manager initialized", "path", m.path, "cells", len(m.doc.Cells))
	return nil
}

// loadOrCreate fetches the notebook, recovering exactly one condition
// locally: a missing notebook becomes a freshly created empty one,
// persisted immediately.
func (m *Manager) loadOrCreate(ctx context.Context) error {
	doc, err := m.fetch(ctx)
	if err == nil {
		m.doc = doc
		return nil
	}
	if !errs.Is(err, errs.ErrNotebookNotFound) {
		return err
	}

	m.logger.Info("notebook not found, creating a new one", "path", m.path)
	m.doc = NewDocument()
	return m.save(ctx)
}

// fetch retrieves and decodes the notebook content from the server.
func (m *Manager) fetch(ctx context.Context) (*Document, error) {
	data, err := m.client.GetNotebookContent(ctx, m.path)
	if err != nil {
		return nil, err
	}

	content, _ := data["content"].(map[string]any)
	if content == nil {
		content = map[string]any{}
	}

	doc, err := DocumentFromContent(content)
	if err != nil {
		return nil, errs.Notebook("invalid notebook content for %s: %v", m.path, err)
	}
	return doc, nil
}

// refresh re-derives the canonical document from server truth, discarding
// any unsaved in-memory state, and updates the mirror to match. This is the
// sole mechanism for picking up edits made outside this process.
func (m *Manager) refresh(ctx context.Context) error {
	doc, err := m.fetch(ctx)
	if err != nil {
		return err
	}
	m.doc = doc
	if err := m.mirror.Set(m.doc); err != nil {
		return errs.Wrap(err, "failed to sync refreshed document to mirror")
	}
	return nil
}

// save persists the canonical document to the server.
func (m *Manager) save(ctx context.Context) error {
	return m.client.SaveNotebookContent(ctx, m.path, m.doc)
}

func (m *Manager) syncToMirror() error {
	if err := m.mirror.Set(m.doc); err != nil {
		return errs.Wrap(err, "failed to sync document to mirror")
	}
	return nil
}

func (m *Manager) syncFromMirror() error {
	doc, err := m.mirror.Snapshot()
	if err != nil {
		return errs.Wrap(err, "failed to sync document from mirror")
	}
	if doc != nil {
		m.doc = doc
	}
	return nil
}

// RefreshFromServer unconditionally re-fetches the notebook from the server.
func (m *Manager) RefreshFromServer(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refresh(ctx)
}

// SaveToServer persists the canonical document to the server.
func (m *Manager) SaveToServer(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(ctx)
}

// SyncToMirror copies the canonical document into the collaborative mirror.
func (m *Manager) SyncToMirror() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncToMirror()
}

// SyncFromMirror replaces the canonical document with the mirror's content.
func (m *Manager) SyncFromMirror() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncFromMirror()
}

// ExecuteOnServer executes the cell at index against the kernel and returns
// the raw storage-form outputs without touching the document.
func (m *Manager) ExecuteOnServer(ctx context.Context, index int) ([]Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.executeCell(ctx, index)
}

func (m *Manager) executeCell(ctx context.Context, index int) ([]Output, error) {
	if m.doc == nil || index < 0 || index >= len(m.doc.Cells) {
		return nil, fmt.Errorf("%w: %d", ErrCellIndexOutOfRange, index)
	}
	return m.executor.Execute(ctx, m.path, m.doc.Cells[index].Source)
}

// Snapshot returns a deep copy of the canonical document, for inspection
// without holding the gate.
func (m *Manager) Snapshot() (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return nil, nil
	}
	return m.doc.Clone()
}

// MirrorSnapshot returns a deep copy of the collaborative mirror's content.
func (m *Manager) MirrorSnapshot() (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mirror.Snapshot()
}

// AddMarkdownCell appends a markdown cell and persists the document.
func (m *Manager) AddMarkdownCell(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.refresh(ctx); err != nil {
		return err
	}
	m.doc.Cells = append(m.doc.Cells, NewMarkdownCell(text))
	if err := m.syncToMirror(); err != nil {
		return err
	}
	return m.save(ctx)
}

// AddCodeCellAndExecute appends a code cell at the tail, executes it, and
// records the outputs on the new cell before persisting.
func (m *Manager) AddCodeCellAndExecute(ctx context.Context, code string) ([]Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.refresh(ctx); err != nil {
		return nil, err
	}

	index := len(m.doc.Cells)
	m.doc.Cells = append(m.doc.Cells, NewCodeCell(code))

	outputs, err := m.executeCell(ctx, index)
	if err != nil {
		return nil, err
	}
	m.doc.Cells[index].Outputs = outputs

	if err := m.syncToMirror(); err != nil {
		return nil, err
	}
	if err := m.save(ctx); err != nil {
		return nil, err
	}
	return outputs, nil
}

// ExecuteCell executes the code cell at index in place, replacing its
// recorded outputs. Returns ErrCellIndexOutOfRange or ErrNotCodeCell for
// user-correctable input mistakes.
func (m *Manager) ExecuteCell(ctx context.Context, index int) ([]Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.refresh(ctx); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(m.doc.Cells) {
		return nil, fmt.Errorf("%w: %d", ErrCellIndexOutOfRange, index)
	}
	if m.doc.Cells[index].CellType != CellTypeCode {
		return nil, fmt.Errorf("%w: %d", ErrNotCodeCell, index)
	}

	outputs, err := m.executeCell(ctx, index)
	if err != nil {
		return nil, err
	}
	m.doc.Cells[index].Outputs = outputs

	if err := m.syncToMirror(); err != nil {
		return nil, err
	}
	if err := m.save(ctx); err != nil {
		return nil, err
	}
	return outputs, nil
}

// Cells returns a read-only view of every cell after refreshing from the
// server.
func (m *Manager) Cells(ctx context.Context) ([]CellInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.refresh(ctx); err != nil {
		return nil, err
	}

	infos := make([]CellInfo, 0, len(m.doc.Cells))
	for i, cell := range m.doc.Cells {
		info := CellInfo{
			Index:    i,
			CellType: cell.CellType,
			Source:   cell.Source,
		}
		if cell.CellType == CellTypeCode {
			info.Outputs = append([]Output(nil), cell.Outputs...)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// UpdateCell replaces the source text of the cell at index.
func (m *Manager) UpdateCell(ctx context.Context, index int, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.refresh(ctx); err != nil {
		return err
	}
	if index < 0 || index >= len(m.doc.Cells) {
		return fmt.Errorf("%w: %d", ErrCellIndexOutOfRange, index)
	}

	m.doc.Cells[index].Source = content

	if err := m.syncToMirror(); err != nil {
		return err
	}
	return m.save(ctx)
}

// DeleteCell removes the cell at index. Subsequent cell indices shift down.
func (m *Manager) DeleteCell(ctx context.Context, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.refresh(ctx); err != nil {
		return err
	}
	if index < 0 || index >= len(m.doc.Cells) {
		return fmt.Errorf("%w: %d", ErrCellIndexOutOfRange, index)
	}

	m.doc.Cells = append(m.doc.Cells[:index], m.doc.Cells[index+1:]...)

	if err := m.syncToMirror(); err != nil {
		return err
	}
	return m.save(ctx)
}

// ClearOutputs empties the output list of every code cell.
func (m *Manager) ClearOutputs(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.refresh(ctx); err != nil {
		return err
	}
	for i := range m.doc.Cells {
		if m.doc.Cells[i].CellType == CellTypeCode {
			m.doc.Cells[i].Outputs = []Output{}
		}
	}

	if err := m.syncToMirror(); err != nil {
		return err
	}
	return m.save(ctx)
}
