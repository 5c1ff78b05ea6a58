// Package notebook owns the canonical notebook document, its collaborative
// mirror, and the state manager that keeps both reconciled with the server.
package notebook

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Cell types supported by the document model.
const (
	CellTypeMarkdown = "markdown"
	CellTypeCode     = "code"
)

// Notebook format written for newly created documents.
const (
	nbFormat      = 4
	nbFormatMinor = 5
)

// Document is the canonical in-memory notebook structure. It is owned
// exclusively by the Manager: replaced wholesale on refresh, mutated in
// place by tool operations, persisted on save.
type Document struct {
	Cells         []Cell
	Metadata      map[string]any
	NBFormat      int
	NBFormatMinor int
}

// Cell is one unit of notebook content, markdown text or executable code
// with recorded outputs. Its index in Document.Cells is positional, not a
// stable identity; indices shift on insert and delete.
type Cell struct {
	ID             string
	CellType       string
	Source         string
	Metadata       map[string]any
	Outputs        []Output
	ExecutionCount *int
}

// NewDocument creates an empty notebook structure.
func NewDocument() *Document {
	return &Document{
		Cells:         []Cell{},
		Metadata:      map[string]any{},
		NBFormat:      nbFormat,
		NBFormatMinor: nbFormatMinor,
	}
}

// NewMarkdownCell creates a markdown cell with the given source text.
func NewMarkdownCell(source string) Cell {
	return Cell{
		ID:       generateCellID(),
		CellType: CellTypeMarkdown,
		Source:   source,
		Metadata: map[string]any{},
	}
}

// NewCodeCell creates a code cell with the given source text and no outputs.
func NewCodeCell(source string) Cell {
	return Cell{
		ID:       generateCellID(),
		CellType: CellTypeCode,
		Source:   source,
		Metadata: map[string]any{},
		Outputs:  []Output{},
	}
}

// DocumentFromContent builds a Document from the raw content object returned
// by the contents API. Running the raw structure through the typed codec
// drops transient output keys and unsupported output types.
func DocumentFromContent(content map[string]any) (*Document, error) {
	data, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notebook content: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode notebook content: %w", err)
	}
	return &doc, nil
}

// Clone returns a deep copy with no shared state, made through the JSON
// codec so the copy is exactly the serialized form of the original.
func (d *Document) Clone() (*Document, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode notebook document: %w", err)
	}
	var clone Document
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, fmt.Errorf("failed to decode notebook document: %w", err)
	}
	return &clone, nil
}

// MarshalJSON emits the nbformat notebook representation.
func (d Document) MarshalJSON() ([]byte, error) {
	cells := d.Cells
	if cells == nil {
		cells = []Cell{}
	}
	return json.Marshal(map[string]any{
		"cells":          cells,
		"metadata":       nonNilMeta(d.Metadata),
		"nbformat":       d.NBFormat,
		"nbformat_minor": d.NBFormatMinor,
	})
}

// UnmarshalJSON parses an nbformat notebook.
func (d *Document) UnmarshalJSON(data []byte) error {
	var raw struct {
		Cells         []json.RawMessage `json:"cells"`
		Metadata      map[string]any    `json:"metadata"`
		NBFormat      int               `json:"nbformat"`
		NBFormatMinor int               `json:"nbformat_minor"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	cells := make([]Cell, 0, len(raw.Cells))
	for _, rawCell := range raw.Cells {
		var cell Cell
		if err := json.Unmarshal(rawCell, &cell); err != nil {
			return err
		}
		cells = append(cells, cell)
	}

	d.Cells = cells
	d.Metadata = rawMetadata(any(raw.Metadata))
	d.NBFormat = raw.NBFormat
	d.NBFormatMinor = raw.NBFormatMinor
	if d.NBFormat == 0 {
		d.NBFormat = nbFormat
		d.NBFormatMinor = nbFormatMinor
	}
	return nil
}

// MarshalJSON emits the nbformat cell representation. Code cells always
// carry outputs and execution_count keys, as the format requires.
func (c Cell) MarshalJSON() ([]byte, error) {
	cell := map[string]any{
		"cell_type": c.CellType,
		"source":    c.Source,
		"metadata":  nonNilMeta(c.Metadata),
	}
	if c.ID != "" {
		cell["id"] = c.ID
	}
	if c.CellType == CellTypeCode {
		outputs := c.Outputs
		if outputs == nil {
			outputs = []Output{}
		}
		cell["outputs"] = outputs
		cell["execution_count"] = c.ExecutionCount
	}
	return json.Marshal(cell)
}

// UnmarshalJSON parses an nbformat cell. Source stored as a list of lines
// is joined into a single string; unsupported output types are dropped.
func (c *Cell) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID             string           `json:"id"`
		CellType       string           `json:"cell_type"`
		Source         any              `json:"source"`
		Metadata       map[string]any   `json:"metadata"`
		Outputs        []map[string]any `json:"outputs"`
		ExecutionCount *int             `json:"execution_count"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.ID = raw.ID
	c.CellType = raw.CellType
	c.Source = rawText(raw.Source)
	c.Metadata = rawMetadata(any(raw.Metadata))
	c.ExecutionCount = raw.ExecutionCount
	c.Outputs = nil

	if raw.CellType == CellTypeCode {
		outputs := make([]Output, 0, len(raw.Outputs))
		for _, rawOutput := range raw.Outputs {
			if output, ok := OutputFromRaw(rawOutput); ok {
				outputs = append(outputs, output)
			}
		}
		c.Outputs = outputs
	}
	return nil
}

// generateCellID generates a random cell identifier in Jupyter's format.
func generateCellID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID if random generation fails
		return fmt.Sprintf("cell-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}
