// Package display converts stored cell outputs into display-ready values
// for tool results: plain text, an HTML snippet, or a decoded image saved
// to the configured image directory.
package display

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/TomokiIshimine/jupyter-mcp/internal/notebook"
)

// ErrInvalidImage indicates undecodable image data in an output. Distinct
// from the kernel and notebook error kinds.
var ErrInvalidImage = errors.New("invalid image data")

// Image is an opaque handle to a PNG written to the image directory. Data
// holds the decoded bytes so callers can embed the image without re-reading
// the file.
type Image struct {
	Path string
	Data []byte
}

// Value is the display-ready form of one output. At most one of Text and
// Image is set; both empty means the output had nothing to show.
type Value struct {
	Text  string
	Image *Image
}

// IsEmpty reports whether the value carries nothing to display.
func (v Value) IsEmpty() bool {
	return v.Text == "" && v.Image == nil
}

// Extract converts one storage-form output into its display value.
// Mime-maps are resolved in fixed precedence: image/png, then text/html,
// then text/plain. Errors format as "name: message" followed by the
// traceback lines.
func Extract(output notebook.Output, imageDir string) (Value, error) {
	switch output.Type {
	case notebook.OutputStream:
		return Value{Text: output.Text}, nil

	case notebook.OutputDisplayData, notebook.OutputExecuteResult:
		if png, ok := output.Data["image/png"]; ok {
			img, err := saveImage(png, imageDir)
			if err != nil {
				return Value{}, err
			}
			return Value{Image: img}, nil
		}
		if html, ok := output.Data["text/html"]; ok {
			return Value{Text: html}, nil
		}
		if plain, ok := output.Data["text/plain"]; ok {
			return Value{Text: plain}, nil
		}
		return Value{}, nil

	case notebook.OutputError:
		return Value{Text: formatError(output)}, nil

	default:
		return Value{}, nil
	}
}

// formatError renders an error output as "{name}: {message}" with the
// traceback joined by newlines.
func formatError(output notebook.Output) string {
	return fmt.Sprintf("%s: %s\n%s",
		output.EName, output.EValue, strings.Join(output.Traceback, "\n"))
}

// saveImage decodes base64 PNG data and writes it under dir with a fresh
// random file name.
func saveImage(b64 string, dir string) (*Image, error) {
	data, err := base64.StdEncoding.DecodeString(stripSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	id := uuid.New()
	path := filepath.Join(dir, hex.EncodeToString(id[:])+".png")

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write image file %s: %w", path, err)
	}
	return &Image{Path: path, Data: data}, nil
}

// stripSpace removes whitespace; kernel PNG payloads wrap base64 lines.
func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
