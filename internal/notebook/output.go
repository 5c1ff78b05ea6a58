package notebook

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OutputType discriminates the four storage-format output variants.
type OutputType string

const (
	OutputStream        OutputType = "stream"
	OutputDisplayData   OutputType = "display_data"
	OutputExecuteResult OutputType = "execute_result"
	OutputError         OutputType = "error"
)

// Output is one recorded result of executing a code cell. Exactly one
// variant's fields are populated, selected by Type. Raw kernel payloads are
// converted into this type once at the system boundary; nothing downstream
// re-inspects untyped maps.
type Output struct {
	Type OutputType

	// stream
	Name string
	Text string

	// display_data and execute_result
	Data     map[string]string
	Metadata map[string]any

	// execute_result only
	ExecutionCount *int

	// error
	EName     string
	EValue    string
	Traceback []string
}

// MarshalJSON emits the nbformat representation of the output.
func (o Output) MarshalJSON() ([]byte, error) {
	switch o.Type {
	case OutputStream:
		return json.Marshal(map[string]any{
			"output_type": string(o.Type),
			"name":        o.Name,
			"text":        o.Text,
		})
	case OutputDisplayData:
		return json.Marshal(map[string]any{
			"output_type": string(o.Type),
			"data":        nonNilData(o.Data),
			"metadata":    nonNilMeta(o.Metadata),
		})
	case OutputExecuteResult:
		return json.Marshal(map[string]any{
			"output_type":     string(o.Type),
			"execution_count": o.ExecutionCount,
			"data":            nonNilData(o.Data),
			"metadata":        nonNilMeta(o.Metadata),
		})
	case OutputError:
		return json.Marshal(map[string]any{
			"output_type": string(o.Type),
			"ename":       o.EName,
			"evalue":      o.EValue,
			"traceback":   nonNilLines(o.Traceback),
		})
	default:
		return nil, fmt.Errorf("unsupported output type: %q", o.Type)
	}
}

// UnmarshalJSON parses an nbformat output dictionary. Unknown output types
// are an error here; document decoding filters them out before this point.
func (o *Output) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out, ok := OutputFromRaw(raw)
	if !ok {
		return fmt.Errorf("unsupported output type: %q", raw["output_type"])
	}
	*o = out
	return nil
}

// OutputFromRaw converts a raw output dictionary into its storage form.
// Unknown output types report ok=false and are silently dropped by callers.
// Only recognized fields are copied, so transient keys attached by the
// server never enter the canonical document.
func OutputFromRaw(raw map[string]any) (Output, bool) {
	switch rawString(raw, "output_type") {
	case string(OutputStream):
		return Output{
			Type: OutputStream,
			Name: rawString(raw, "name"),
			Text: rawText(raw["text"]),
		}, true
	case string(OutputDisplayData):
		return Output{
			Type:     OutputDisplayData,
			Data:     rawMimeBundle(raw["data"]),
			Metadata: rawMetadata(raw["metadata"]),
		}, true
	case string(OutputExecuteResult):
		return Output{
			Type:           OutputExecuteResult,
			ExecutionCount: rawCount(raw["execution_count"]),
			Data:           rawMimeBundle(raw["data"]),
			Metadata:       rawMetadata(raw["metadata"]),
		}, true
	case string(OutputError):
		return Output{
			Type:      OutputError,
			EName:     rawString(raw, "ename"),
			EValue:    rawString(raw, "evalue"),
			Traceback: rawLines(raw["traceback"]),
		}, true
	default:
		return Output{}, false
	}
}

// OutputFromKernelMessage classifies one kernel channel message into its
// storage form. The relevant message types share their names with the
// nbformat output types, so classification reduces to tagging the content.
func OutputFromKernelMessage(msgType string, content map[string]any) (Output, bool) {
	raw := make(map[string]any, len(content)+1)
	for k, v := range content {
		raw[k] = v
	}
	raw["output_type"] = msgType
	return OutputFromRaw(raw)
}

func rawString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// rawText joins multi-line text stored as a list of strings.
func rawText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		var b strings.Builder
		for _, line := range t {
			if s, ok := line.(string); ok {
				b.WriteString(s)
			}
		}
		return b.String()
	default:
		return ""
	}
}

// rawMimeBundle flattens a mime-map whose payloads may be strings or lists
// of strings into a map of plain strings.
func rawMimeBundle(v any) map[string]string {
	bundle := map[string]string{}
	m, ok := v.(map[string]any)
	if !ok {
		return bundle
	}
	for mime, payload := range m {
		bundle[mime] = rawText(payload)
	}
	return bundle
}

func rawMetadata(v any) map[string]any {
	if m, ok := v.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}

func rawCount(v any) *int {
	if f, ok := v.(float64); ok {
		n := int(f)
		return &n
	}
	return nil
}

func rawLines(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			lines = append(lines, s)
		}
	}
	return lines
}

func nonNilData(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilMeta(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func nonNilLines(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
