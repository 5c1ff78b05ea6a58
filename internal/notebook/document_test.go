package notebook

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDecodeJoinsSourceLines(t *testing.T) {
	content := map[string]any{
		"cells": []any{
			map[string]any{
				"cell_type": "markdown",
				"source":    []any{"# Title\n", "\n", "Body text"},
				"metadata":  map[string]any{},
			},
		},
		"nbformat":       4,
		"nbformat_minor": 5,
	}

	doc, err := DocumentFromContent(content)
	if err != nil {
		t.Fatalf("Failed to decode notebook content: %v", err)
	}

	if len(doc.Cells) != 1 {
		t.Fatalf("Expected 1 cell, got %d", len(doc.Cells))
	}
	want := "# Title\n\nBody text"
	if doc.Cells[0].Source != want {
		t.Errorf("Expected source %q, got %q", want, doc.Cells[0].Source)
	}
}

func TestDecodeStripsTransientKey(t *testing.T) {
	content := map[string]any{
		"cells": []any{
			map[string]any{
				"cell_type": "code",
				"source":    "print(1)",
				"metadata":  map[string]any{},
				"outputs": []any{
					map[string]any{
						"output_type": "stream",
						"name":        "stdout",
						"text":        "1\n",
						"transient":   map[string]any{"display_id": "abc"},
					},
				},
			},
		},
		"nbformat":       4,
		"nbformat_minor": 5,
	}

	doc, err := DocumentFromContent(content)
	if err != nil {
		t.Fatalf("Failed to decode notebook content: %v", err)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Failed to marshal document: %v", err)
	}
	if strings.Contains(string(data), "transient") {
		t.Errorf("Expected transient key to be stripped, got %s", data)
	}
	if len(doc.Cells[0].Outputs) != 1 || doc.Cells[0].Outputs[0].Text != "1\n" {
		t.Errorf("Expected stream output to survive cleaning, got %+v", doc.Cells[0].Outputs)
	}
}

func TestDecodeDropsUnknownOutputType(t *testing.T) {
	content := map[string]any{
		"cells": []any{
			map[string]any{
				"cell_type": "code",
				"source":    "x",
				"metadata":  map[string]any{},
				"outputs": []any{
					map[string]any{"output_type": "update_display_data", "data": map[string]any{}},
					map[string]any{"output_type": "stream", "name": "stdout", "text": "ok"},
				},
			},
		},
	}

	doc, err := DocumentFromContent(content)
	if err != nil {
		t.Fatalf("Failed to decode notebook content: %v", err)
	}

	if len(doc.Cells[0].Outputs) != 1 {
		t.Fatalf("Expected unknown output to be dropped, got %d outputs", len(doc.Cells[0].Outputs))
	}
	if doc.Cells[0].Outputs[0].Type != OutputStream {
		t.Errorf("Expected surviving output to be a stream, got %s", doc.Cells[0].Outputs[0].Type)
	}
}

func TestCodeCellMarshalCarriesOutputsAndCount(t *testing.T) {
	cell := NewCodeCell("print(1)")

	data, err := json.Marshal(cell)
	if err != nil {
		t.Fatalf("Failed to marshal cell: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal cell JSON: %v", err)
	}

	if _, ok := raw["outputs"]; !ok {
		t.Error("Expected code cell JSON to carry an outputs key")
	}
	if _, ok := raw["execution_count"]; !ok {
		t.Error("Expected code cell JSON to carry an execution_count key")
	}
	if raw["cell_type"] != "code" {
		t.Errorf("Expected cell_type code, got %v", raw["cell_type"])
	}
}

func TestMarkdownCellMarshalOmitsOutputs(t *testing.T) {
	data, err := json.Marshal(NewMarkdownCell("# hi"))
	if err != nil {
		t.Fatalf("Failed to marshal cell: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Failed to unmarshal cell JSON: %v", err)
	}
	if _, ok := raw["outputs"]; ok {
		t.Error("Expected markdown cell JSON to omit outputs")
	}
}

func TestOutputRoundTrip(t *testing.T) {
	count := 3
	outputs := []Output{
		{Type: OutputStream, Name: "stdout", Text: "hello\n"},
		{
			Type:           OutputExecuteResult,
			ExecutionCount: &count,
			Data:           map[string]string{"text/plain": "42"},
			Metadata:       map[string]any{},
		},
		{Type: OutputError, EName: "ValueError", EValue: "bad", Traceback: []string{"t1", "t2"}},
	}

	data, err := json.Marshal(outputs)
	if err != nil {
		t.Fatalf("Failed to marshal outputs: %v", err)
	}

	var decoded []Output
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal outputs: %v", err)
	}

	if len(decoded) != 3 {
		t.Fatalf("Expected 3 outputs, got %d", len(decoded))
	}
	if decoded[0].Text != "hello\n" || decoded[0].Name != "stdout" {
		t.Errorf("Stream output mismatch: %+v", decoded[0])
	}
	if decoded[1].ExecutionCount == nil || *decoded[1].ExecutionCount != 3 {
		t.Errorf("Execution count mismatch: %+v", decoded[1])
	}
	if decoded[1].Data["text/plain"] != "42" {
		t.Errorf("Mime data mismatch: %+v", decoded[1].Data)
	}
	if decoded[2].EName != "ValueError" || len(decoded[2].Traceback) != 2 {
		t.Errorf("Error output mismatch: %+v", decoded[2])
	}
}

func TestOutputFromKernelMessage(t *testing.T) {
	output, ok := OutputFromKernelMessage("stream", map[string]any{
		"name": "stderr",
		"text": "warning\n",
	})
	if !ok {
		t.Fatal("Expected stream message to classify as an output")
	}
	if output.Type != OutputStream || output.Name != "stderr" || output.Text != "warning\n" {
		t.Errorf("Unexpected output: %+v", output)
	}

	if _, ok := OutputFromKernelMessage("status", map[string]any{"execution_state": "busy"}); ok {
		t.Error("Expected status message to be ignored")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	doc := NewDocument()
	doc.Cells = append(doc.Cells, NewMarkdownCell("original"))

	clone, err := doc.Clone()
	if err != nil {
		t.Fatalf("Failed to clone document: %v", err)
	}

	clone.Cells[0].Source = "changed"
	if doc.Cells[0].Source != "original" {
		t.Error("Expected clone mutation to leave the original untouched")
	}
}
