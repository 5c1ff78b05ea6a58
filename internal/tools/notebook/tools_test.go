package notebook

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/TomokiIshimine/jupyter-mcp/internal/config"
	"github.com/TomokiIshimine/jupyter-mcp/internal/jupyter"
	"github.com/TomokiIshimine/jupyter-mcp/internal/logging"
	nb "github.com/TomokiIshimine/jupyter-mcp/internal/notebook"
	"github.com/TomokiIshimine/jupyter-mcp/internal/tools"
)

// fakeContents is an in-memory stand-in for the Jupyter contents API.
type fakeContents struct {
	mu        sync.Mutex
	notebooks map[string]json.RawMessage
}

func (f *fakeContents) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/contents/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/contents/")

		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			content, ok := f.notebooks[path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"type":"notebook","content":`))
			w.Write(content)
			w.Write([]byte(`}`))
		case http.MethodPut:
			var body struct {
				Content json.RawMessage `json:"content"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			f.notebooks[path] = body.Content
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	return mux
}

// stubExecutor satisfies the manager's executor without touching a kernel.
type stubExecutor struct {
	outputs []nb.Output
}

func (s *stubExecutor) Initialize(ctx context.Context) error { return nil }

func (s *stubExecutor) Execute(ctx context.Context, notebookPath, code string) ([]nb.Output, error) {
	return s.outputs, nil
}

func newToolContext(t *testing.T, executor nb.Executor) *tools.Context {
	t.Helper()
	fake := &fakeContents{notebooks: make(map[string]json.RawMessage)}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	client := jupyter.NewClient(srv.URL, "secret")
	logger := logging.NewLogger("error")
	manager := nb.NewManager("test.ipynb", client, executor, logger)
	if err := manager.Initialize(context.Background()); err != nil {
		t.Fatalf("Failed to initialize manager: %v", err)
	}

	return &tools.Context{
		Logger:  logger,
		Config:  &config.Config{NotebookPath: "test.ipynb", ImageDir: t.TempDir()},
		Manager: manager,
	}
}

func resultText(t *testing.T, result *mcp.CallToolResultFor[any]) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("Expected result content")
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("Expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestAddMarkdownCell(t *testing.T) {
	tctx := newToolContext(t, &stubExecutor{})
	ctx := context.Background()

	result := runAddMarkdownCell(ctx, tctx, AddMarkdownCellArgs{MarkdownText: "# Title"})
	if result.IsError {
		t.Fatalf("Expected success, got %s", resultText(t, result))
	}
	if got := resultText(t, result); got != "Markdown cell added successfully" {
		t.Errorf("Unexpected message: %q", got)
	}

	infos, err := tctx.Manager.Cells(ctx)
	if err != nil {
		t.Fatalf("Failed to list cells: %v", err)
	}
	if len(infos) != 1 || infos[0].CellType != "markdown" || infos[0].Source != "# Title" {
		t.Errorf("Expected one markdown cell, got %+v", infos)
	}
}

func TestGetAllCellsListsIndexTypeAndSource(t *testing.T) {
	tctx := newToolContext(t, &stubExecutor{})
	ctx := context.Background()

	runAddMarkdownCell(ctx, tctx, AddMarkdownCellArgs{MarkdownText: "# doc"})
	runAddCodeCellAndExecute(ctx, tctx, AddCodeCellAndExecuteArgs{Code: "x = 1"})

	result := runGetAllCells(ctx, tctx)
	if result.IsError {
		t.Fatalf("Expected success, got %s", resultText(t, result))
	}

	var views []cellView
	if err := json.Unmarshal([]byte(resultText(t, result)), &views); err != nil {
		t.Fatalf("Failed to decode listing: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("Expected 2 cells, got %d", len(views))
	}
	if views[0].Index != 0 || views[0].CellType != "markdown" || views[0].Source != "# doc" {
		t.Errorf("Unexpected first cell: %+v", views[0])
	}
	if views[1].Index != 1 || views[1].CellType != "code" || views[1].Source != "x = 1" {
		t.Errorf("Unexpected second cell: %+v", views[1])
	}
}

func TestGetAllCellsRendersImageOutputsAsPaths(t *testing.T) {
	png := base64.StdEncoding.EncodeToString([]byte("fake-png"))
	executor := &stubExecutor{outputs: []nb.Output{{
		Type: nb.OutputDisplayData,
		Data: map[string]string{"image/png": png},
	}}}
	tctx := newToolContext(t, executor)
	ctx := context.Background()

	runAddCodeCellAndExecute(ctx, tctx, AddCodeCellAndExecuteArgs{Code: "plot()"})

	result := runGetAllCells(ctx, tctx)
	var views []cellView
	if err := json.Unmarshal([]byte(resultText(t, result)), &views); err != nil {
		t.Fatalf("Failed to decode listing: %v", err)
	}
	if len(views) != 1 || len(views[0].Outputs) != 1 {
		t.Fatalf("Expected one cell with one output, got %+v", views)
	}
	if !strings.HasSuffix(views[0].Outputs[0], ".png") {
		t.Errorf("Expected an image path in the listing, got %q", views[0].Outputs[0])
	}
}

func TestUpdateCell(t *testing.T) {
	tctx := newToolContext(t, &stubExecutor{})
	ctx := context.Background()

	runAddMarkdownCell(ctx, tctx, AddMarkdownCellArgs{MarkdownText: "old"})

	result := runUpdateCell(ctx, tctx, UpdateCellArgs{CellIndex: 0, NewContent: "new"})
	if got := resultText(t, result); got != "Cell 0 updated successfully" {
		t.Errorf("Unexpected message: %q", got)
	}

	infos, _ := tctx.Manager.Cells(ctx)
	if infos[0].Source != "new" {
		t.Errorf("Expected updated source, got %q", infos[0].Source)
	}
}

func TestUpdateCellOutOfRangeIsStringResult(t *testing.T) {
	tctx := newToolContext(t, &stubExecutor{})

	result := runUpdateCell(context.Background(), tctx, UpdateCellArgs{CellIndex: 5, NewContent: "x"})
	if result.IsError {
		t.Fatal("Expected a plain string result, not an error result")
	}
	if got := resultText(t, result); got != "Error: Cell index 5 out of range" {
		t.Errorf("Unexpected message: %q", got)
	}
}

func TestDeleteCell(t *testing.T) {
	tctx := newToolContext(t, &stubExecutor{})
	ctx := context.Background()

	runAddMarkdownCell(ctx, tctx, AddMarkdownCellArgs{MarkdownText: "gone"})

	result := runDeleteCell(ctx, tctx, DeleteCellArgs{CellIndex: 0})
	if got := resultText(t, result); got != "Cell 0 deleted successfully" {
		t.Errorf("Unexpected message: %q", got)
	}

	infos, _ := tctx.Manager.Cells(ctx)
	if len(infos) != 0 {
		t.Errorf("Expected an empty notebook, got %+v", infos)
	}
}

func TestDeleteCellOutOfRangeIsStringResult(t *testing.T) {
	tctx := newToolContext(t, &stubExecutor{})

	result := runDeleteCell(context.Background(), tctx, DeleteCellArgs{CellIndex: 3})
	if result.IsError {
		t.Fatal("Expected a plain string result, not an error result")
	}
	if got := resultText(t, result); got != "Error: Cell index 3 out of range" {
		t.Errorf("Unexpected message: %q", got)
	}
}

func TestAddCodeCellAndExecuteNoOutput(t *testing.T) {
	tctx := newToolContext(t, &stubExecutor{})

	result := runAddCodeCellAndExecute(context.Background(), tctx, AddCodeCellAndExecuteArgs{Code: "x = 1"})
	if result.IsError {
		t.Fatalf("Expected success, got %s", resultText(t, result))
	}
	if got := resultText(t, result); got != noOutputMessage {
		t.Errorf("Expected the no-output marker, got %q", got)
	}
}

func TestAddCodeCellAndExecuteStreamOutput(t *testing.T) {
	executor := &stubExecutor{outputs: []nb.Output{{
		Type: nb.OutputStream, Name: "stdout", Text: "hello\n",
	}}}
	tctx := newToolContext(t, executor)

	result := runAddCodeCellAndExecute(context.Background(), tctx, AddCodeCellAndExecuteArgs{Code: "print('hello')"})
	if got := resultText(t, result); got != "hello\n" {
		t.Errorf("Expected the stream text, got %q", got)
	}
}

func TestAddCodeCellAndExecuteImageOutput(t *testing.T) {
	raw := []byte("png-bytes")
	executor := &stubExecutor{outputs: []nb.Output{{
		Type: nb.OutputDisplayData,
		Data: map[string]string{"image/png": base64.StdEncoding.EncodeToString(raw)},
	}}}
	tctx := newToolContext(t, executor)

	result := runAddCodeCellAndExecute(context.Background(), tctx, AddCodeCellAndExecuteArgs{Code: "plot()"})
	if result.IsError {
		t.Fatalf("Expected success, got %s", resultText(t, result))
	}

	img, ok := result.Content[0].(*mcp.ImageContent)
	if !ok {
		t.Fatalf("Expected image content, got %T", result.Content[0])
	}
	if img.MIMEType != "image/png" {
		t.Errorf("Expected image/png, got %q", img.MIMEType)
	}
	if string(img.Data) != string(raw) {
		t.Error("Image content does not carry the decoded bytes")
	}
}

func TestExecuteCellOutOfRangeIsStringResult(t *testing.T) {
	tctx := newToolContext(t, &stubExecutor{})

	result := runExecuteCell(context.Background(), tctx, ExecuteCellArgs{CellIndex: 9})
	if result.IsError {
		t.Fatal("Expected a plain string result, not an error result")
	}
	if got := resultText(t, result); got != "Error: Cell index 9 out of range" {
		t.Errorf("Unexpected message: %q", got)
	}
}

func TestExecuteCellRejectsMarkdown(t *testing.T) {
	tctx := newToolContext(t, &stubExecutor{})
	ctx := context.Background()

	runAddMarkdownCell(ctx, tctx, AddMarkdownCellArgs{MarkdownText: "# not code"})

	result := runExecuteCell(ctx, tctx, ExecuteCellArgs{CellIndex: 0})
	if result.IsError {
		t.Fatal("Expected a plain string result, not an error result")
	}
	if got := resultText(t, result); got != "Error: Can only execute code cells" {
		t.Errorf("Unexpected message: %q", got)
	}
}

func TestExecuteCellErrorOutputFormatting(t *testing.T) {
	executor := &stubExecutor{outputs: []nb.Output{{
		Type:      nb.OutputError,
		EName:     "ZeroDivisionError",
		EValue:    "division by zero",
		Traceback: []string{"Traceback (most recent call last)", "ZeroDivisionError: division by zero"},
	}}}
	tctx := newToolContext(t, executor)
	ctx := context.Background()

	runAddCodeCellAndExecute(ctx, tctx, AddCodeCellAndExecuteArgs{Code: "1/0"})

	result := runExecuteCell(ctx, tctx, ExecuteCellArgs{CellIndex: 0})
	want := "ZeroDivisionError: division by zero\nTraceback (most recent call last)\nZeroDivisionError: division by zero"
	if got := resultText(t, result); got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestClearAllOutputs(t *testing.T) {
	executor := &stubExecutor{outputs: []nb.Output{{
		Type: nb.OutputStream, Name: "stdout", Text: "noise\n",
	}}}
	tctx := newToolContext(t, executor)
	ctx := context.Background()

	runAddCodeCellAndExecute(ctx, tctx, AddCodeCellAndExecuteArgs{Code: "print('noise')"})

	result := runClearAllOutputs(ctx, tctx)
	if got := resultText(t, result); got != "All outputs cleared successfully" {
		t.Errorf("Unexpected message: %q", got)
	}

	infos, _ := tctx.Manager.Cells(ctx)
	if len(infos) != 1 || len(infos[0].Outputs) != 0 {
		t.Errorf("Expected outputs to be cleared, got %+v", infos)
	}
}

func TestCreateNotebookToolsRegistersSeven(t *testing.T) {
	tctx := newToolContext(t, &stubExecutor{})

	created := CreateNotebookTools(tctx)
	if len(created) != 7 {
		t.Fatalf("Expected 7 tools, got %d", len(created))
	}

	names := make(map[string]bool)
	for _, st := range created {
		if st.Tool == nil || st.Tool.Name == "" {
			t.Fatal("Tool missing a name")
		}
		if st.Tool.Description == "" {
			t.Errorf("Tool %s missing a description", st.Tool.Name)
		}
		if st.RegisterFunc == nil {
			t.Errorf("Tool %s missing a register function", st.Tool.Name)
		}
		names[st.Tool.Name] = true
	}

	for _, want := range []string{
		"add_markdown_cell", "add_code_cell_and_execute", "execute_cell",
		"get_all_cells", "update_cell", "delete_cell", "clear_all_outputs",
	} {
		if !names[want] {
			t.Errorf("Expected tool %s to be created", want)
		}
	}
}
