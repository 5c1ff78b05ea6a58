package notebook

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/TomokiIshimine/jupyter-mcp/internal/display"
	errs "github.com/TomokiIshimine/jupyter-mcp/internal/errors"
	nb "github.com/TomokiIshimine/jupyter-mcp/internal/notebook"
	"github.com/TomokiIshimine/jupyter-mcp/internal/prompts"
	"github.com/TomokiIshimine/jupyter-mcp/internal/tools"
)

// noOutputMessage is returned when an executed cell produced nothing to show.
const noOutputMessage = "Cell executed successfully with no output"

// AddCodeCellAndExecuteArgs represents the arguments for the
// add_code_cell_and_execute tool.
type AddCodeCellAndExecuteArgs struct {
	Code string `json:"code"`
}

// ExecuteCellArgs represents the arguments for the execute_cell tool.
type ExecuteCellArgs struct {
	CellIndex int `json:"cell_index"`
}

// CreateAddCodeCellAndExecuteTool creates the add_code_cell_and_execute tool.
func CreateAddCodeCellAndExecuteTool(ctx *tools.Context) *tools.ServerTool {
	handler := func(ctxReq context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[AddCodeCellAndExecuteArgs]) (*mcp.CallToolResultFor[any], error) {
		return runAddCodeCellAndExecute(ctxReq, ctx, params.Arguments), nil
	}

	tool := &mcp.Tool{
		Name:        "add_code_cell_and_execute",
		Description: prompts.AddCodeCellAndExecuteDescription,
	}

	return &tools.ServerTool{
		Tool: tool,
		RegisterFunc: func(server *mcp.Server) {
			mcp.AddTool(server, tool, handler)
		},
	}
}

func runAddCodeCellAndExecute(ctx context.Context, tctx *tools.Context, args AddCodeCellAndExecuteArgs) *mcp.CallToolResultFor[any] {
	outputs, err := tctx.Manager.AddCodeCellAndExecute(ctx, args.Code)
	if err != nil {
		tctx.Logger.WithTool("add_code_cell_and_execute").Error("execution failed", "error", err)
		return tools.ErrorResponse(err.Error())
	}
	return valuesResult(tctx, outputs)
}

// CreateExecuteCellTool creates the execute_cell tool.
func CreateExecuteCellTool(ctx *tools.Context) *tools.ServerTool {
	handler := func(ctxReq context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[ExecuteCellArgs]) (*mcp.CallToolResultFor[any], error) {
		return runExecuteCell(ctxReq, ctx, params.Arguments), nil
	}

	tool := &mcp.Tool{
		Name:        "execute_cell",
		Description: prompts.ExecuteCellDescription,
	}

	return &tools.ServerTool{
		Tool: tool,
		RegisterFunc: func(server *mcp.Server) {
			mcp.AddTool(server, tool, handler)
		},
	}
}

func runExecuteCell(ctx context.Context, tctx *tools.Context, args ExecuteCellArgs) *mcp.CallToolResultFor[any] {
	outputs, err := tctx.Manager.ExecuteCell(ctx, args.CellIndex)
	if errs.Is(err, nb.ErrCellIndexOutOfRange) {
		return tools.SuccessResponsef("Error: Cell index %d out of range", args.CellIndex)
	}
	if errs.Is(err, nb.ErrNotCodeCell) {
		return tools.SuccessResponse("Error: Can only execute code cells")
	}
	if err != nil {
		tctx.Logger.WithTool("execute_cell").Error("execution failed", "error", err)
		return tools.ErrorResponse(err.Error())
	}
	return valuesResult(tctx, outputs)
}

// valuesResult extracts display values from outputs and builds the tool
// result, falling back to the no-output marker when nothing is displayable.
func valuesResult(tctx *tools.Context, outputs []nb.Output) *mcp.CallToolResultFor[any] {
	values := make([]display.Value, 0, len(outputs))
	for _, output := range outputs {
		value, err := extractValue(tctx, output)
		if err != nil {
			return tools.ErrorResponse(err.Error())
		}
		if value.IsEmpty() {
			continue
		}
		values = append(values, value)
	}

	if len(values) == 0 {
		return tools.SuccessResponse(noOutputMessage)
	}
	return tools.ValuesResponse(values)
}

func extractValue(tctx *tools.Context, output nb.Output) (display.Value, error) {
	return display.Extract(output, tctx.Config.ImageDir)
}
