// Package notebook exposes the Jupyter notebook operations as MCP tools.
//
// Every operation follows the same protocol: the notebook manager refreshes
// the canonical document from the server, applies the mutation, syncs the
// collaborative mirror, and saves, all under the manager's exclusive gate.
// User-correctable input mistakes (bad index, wrong cell kind) come back as
// plain string results; system failures come back as MCP error results.
package notebook

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	errs "github.com/TomokiIshimine/jupyter-mcp/internal/errors"
	nb "github.com/TomokiIshimine/jupyter-mcp/internal/notebook"
	"github.com/TomokiIshimine/jupyter-mcp/internal/prompts"
	"github.com/TomokiIshimine/jupyter-mcp/internal/tools"
)

// AddMarkdownCellArgs represents the arguments for the add_markdown_cell tool.
type AddMarkdownCellArgs struct {
	MarkdownText string `json:"markdown_text"`
}

// UpdateCellArgs represents the arguments for the update_cell tool.
type UpdateCellArgs struct {
	CellIndex  int    `json:"cell_index"`
	NewContent string `json:"new_content"`
}

// DeleteCellArgs represents the arguments for the delete_cell tool.
type DeleteCellArgs struct {
	CellIndex int `json:"cell_index"`
}

// GetAllCellsArgs represents the arguments for the get_all_cells tool.
type GetAllCellsArgs struct{}

// ClearAllOutputsArgs represents the arguments for the clear_all_outputs tool.
type ClearAllOutputsArgs struct{}

// cellView is the JSON shape of one cell in the get_all_cells result.
type cellView struct {
	Index    int      `json:"index"`
	CellType string   `json:"cell_type"`
	Source   string   `json:"source"`
	Outputs  []string `json:"outputs"`
}

// CreateAddMarkdownCellTool creates the add_markdown_cell tool.
func CreateAddMarkdownCellTool(ctx *tools.Context) *tools.ServerTool {
	handler := func(ctxReq context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[AddMarkdownCellArgs]) (*mcp.CallToolResultFor[any], error) {
		return runAddMarkdownCell(ctxReq, ctx, params.Arguments), nil
	}

	tool := &mcp.Tool{
		Name:        "add_markdown_cell",
		Description: prompts.AddMarkdownCellDescription,
	}

	return &tools.ServerTool{
		Tool: tool,
		RegisterFunc: func(server *mcp.Server) {
			mcp.AddTool(server, tool, handler)
		},
	}
}

func runAddMarkdownCell(ctx context.Context, tctx *tools.Context, args AddMarkdownCellArgs) *mcp.CallToolResultFor[any] {
	if err := tctx.Manager.AddMarkdownCell(ctx, args.MarkdownText); err != nil {
		tctx.Logger.WithTool("add_markdown_cell").Error("failed to add markdown cell", "error", err)
		return tools.ErrorResponse(err.Error())
	}
	return tools.SuccessResponse("Markdown cell added successfully")
}

// CreateGetAllCellsTool creates the get_all_cells tool.
func CreateGetAllCellsTool(ctx *tools.Context) *tools.ServerTool {
	handler := func(ctxReq context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[GetAllCellsArgs]) (*mcp.CallToolResultFor[any], error) {
		return runGetAllCells(ctxReq, ctx), nil
	}

	tool := &mcp.Tool{
		Name:        "get_all_cells",
		Description: prompts.GetAllCellsDescription,
	}

	return &tools.ServerTool{
		Tool: tool,
		RegisterFunc: func(server *mcp.Server) {
			mcp.AddTool(server, tool, handler)
		},
	}
}

func runGetAllCells(ctx context.Context, tctx *tools.Context) *mcp.CallToolResultFor[any] {
	infos, err := tctx.Manager.Cells(ctx)
	if err != nil {
		tctx.Logger.WithTool("get_all_cells").Error("failed to list cells", "error", err)
		return tools.ErrorResponse(err.Error())
	}

	views := make([]cellView, 0, len(infos))
	for _, info := range infos {
		view := cellView{
			Index:    info.Index,
			CellType: info.CellType,
			Source:   info.Source,
			Outputs:  []string{},
		}
		for _, output := range info.Outputs {
			value, err := extractValue(tctx, output)
			if err != nil {
				return tools.ErrorResponse(err.Error())
			}
			if value.IsEmpty() {
				continue
			}
			if value.Image != nil {
				view.Outputs = append(view.Outputs, value.Image.Path)
				continue
			}
			view.Outputs = append(view.Outputs, value.Text)
		}
		views = append(views, view)
	}

	return tools.JSONResponse(views)
}

// CreateUpdateCellTool creates the update_cell tool.
func CreateUpdateCellTool(ctx *tools.Context) *tools.ServerTool {
	handler := func(ctxReq context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[UpdateCellArgs]) (*mcp.CallToolResultFor[any], error) {
		return runUpdateCell(ctxReq, ctx, params.Arguments), nil
	}

	tool := &mcp.Tool{
		Name:        "update_cell",
		Description: prompts.UpdateCellDescription,
	}

	return &tools.ServerTool{
		Tool: tool,
		RegisterFunc: func(server *mcp.Server) {
			mcp.AddTool(server, tool, handler)
		},
	}
}

func runUpdateCell(ctx context.Context, tctx *tools.Context, args UpdateCellArgs) *mcp.CallToolResultFor[any] {
	err := tctx.Manager.UpdateCell(ctx, args.CellIndex, args.NewContent)
	if errs.Is(err, nb.ErrCellIndexOutOfRange) {
		return tools.SuccessResponsef("Error: Cell index %d out of range", args.CellIndex)
	}
	if err != nil {
		tctx.Logger.WithTool("update_cell").Error("failed to update cell", "error", err)
		return tools.ErrorResponse(err.Error())
	}
	return tools.SuccessResponsef("Cell %d updated successfully", args.CellIndex)
}

// CreateDeleteCellTool creates the delete_cell tool.
func CreateDeleteCellTool(ctx *tools.Context) *tools.ServerTool {
	handler := func(ctxReq context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[DeleteCellArgs]) (*mcp.CallToolResultFor[any], error) {
		return runDeleteCell(ctxReq, ctx, params.Arguments), nil
	}

	tool := &mcp.Tool{
		Name:        "delete_cell",
		Description: prompts.DeleteCellDescription,
	}

	return &tools.ServerTool{
		Tool: tool,
		RegisterFunc: func(server *mcp.Server) {
			mcp.AddTool(server, tool, handler)
		},
	}
}

func runDeleteCell(ctx context.Context, tctx *tools.Context, args DeleteCellArgs) *mcp.CallToolResultFor[any] {
	err := tctx.Manager.DeleteCell(ctx, args.CellIndex)
	if errs.Is(err, nb.ErrCellIndexOutOfRange) {
		return tools.SuccessResponsef("Error: Cell index %d out of range", args.CellIndex)
	}
	if err != nil {
		tctx.Logger.WithTool("delete_cell").Error("failed to delete cell", "error", err)
		return tools.ErrorResponse(err.Error())
	}
	return tools.SuccessResponsef("Cell %d deleted successfully", args.CellIndex)
}

// CreateClearAllOutputsTool creates the clear_all_outputs tool.
func CreateClearAllOutputsTool(ctx *tools.Context) *tools.ServerTool {
	handler := func(ctxReq context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[ClearAllOutputsArgs]) (*mcp.CallToolResultFor[any], error) {
		return runClearAllOutputs(ctxReq, ctx), nil
	}

	tool := &mcp.Tool{
		Name:        "clear_all_outputs",
		Description: prompts.ClearAllOutputsDescription,
	}

	return &tools.ServerTool{
		Tool: tool,
		RegisterFunc: func(server *mcp.Server) {
			mcp.AddTool(server, tool, handler)
		},
	}
}

func runClearAllOutputs(ctx context.Context, tctx *tools.Context) *mcp.CallToolResultFor[any] {
	if err := tctx.Manager.ClearOutputs(ctx); err != nil {
		tctx.Logger.WithTool("clear_all_outputs").Error("failed to clear outputs", "error", err)
		return tools.ErrorResponse(err.Error())
	}
	return tools.SuccessResponse("All outputs cleared successfully")
}
