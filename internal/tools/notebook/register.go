package notebook

import (
	"github.com/TomokiIshimine/jupyter-mcp/internal/tools"
)

// CreateNotebookTools creates all Jupyter notebook operation tools.
func CreateNotebookTools(ctx *tools.Context) []*tools.ServerTool {
	return []*tools.ServerTool{
		CreateAddMarkdownCellTool(ctx),
		CreateAddCodeCellAndExecuteTool(ctx),
		CreateExecuteCellTool(ctx),
		CreateGetAllCellsTool(ctx),
		CreateUpdateCellTool(ctx),
		CreateDeleteCellTool(ctx),
		CreateClearAllOutputsTool(ctx),
	}
}
