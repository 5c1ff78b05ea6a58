// Package prompts provides centralized management for the tool descriptions
// and server instructions exposed over MCP.
package prompts

// ServerInstructions describes the server to connecting MCP clients.
const ServerInstructions = `This server integrates Jupyter notebooks with the Model Context Protocol.
It lets clients add, edit, delete, and execute notebook cells against a live
Jupyter server, returning execution results as text, HTML, or images.`

// AddMarkdownCellDescription documents the add_markdown_cell tool.
const AddMarkdownCellDescription = `Add a markdown cell to the Jupyter notebook.

Appends the cell at the end of the notebook and saves it to the Jupyter
server. Returns a confirmation message.`

// AddCodeCellAndExecuteDescription documents the add_code_cell_and_execute tool.
const AddCodeCellAndExecuteDescription = `Add a code cell to the Jupyter notebook and execute it.

Appends the cell at the end of the notebook, runs it on the notebook's
kernel, records the outputs on the cell, and saves the notebook. Returns the
execution outputs (text, HTML, or images), or a marker message when the cell
produced no output.`

// ExecuteCellDescription documents the execute_cell tool.
const ExecuteCellDescription = `Execute a specific code cell in the notebook by its 0-based index.

Replaces the cell's recorded outputs with the results of this run and saves
the notebook. Only code cells can be executed. Cell indices shift when cells
are inserted or deleted, so re-check indices after any structural change.`

// GetAllCellsDescription documents the get_all_cells tool.
const GetAllCellsDescription = `List every cell in the notebook.

Returns each cell's index, type, source, and extracted outputs. Read-only.`

// UpdateCellDescription documents the update_cell tool.
const UpdateCellDescription = `Replace the source text of a cell by its 0-based index.

Existing outputs are kept. Returns a confirmation, or an out-of-range
message when the index does not refer to a cell.`

// DeleteCellDescription documents the delete_cell tool.
const DeleteCellDescription = `Delete a cell by its 0-based index.

Indices of all subsequent cells shift down by one. Returns a confirmation,
or an out-of-range message when the index does not refer to a cell.`

// ClearAllOutputsDescription documents the clear_all_outputs tool.
const ClearAllOutputsDescription = `Clear the recorded outputs of every code cell in the notebook.`
