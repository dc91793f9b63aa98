package engine

import (
	"github.com/sashabaranov/go-openai"
)

// toolCatalogue is the fixed set of operations presented to the model.
// Argument schemas mirror the dispatcher's expectations exactly; the owner
// id is never part of a schema, it is injected from the conversation.
func toolCatalogue() []openai.Tool {
	return []openai.Tool{
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "create_table",
				Description: "Create a new table for the current user. The table name must be unique among the user's tables.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"table_name": map[string]interface{}{
							"type":        "string",
							"description": "Name of the new table",
						},
					},
					"required": []string{"table_name"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "get_table",
				Description: "Fetch one of the current user's tables by id.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"table_id": map[string]interface{}{
							"type":        "integer",
							"description": "Id of the table",
						},
					},
					"required": []string{"table_id"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "update_table",
				Description: "Rename one of the current user's tables.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"table_id": map[string]interface{}{
							"type":        "integer",
							"description": "Id of the table",
						},
						"table_name": map[string]interface{}{
							"type":        "string",
							"description": "New name for the table",
						},
					},
					"required": []string{"table_id", "table_name"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "delete_table",
				Description: "Delete one of the current user's tables by id.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"table_id": map[string]interface{}{
							"type":        "integer",
							"description": "Id of the table",
						},
					},
					"required": []string{"table_id"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "create_column",
				Description: "Create a column inside one of the current user's tables. The column name must be unique within the table.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"table_id": map[string]interface{}{
							"type":        "integer",
							"description": "Id of the parent table",
						},
						"column_name": map[string]interface{}{
							"type":        "string",
							"description": "Name of the new column",
						},
						"type": map[string]interface{}{
							"type":        "string",
							"description": "Free-text type label, e.g. TEXT or INTEGER",
						},
					},
					"required": []string{"table_id", "column_name", "type"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "get_column",
				Description: "Fetch a column by id. The column must sit inside one of the current user's tables.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"column_id": map[string]interface{}{
							"type":        "integer",
							"description": "Id of the column",
						},
					},
					"required": []string{"column_id"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "update_column",
				Description: "Rename a column or change its type label.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"column_id": map[string]interface{}{
							"type":        "integer",
							"description": "Id of the column",
						},
						"column_name": map[string]interface{}{
							"type":        "string",
							"description": "New name for the column",
						},
						"type": map[string]interface{}{
							"type":        "string",
							"description": "New type label for the column",
						},
					},
					"required": []string{"column_id"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "delete_column",
				Description: "Delete a column by id.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"column_id": map[string]interface{}{
							"type":        "integer",
							"description": "Id of the column",
						},
					},
					"required": []string{"column_id"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "create_cell",
				Description: "Write a value at (row, column). Writing the same coordinates again replaces the value.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"column_id": map[string]interface{}{
							"type":        "integer",
							"description": "Id of the column",
						},
						"row_id": map[string]interface{}{
							"type":        "integer",
							"description": "Row index of the cell",
						},
						"data": map[string]interface{}{
							"type":        "string",
							"description": "Value to store",
						},
					},
					"required": []string{"column_id", "row_id", "data"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "get_cell",
				Description: "Fetch the value at (row, column).",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"column_id": map[string]interface{}{
							"type":        "integer",
							"description": "Id of the column",
						},
						"row_id": map[string]interface{}{
							"type":        "integer",
							"description": "Row index of the cell",
						},
					},
					"required": []string{"column_id", "row_id"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "update_cell",
				Description: "Replace the value of an existing cell at (row, column).",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"column_id": map[string]interface{}{
							"type":        "integer",
							"description": "Id of the column",
						},
						"row_id": map[string]interface{}{
							"type":        "integer",
							"description": "Row index of the cell",
						},
						"data": map[string]interface{}{
							"type":        "string",
							"description": "New value to store",
						},
					},
					"required": []string{"column_id", "row_id", "data"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "delete_cell",
				Description: "Delete the cell at (row, column).",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"column_id": map[string]interface{}{
							"type":        "integer",
							"description": "Id of the column",
						},
						"row_id": map[string]interface{}{
							"type":        "integer",
							"description": "Row index of the cell",
						},
					},
					"required": []string{"column_id", "row_id"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "list_records",
				Description: "List records of one kind. Tables are scoped to the current user; Users, Columns and Data are listed in full.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"target": map[string]interface{}{
							"type":        "string",
							"description": "Record kind to list",
							"enum":        []string{"Users", "Tables", "Columns", "Data"},
						},
					},
					"required": []string{"target"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "list_records_with_filters",
				Description: "List records of one kind and keep only those matching every filter. A filter value is either a literal for exact match or an object like {\"gt\": 10} using one of: like, eq, gt, lt.",
				Parameters: map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"target": map[string]interface{}{
							"type":        "string",
							"description": "Record kind to list",
							"enum":        []string{"Users", "Tables", "Columns", "Data"},
						},
						"filters": map[string]interface{}{
							"type":        "object",
							"description": "Mapping of field name to literal or operator object",
						},
					},
					"required": []string{"target", "filters"},
				},
			},
		},
		{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        "task_end",
				Description: "Signal that the requested task is complete. Call this when no further operations are needed.",
				Parameters: map[string]interface{}{
					"type":       "object",
					"properties": map[string]interface{}{},
				},
			},
		},
	}
}
