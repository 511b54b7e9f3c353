package mcp

import (
	"context"
	"encoding/json"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func objectSchema(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var projectIDProperty = map[string]any{
	"project_id": map[string]any{
		"type":        "string",
		"description": "Project ID",
	},
}

// buildToolCatalog returns all available MCP tools
func buildToolCatalog() []ToolDefinition {
	return []ToolDefinition{
		// Projects
		{
			Name:        "create_project",
			Description: "Create a project seeded with a README file",
			InputSchema: objectSchema(map[string]any{
				"name": map[string]any{
					"type":        "string",
					"description": "Project display name. Prefix with \"[library] \" to publish it to the library",
				},
				"mode": map[string]any{
					"type":        "string",
					"description": "Free-form mode tag (default: review)",
				},
			}, "name"),
		},
		{
			Name:        "list_projects",
			Description: "List the caller's active projects and library projects",
			InputSchema: objectSchema(map[string]any{}),
		},
		{
			Name:        "rename_project",
			Description: "Rename a project you own",
			InputSchema: objectSchema(map[string]any{
				"project_id": map[string]any{
					"type":        "string",
					"description": "Project ID",
				},
				"name": map[string]any{
					"type":        "string",
					"description": "New display name",
				},
			}, "project_id", "name"),
		},

		// Documents
		{
			Name:        "load_project",
			Description: "Load the full project document: files, contents, annotations, replies and session state",
			InputSchema: objectSchema(projectIDProperty, "project_id"),
		},
		{
			Name:        "get_project_state",
			Description: "Get the project's content fingerprint and last writer, for cheap change polling",
			InputSchema: objectSchema(projectIDProperty, "project_id"),
		},
		{
			Name:        "save_project",
			Description: "Reconcile a full project snapshot into the store. Rows missing from the snapshot are deleted",
			InputSchema: objectSchema(map[string]any{
				"project_id": map[string]any{
					"type":        "string",
					"description": "Project ID",
				},
				"snapshot": map[string]any{
					"type":        "object",
					"description": "Project snapshot as returned by load_project, with edits applied",
				},
			}, "project_id", "snapshot"),
		},

		// Sharing
		{
			Name:        "create_invite_link",
			Description: "Create an invite link for a project you own",
			InputSchema: objectSchema(map[string]any{
				"project_id": map[string]any{
					"type":        "string",
					"description": "Project ID",
				},
				"role": map[string]any{
					"type":        "string",
					"description": "Role granted on join",
					"enum":        []string{"editor", "viewer"},
				},
				"ttl_hours": map[string]any{
					"type":        "integer",
					"description": "Hours until the link expires (default: 168)",
				},
			}, "project_id"),
		},
		{
			Name:        "join_project",
			Description: "Join a project through an invite token or link",
			InputSchema: objectSchema(map[string]any{
				"invite": map[string]any{
					"type":        "string",
					"description": "Invite token, join path or full join URL",
				},
			}, "invite"),
		},

		// Trash
		{
			Name:        "delete_project",
			Description: "Give every member a private copy, then move the project to your trash",
			InputSchema: objectSchema(projectIDProperty, "project_id"),
		},
		{
			Name:        "list_trash",
			Description: "List your trashed projects",
			InputSchema: objectSchema(map[string]any{}),
		},
		{
			Name:        "restore_project",
			Description: "Move a project out of your trash",
			InputSchema: objectSchema(projectIDProperty, "project_id"),
		},
		{
			Name:        "purge_project",
			Description: "Permanently delete one of your projects and everything in it",
			InputSchema: objectSchema(projectIDProperty, "project_id"),
		},
		{
			Name:        "empty_trash",
			Description: "Permanently delete every project in your trash",
			InputSchema: objectSchema(map[string]any{}),
		},
	}
}

// registerTools exposes the catalog on server. Every tool routes through
// Handler.Handle so MCP and JSON-RPC callers see the same behavior.
func registerTools(server *sdkmcp.Server, handler *Handler, logger *slog.Logger) {
	for _, def := range buildToolCatalog() {
		server.AddTool(&sdkmcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, toolHandler(handler, def.Name, logger))
	}
}

func toolHandler(handler *Handler, name string, logger *slog.Logger) sdkmcp.ToolHandler {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		var args json.RawMessage
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}

		result, err := handler.Handle(ctx, name, args)
		if err != nil {
			apiErr := MapError(err)
			if apiErr == nil {
				logger.Error("tool failed", "tool", name, "error", err)
				apiErr = &APIError{Code: "INTERNAL", Message: "internal error"}
			}
			return toolResult(apiErr, true)
		}
		return toolResult(result, false)
	}
}

func toolResult(payload any, isError bool) (*sdkmcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &sdkmcp.CallToolResult{
		IsError: isError,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}, nil
}
