package mcp

import (
	"time"

	"github.com/rpggio/marginalia/internal/domain/document"
	"github.com/rpggio/marginalia/internal/domain/project"
)

type CreateProjectParams struct {
	Name string `json:"name"`
	Mode string `json:"mode,omitempty"`
}

type ProjectParams struct {
	ProjectID string `json:"project_id"`
}

type RenameProjectParams struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

type SaveProjectParams struct {
	ProjectID string             `json:"project_id"`
	Snapshot  *document.Snapshot `json:"snapshot"`
}

type CreateInviteParams struct {
	ProjectID string       `json:"project_id"`
	Role      project.Role `json:"role,omitempty"`
	TTLHours  int          `json:"ttl_hours,omitempty"`
}

type JoinProjectParams struct {
	Invite string `json:"invite"`
}

// ProjectStateResponse is the cheap poll view of a project: enough for a
// client to tell whether its copy is current without shipping the document.
type ProjectStateResponse struct {
	ProjectID   string    `json:"project_id"`
	Fingerprint string    `json:"fingerprint"`
	Writer      string    `json:"writer,omitempty"`
	SavedAt     time.Time `json:"saved_at,omitzero"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

// ToolDefinition describes one MCP tool.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}
