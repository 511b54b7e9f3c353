package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/marginalia/internal/domain/document"
	"github.com/rpggio/marginalia/internal/domain/fork"
	"github.com/rpggio/marginalia/internal/domain/invite"
	"github.com/rpggio/marginalia/internal/domain/project"
	"github.com/rpggio/marginalia/internal/domain/trash"
	"github.com/rpggio/marginalia/internal/workbench"
)

// ErrUnknownMethod is returned for tool names the handler does not serve.
var ErrUnknownMethod = errors.New("unknown method")

// Workbench defines the caller operations exposed over MCP.
type Workbench interface {
	CreateProject(ctx context.Context, name, mode string) (*project.Project, error)
	ListProjects(ctx context.Context) (*workbench.Listing, error)
	ListTrash(ctx context.Context) ([]project.Summary, error)
	RenameProject(ctx context.Context, projectID, name string) (*project.Project, error)
	LoadProject(ctx context.Context, projectID string) (*document.Snapshot, error)
	SaveProject(ctx context.Context, projectID string, snap *document.Snapshot) (*document.SaveReport, error)
	CreateInviteLink(ctx context.Context, projectID string, role project.Role, ttl time.Duration) (*invite.Link, error)
	JoinProjectByInvite(ctx context.Context, tokenOrLink string) (*project.Project, error)
	DeleteProject(ctx context.Context, projectID string) (*fork.Outcome, error)
	RestoreProject(ctx context.Context, projectID string) error
	PermanentlyDeleteProject(ctx context.Context, projectID string) error
	EmptyTrash(ctx context.Context) (*trash.EmptyResult, error)
}

// Handler dispatches MCP commands.
type Handler struct {
	api Workbench
}

// NewHandler creates a new MCP handler.
func NewHandler(api Workbench) *Handler {
	return &Handler{api: api}
}

// Handle dispatches a tool call. The caller's identity travels in ctx.
func (h *Handler) Handle(ctx context.Context, method string, params json.RawMessage) (any, error) {
	switch method {
	case "create_project":
		var req CreateProjectParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		proj, err := h.api.CreateProject(ctx, req.Name, req.Mode)
		if err != nil {
			return nil, mapError(err)
		}
		return proj, nil
	case "list_projects":
		listing, err := h.api.ListProjects(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		return listing, nil
	case "list_trash":
		trashed, err := h.api.ListTrash(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		return trashed, nil
	case "rename_project":
		var req RenameProjectParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.ProjectID == "" || req.Name == "" {
			return nil, invalidParams("project_id and name are required")
		}
		proj, err := h.api.RenameProject(ctx, req.ProjectID, req.Name)
		if err != nil {
			return nil, mapError(err)
		}
		return proj, nil
	case "load_project":
		var req ProjectParams
		if err := decodeProjectParams(params, &req); err != nil {
			return nil, err
		}
		snap, err := h.api.LoadProject(ctx, req.ProjectID)
		if err != nil {
			return nil, mapError(err)
		}
		return snap, nil
	case "get_project_state":
		var req ProjectParams
		if err := decodeProjectParams(params, &req); err != nil {
			return nil, err
		}
		snap, err := h.api.LoadProject(ctx, req.ProjectID)
		if err != nil {
			return nil, mapError(err)
		}
		return ProjectStateResponse{
			ProjectID:   snap.ProjectID,
			Fingerprint: snap.Fingerprint(),
			Writer:      snap.Blob.Writer,
			SavedAt:     snap.Blob.SavedAt,
		}, nil
	case "save_project":
		var req SaveProjectParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.ProjectID == "" || req.Snapshot == nil {
			return nil, invalidParams("project_id and snapshot are required")
		}
		report, err := h.api.SaveProject(ctx, req.ProjectID, req.Snapshot)
		if err != nil {
			return nil, mapError(err)
		}
		return report, nil
	case "create_invite_link":
		var req CreateInviteParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		if req.ProjectID == "" {
			return nil, invalidParams("project_id is required")
		}
		link, err := h.api.CreateInviteLink(ctx, req.ProjectID, req.Role, time.Duration(req.TTLHours)*time.Hour)
		if err != nil {
			return nil, mapError(err)
		}
		return link, nil
	case "join_project":
		var req JoinProjectParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		proj, err := h.api.JoinProjectByInvite(ctx, req.Invite)
		if err != nil {
			return nil, mapError(err)
		}
		return proj, nil
	case "delete_project":
		var req ProjectParams
		if err := decodeProjectParams(params, &req); err != nil {
			return nil, err
		}
		outcome, err := h.api.DeleteProject(ctx, req.ProjectID)
		if err != nil {
			return nil, mapError(err)
		}
		return outcome, nil
	case "restore_project":
		var req ProjectParams
		if err := decodeProjectParams(params, &req); err != nil {
			return nil, err
		}
		if err := h.api.RestoreProject(ctx, req.ProjectID); err != nil {
			return nil, mapError(err)
		}
		return StatusResponse{Status: "restored"}, nil
	case "purge_project":
		var req ProjectParams
		if err := decodeProjectParams(params, &req); err != nil {
			return nil, err
		}
		if err := h.api.PermanentlyDeleteProject(ctx, req.ProjectID); err != nil {
			return nil, mapError(err)
		}
		return StatusResponse{Status: "deleted"}, nil
	case "empty_trash":
		res, err := h.api.EmptyTrash(ctx)
		if err != nil {
			return nil, mapError(err)
		}
		return res, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, method)
	}
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return invalidParams(err.Error())
	}
	return nil
}

func decodeProjectParams(params json.RawMessage, out *ProjectParams) error {
	if err := decodeParams(params, out); err != nil {
		return err
	}
	if out.ProjectID == "" {
		return invalidParams("project_id is required")
	}
	return nil
}

func invalidParams(msg string) *APIError {
	return &APIError{Code: "INVALID_INPUT", Message: msg}
}
