package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/marginalia/internal/workbench"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps workbench errors to MCP error codes. It returns nil for
// errors outside the caller-facing taxonomy.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, workbench.ErrNotAuthenticated):
		return &APIError{Code: "NOT_AUTHENTICATED", Message: workbench.ErrNotAuthenticated.Error(), RecoveryHint: "Send a bearer token"}
	case errors.Is(err, workbench.ErrSessionExpired):
		return &APIError{Code: "SESSION_EXPIRED", Message: workbench.ErrSessionExpired.Error(), RecoveryHint: "Sign in again and retry"}
	case errors.Is(err, workbench.ErrNotAuthorized):
		return &APIError{Code: "NOT_AUTHORIZED", Message: err.Error()}
	case errors.Is(err, workbench.ErrInviteInvalid):
		return &APIError{Code: "INVITE_INVALID", Message: workbench.ErrInviteInvalid.Error(), RecoveryHint: "Ask the owner for a new link"}
	case errors.Is(err, workbench.ErrProjectNotFound):
		return &APIError{Code: "PROJECT_NOT_FOUND", Message: workbench.ErrProjectNotFound.Error(), RecoveryHint: "Check the id with list_projects"}
	case errors.Is(err, workbench.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: err.Error()}
	default:
		return nil
	}
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}
