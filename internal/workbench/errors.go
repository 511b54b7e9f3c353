package workbench

import (
	"errors"
	"fmt"

	"github.com/rpggio/marginalia/internal/domain/document"
	"github.com/rpggio/marginalia/internal/domain/fork"
	"github.com/rpggio/marginalia/internal/domain/invite"
	"github.com/rpggio/marginalia/internal/domain/project"
	"github.com/rpggio/marginalia/internal/domain/trash"
	"github.com/rpggio/marginalia/internal/repository"
)

var (
	// ErrNotAuthenticated indicates the call carried no identity.
	ErrNotAuthenticated = errors.New("sign in required")
	// ErrNotAuthorized indicates the caller may not act on the project.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrSessionExpired indicates the caller's credentials lapsed.
	ErrSessionExpired = errors.New("your session has expired, sign in again to continue")
	// ErrInviteInvalid indicates an unknown, malformed or expired invite.
	ErrInviteInvalid = errors.New("invite link is invalid or has expired")
	// ErrProjectNotFound indicates the project doesn't exist or isn't visible.
	ErrProjectNotFound = errors.New("project not found")
	// ErrInvalidInput indicates a malformed request or snapshot.
	ErrInvalidInput = errors.New("invalid input")
)

// rewrite maps domain and store errors onto the caller-facing taxonomy.
func rewrite(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrSessionExpired):
		return ErrSessionExpired
	case errors.Is(err, invite.ErrInviteInvalid):
		return ErrInviteInvalid
	case errors.Is(err, project.ErrProjectNotFound),
		errors.Is(err, document.ErrProjectNotFound),
		errors.Is(err, trash.ErrProjectNotFound),
		errors.Is(err, invite.ErrProjectNotFound),
		errors.Is(err, fork.ErrSourceUnavailable):
		return fmt.Errorf("%w: %w", ErrProjectNotFound, err)
	case errors.Is(err, trash.ErrNotAuthorized),
		errors.Is(err, invite.ErrNotOwner),
		errors.Is(err, project.ErrNotOwner),
		errors.Is(err, document.ErrProjectNotWritable):
		return fmt.Errorf("%w: %w", ErrNotAuthorized, err)
	case errors.Is(err, document.ErrInvalidSnapshot),
		errors.Is(err, project.ErrInvalidInput),
		errors.Is(err, invite.ErrInvalidRole):
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	default:
		return err
	}
}
