package invite

import "errors"

var (
	// ErrInviteInvalid indicates the token is unknown, malformed or expired.
	ErrInviteInvalid = errors.New("invite invalid or expired")
	// ErrNotOwner indicates a non-owner tried to create an invite.
	ErrNotOwner = errors.New("only the owner can invite")
	// ErrProjectNotFound indicates the project doesn't exist or isn't visible.
	ErrProjectNotFound = errors.New("project not found")
	// ErrInvalidRole indicates an invite role other than editor or viewer.
	ErrInvalidRole = errors.New("invalid invite role")
)
