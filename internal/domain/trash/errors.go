package trash

import "errors"

var (
	// ErrNotAuthorized indicates the owner filter excluded the caller.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrProjectNotFound indicates the project doesn't exist.
	ErrProjectNotFound = errors.New("project not found")
)
