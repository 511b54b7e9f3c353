package project

import "errors"

var (
	// ErrProjectNotFound indicates the project doesn't exist or isn't visible to the caller.
	ErrProjectNotFound = errors.New("project not found")
	// ErrInvalidInput indicates invalid project input.
	ErrInvalidInput = errors.New("invalid project input")
	// ErrNotOwner indicates the caller's ownership filter excluded the project.
	ErrNotOwner = errors.New("project not owned by caller")
)
