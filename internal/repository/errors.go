package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	// or is not visible to the caller.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert collides with an existing key.
	ErrDuplicate = errors.New("duplicate key")

	// ErrNoRowsAffected is returned when an update or delete filter matched nothing.
	// Owner-scoped filters rely on this to reject callers who don't own the row.
	ErrNoRowsAffected = errors.New("no rows affected")

	// ErrForeignKeyViolation is returned when a foreign key constraint fails
	ErrForeignKeyViolation = errors.New("foreign key violation")

	// ErrForeignRow is returned when an upsert names an id that belongs to
	// another project. The stored row is left untouched.
	ErrForeignRow = errors.New("row belongs to another project")

	// ErrSessionExpired is returned when the caller's credentials lapsed mid-operation.
	ErrSessionExpired = errors.New("session expired")
)

// ForeignRowsError lists the ids an upsert refused to take over.
type ForeignRowsError struct {
	Table string
	IDs   []string
}

func (e *ForeignRowsError) Error() string {
	return fmt.Sprintf("%s: %d row(s) belong to another project", e.Table, len(e.IDs))
}

func (e *ForeignRowsError) Unwrap() error { return ErrForeignRow }

// ForeignIDs returns the ids carried by a ForeignRowsError in err's chain.
func ForeignIDs(err error) []string {
	var fe *ForeignRowsError
	if errors.As(err, &fe) {
		return fe.IDs
	}
	return nil
}
