package document

import "errors"

var (
	// ErrInvalidSnapshot indicates the snapshot failed validation.
	ErrInvalidSnapshot = errors.New("invalid snapshot")
	// ErrProjectNotWritable indicates the project row rejected the metadata write.
	ErrProjectNotWritable = errors.New("project not writable by caller")
	// ErrProjectNotFound indicates the project doesn't exist or isn't visible.
	ErrProjectNotFound = errors.New("project not found")
	// ErrInvalidBlob indicates a stored session blob has an unrecognized shape.
	ErrInvalidBlob = errors.New("invalid session blob")
	// ErrUnsupportedBlobVersion indicates the blob was written by a newer engine.
	ErrUnsupportedBlobVersion = errors.New("unsupported session blob version")
)
