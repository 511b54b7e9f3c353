package document

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names the store collection a failure belongs to.
type Collection string

const (
	CollectionProjects    Collection = "projects"
	CollectionFiles       Collection = "code_files"
	CollectionAnnotations Collection = "annotations"
	CollectionReplies     Collection = "annotation_replies"
)

// Failure is a sub-entity operation that failed during a save cycle.
type Failure struct {
	Collection Collection
	Op         string
	Err        error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Op, f.Collection, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// MarshalJSON renders the failure with its error message.
func (f Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Collection Collection `json:"collection"`
		Op         string     `json:"op"`
		Message    string     `json:"message"`
	}{f.Collection, f.Op, f.Err.Error()})
}

// SaveReport summarizes a save cycle. A save can succeed while sub-entity
// writes or orphan deletions failed; those are listed in Failures.
type SaveReport struct {
	ProjectID          string    `json:"project_id"`
	FilesWritten       int       `json:"files_written"`
	AnnotationsWritten int       `json:"annotations_written"`
	RepliesWritten     int       `json:"replies_written"`
	SkippedFiles       []string  `json:"skipped_files,omitempty"`
	DroppedAnnotations []string  `json:"dropped_annotations,omitempty"`
	FilesDeleted       int       `json:"files_deleted"`
	AnnotationsDeleted int       `json:"annotations_deleted"`
	RepliesDeleted     int       `json:"replies_deleted"`
	Failures           []Failure `json:"failures,omitempty"`
}

// Partial reports whether any sub-entity operation failed.
func (r *SaveReport) Partial() bool {
	return len(r.Failures) > 0
}

// Err joins every recorded failure, or returns nil.
func (r *SaveReport) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}
