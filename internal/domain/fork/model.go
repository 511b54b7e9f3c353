package fork

import (
	"encoding/json"
	"fmt"

	"github.com/rpggio/marginalia/internal/domain/project"
)

// Forked records a member who received a private copy.
type Forked struct {
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

// Failure records a member whose copy could not be created.
type Failure struct {
	UserID string
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("fork for %s: %v", f.UserID, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// MarshalJSON renders the failure with its error message.
func (f Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		UserID  string `json:"user_id"`
		Message string `json:"message"`
	}{f.UserID, f.Err.Error()})
}

// Outcome is the per-member result of a fork batch.
type Outcome struct {
	Forked []Forked  `json:"forked"`
	Failed []Failure `json:"failed,omitempty"`
}

// Complete reports whether every member received a copy.
func (o *Outcome) Complete() bool {
	return len(o.Failed) == 0
}

// CopyName returns the display name of a member's copy.
func CopyName(sourceName, ownerName string) string {
	return fmt.Sprintf("%s - from %s", project.StripLibraryPrefix(sourceName), ownerName)
}
