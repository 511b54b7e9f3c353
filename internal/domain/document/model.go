package document

import (
	"fmt"
	"time"
)

// Category classifies an annotation.
type Category string

const (
	CategoryNote       Category = "note"
	CategoryQuestion   Category = "question"
	CategoryIssue      Category = "issue"
	CategorySuggestion Category = "suggestion"
	CategoryPraise     Category = "praise"
)

// CodeFile is one file of a project. Its ID is the anchor annotations join on
// and must survive save/load cycles unchanged.
type CodeFile struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	Filename     string    `json:"filename"`
	Language     string    `json:"language"`
	Content      string    `json:"content,omitempty"`
	DisplayOrder int       `json:"display_order"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Annotation anchors a comment to a line (or line range) of a file.
type Annotation struct {
	ID        string    `json:"id"`
	FileID    string    `json:"file_id"`
	ProjectID string    `json:"project_id"`
	AuthorID  string    `json:"author_id"`
	Line      int       `json:"line"`
	EndLine   *int      `json:"end_line,omitempty"`
	LineText  string    `json:"line_text"`
	Category  Category  `json:"category"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Replies   []Reply   `json:"replies,omitempty"`
}

// Reply is a threaded response to an annotation. Author initials and color
// are denormalized so rendering needs no profile lookup.
type Reply struct {
	ID             string    `json:"id"`
	AnnotationID   string    `json:"annotation_id"`
	ProjectID      string    `json:"project_id"`
	AuthorID       string    `json:"author_id"`
	AuthorInitials string    `json:"author_initials"`
	AuthorColor    string    `json:"author_color"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// Snapshot is the in-memory working copy of a project document.
//
// Files is ordered and carries file metadata only; Contents maps file ID to
// content. A file missing from Contents is treated as not loaded.
type Snapshot struct {
	ProjectID   string            `json:"project_id"`
	Name        string            `json:"name"`
	Mode        string            `json:"mode"`
	Files       []CodeFile        `json:"files"`
	Contents    map[string]string `json:"contents"`
	Annotations []Annotation      `json:"annotations"`
	Blob        SessionBlob       `json:"blob"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// FileIDs returns the IDs of the snapshot's files.
func (s *Snapshot) FileIDs() []string {
	ids := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		ids = append(ids, f.ID)
	}
	return ids
}

// HasFile reports whether the snapshot contains a file with id.
func (s *Snapshot) HasFile(id string) bool {
	for _, f := range s.Files {
		if f.ID == id {
			return true
		}
	}
	return false
}

// AnnotationsForFile returns the annotations anchored to fileID.
func (s *Snapshot) AnnotationsForFile(fileID string) []Annotation {
	var out []Annotation
	for _, a := range s.Annotations {
		if a.FileID == fileID {
			out = append(out, a)
		}
	}
	return out
}

// RemoveFile drops a file, its content and every annotation anchored to it.
func (s *Snapshot) RemoveFile(fileID string) {
	files := s.Files[:0]
	for _, f := range s.Files {
		if f.ID != fileID {
			files = append(files, f)
		}
	}
	s.Files = files
	delete(s.Contents, fileID)

	annotations := s.Annotations[:0]
	for _, a := range s.Annotations {
		if a.FileID != fileID {
			annotations = append(annotations, a)
		}
	}
	s.Annotations = annotations
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Files = append([]CodeFile(nil), s.Files...)
	out.Contents = make(map[string]string, len(s.Contents))
	for k, v := range s.Contents {
		out.Contents[k] = v
	}
	out.Annotations = make([]Annotation, len(s.Annotations))
	for i, a := range s.Annotations {
		if a.EndLine != nil {
			end := *a.EndLine
			a.EndLine = &end
		}
		a.Replies = append([]Reply(nil), a.Replies...)
		out.Annotations[i] = a
	}
	out.Blob.Data = append([]byte(nil), s.Blob.Data...)
	return &out
}

// NewReadmeSnapshot returns the initial document of a freshly created project.
func NewReadmeSnapshot(projectID, name, fileID string, now time.Time) *Snapshot {
	return &Snapshot{
		ProjectID: projectID,
		Name:      name,
		Files: []CodeFile{{
			ID:           fileID,
			ProjectID:    projectID,
			Filename:     "README.md",
			Language:     "markdown",
			DisplayOrder: 0,
			CreatedAt:    now,
			UpdatedAt:    now,
		}},
		Contents: map[string]string{
			fileID: fmt.Sprintf("# %s\n\nPaste code into a new file and start annotating.\n", name),
		},
		Blob: SessionBlob{Version: CurrentBlobVersion},
	}
}
