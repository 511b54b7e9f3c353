package document

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var knownCategories = []any{
	CategoryNote,
	CategoryQuestion,
	CategoryIssue,
	CategorySuggestion,
	CategoryPraise,
}

// Validate checks the snapshot before any store call.
func (s *Snapshot) Validate() error {
	err := validation.ValidateStruct(s,
		validation.Field(&s.ProjectID, validation.Required),
		validation.Field(&s.Files, validation.By(uniqueFileIDs)),
		validation.Field(&s.Annotations, validation.By(uniqueAnnotationIDs)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return nil
}

// Validate checks a single file's metadata.
func (f CodeFile) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.ID, validation.Required),
		validation.Field(&f.Filename, validation.Required, validation.Length(1, 255)),
		validation.Field(&f.DisplayOrder, validation.Min(0)),
	)
}

// Validate checks an annotation and its replies.
func (a Annotation) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.ID, validation.Required),
		validation.Field(&a.FileID, validation.Required),
		validation.Field(&a.Line, validation.Required, validation.Min(1)),
		validation.Field(&a.EndLine, validation.Min(a.Line)),
		validation.Field(&a.Category, validation.Required, validation.In(knownCategories...)),
		validation.Field(&a.Replies),
	)
}

// Validate checks a reply.
func (r Reply) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.Body, validation.Required),
	)
}

func uniqueFileIDs(value any) error {
	files, _ := value.([]CodeFile)
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if err := f.Validate(); err != nil {
			return err
		}
		if _, dup := seen[f.ID]; dup {
			return fmt.Errorf("duplicate file id %q", f.ID)
		}
		seen[f.ID] = struct{}{}
	}
	return nil
}

func uniqueAnnotationIDs(value any) error {
	annotations, _ := value.([]Annotation)
	seen := make(map[string]struct{}, len(annotations))
	replies := make(map[string]struct{})
	for _, a := range annotations {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("annotation %s: %w", a.ID, err)
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("duplicate annotation id %q", a.ID)
		}
		seen[a.ID] = struct{}{}
		for _, r := range a.Replies {
			if _, dup := replies[r.ID]; dup {
				return errors.New("duplicate reply id " + r.ID)
			}
			replies[r.ID] = struct{}{}
		}
	}
	return nil
}
