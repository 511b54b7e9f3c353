package document

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rpggio/marginalia/internal/domain/project"
)

// ProjectRepository is the slice of project persistence the save engine needs.
type ProjectRepository interface {
	Get(ctx context.Context, userID, id string) (*project.Project, error)
	UpdateMeta(ctx context.Context, userID, id string, blob json.RawMessage, at time.Time) error
}

// FileRepository persists code files.
type FileRepository interface {
	Upsert(ctx context.Context, files []CodeFile) error
	ListByProject(ctx context.Context, projectID string) ([]CodeFile, error)
	ListIDs(ctx context.Context, projectID string) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) error
}

// AnnotationRepository persists annotations. Replies are not embedded in rows.
type AnnotationRepository interface {
	Upsert(ctx context.Context, annotations []Annotation) error
	ListByProject(ctx context.Context, projectID string) ([]Annotation, error)
	ListIDs(ctx context.Context, projectID string) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) error
}

// ReplyRepository persists annotation replies.
type ReplyRepository interface {
	Upsert(ctx context.Context, replies []Reply) error
	ListByProject(ctx context.Context, projectID string) ([]Reply, error)
	ListIDs(ctx context.Context, projectID string) ([]string, error)
	DeleteByIDs(ctx context.Context, ids []string) error
}
