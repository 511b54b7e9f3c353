package fork

import (
	"context"

	"github.com/rpggio/marginalia/internal/domain/document"
	"github.com/rpggio/marginalia/internal/domain/project"
)

// ProjectRepository reads the source project and creates the copies.
type ProjectRepository interface {
	Get(ctx context.Context, userID, id string) (*project.Project, error)
	Create(ctx context.Context, proj *project.Project) error
	Delete(ctx context.Context, ownerID string, ids []string) error
}

// FileRepository reads, inserts and discards code files.
type FileRepository interface {
	ListByProject(ctx context.Context, projectID string) ([]document.CodeFile, error)
	Insert(ctx context.Context, files []document.CodeFile) error
	DeleteByProjects(ctx context.Context, projectIDs []string) error
}

// AnnotationRepository reads, inserts and discards annotations.
type AnnotationRepository interface {
	ListByProject(ctx context.Context, projectID string) ([]document.Annotation, error)
	Insert(ctx context.Context, annotations []document.Annotation) error
	DeleteByProjects(ctx context.Context, projectIDs []string) error
}

// ReplyRepository reads, inserts and discards replies.
type ReplyRepository interface {
	ListByProject(ctx context.Context, projectID string) ([]document.Reply, error)
	Insert(ctx context.Context, replies []document.Reply) error
	DeleteByProjects(ctx context.Context, projectIDs []string) error
}
