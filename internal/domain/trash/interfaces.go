package trash

import (
	"context"
	"time"

	"github.com/rpggio/marginalia/internal/domain/project"
)

// ProjectRepository provides owner-scoped lifecycle updates.
type ProjectRepository interface {
	Get(ctx context.Context, userID, id string) (*project.Project, error)
	ListTrashed(ctx context.Context, ownerID string) ([]project.Summary, error)
	TrashedIDs(ctx context.Context, ownerID string) ([]string, error)
	SetDeletedAt(ctx context.Context, ownerID string, ids []string, at *time.Time) error
	Delete(ctx context.Context, ownerID string, ids []string) error
}

// CascadeRepository removes every row of a collection belonging to a set of
// projects.
type CascadeRepository interface {
	DeleteByProjects(ctx context.Context, projectIDs []string) error
}

// Cascade lists the dependent collections in deletion order.
type Cascade struct {
	Replies     CascadeRepository
	Annotations CascadeRepository
	Files       CascadeRepository
	Members     CascadeRepository
	Invites     CascadeRepository
}
