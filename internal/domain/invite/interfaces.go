package invite

import (
	"context"
	"time"

	"github.com/rpggio/marginalia/internal/domain/project"
)

// ProjectRepository reads projects under the access policy.
type ProjectRepository interface {
	Get(ctx context.Context, userID, id string) (*project.Project, error)
}

// MemberRepository manages project membership.
type MemberRepository interface {
	Exists(ctx context.Context, projectID, userID string) (bool, error)
	Insert(ctx context.Context, member *project.Member) error
	Delete(ctx context.Context, projectID, userID string) error
}

// InviteRepository persists invite tokens.
type InviteRepository interface {
	Insert(ctx context.Context, inv *project.Invite) error
	GetValid(ctx context.Context, token string, now time.Time) (*project.Invite, error)
}

// ListingRefresher is notified after a successful join so the joiner's
// project listing can be reloaded.
type ListingRefresher interface {
	RefreshListing(ctx context.Context, userID string)
}
