package project

import (
	"context"
	"time"
)

// Repository provides persistence for projects.
type Repository interface {
	Create(ctx context.Context, proj *Project) error
	Get(ctx context.Context, userID, id string) (*Project, error)
	ListActive(ctx context.Context, userID string) ([]Summary, error)
	ListTrashed(ctx context.Context, ownerID string) ([]Summary, error)
	Rename(ctx context.Context, ownerID, id, name string, at time.Time) error
}

// MemberRepository provides membership listings.
type MemberRepository interface {
	ListByProject(ctx context.Context, projectID string) ([]Member, error)
}
