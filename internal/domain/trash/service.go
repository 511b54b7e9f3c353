package trash

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/marginalia/internal/domain/project"
	"github.com/rpggio/marginalia/internal/repository"
)

// Service manages the soft-delete, restore and purge lifecycle of projects.
type Service struct {
	projects ProjectRepository
	cascade  Cascade
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new trash service.
func NewService(projects ProjectRepository, cascade Cascade, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{projects: projects, cascade: cascade, logger: logger, now: time.Now}
}

// EmptyResult reports what an empty-trash pass removed.
type EmptyResult struct {
	Deleted []string `json:"deleted"`
}

// SoftDelete moves an owned project to the trash.
func (s *Service) SoftDelete(ctx context.Context, ownerID, projectID string) error {
	at := s.now().UTC()
	if err := s.projects.SetDeletedAt(ctx, ownerID, []string{projectID}, &at); err != nil {
		return mapOwnerError("trashing project", err)
	}
	s.logger.Info("project trashed", "project_id", projectID, "owner_id", ownerID)
	return nil
}

// Restore takes an owned project out of the trash.
func (s *Service) Restore(ctx context.Context, ownerID, projectID string) error {
	if err := s.projects.SetDeletedAt(ctx, ownerID, []string{projectID}, nil); err != nil {
		return mapOwnerError("restoring project", err)
	}
	s.logger.Info("project restored", "project_id", projectID, "owner_id", ownerID)
	return nil
}

// List returns the owner's trashed projects.
func (s *Service) List(ctx context.Context, ownerID string) ([]project.Summary, error) {
	list, err := s.projects.ListTrashed(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing trash: %w", err)
	}
	return list, nil
}

// PermanentDelete destroys an owned project and everything under it.
// Ownership is confirmed before any dependent row is touched.
func (s *Service) PermanentDelete(ctx context.Context, ownerID, projectID string) error {
	proj, err := s.projects.Get(ctx, ownerID, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("getting project: %w", err)
	}
	if proj.OwnerID != ownerID {
		return ErrNotAuthorized
	}

	if err := s.purge(ctx, ownerID, []string{projectID}); err != nil {
		return err
	}
	s.logger.Info("project purged", "project_id", projectID, "owner_id", ownerID)
	return nil
}

// EmptyTrash permanently deletes every trashed project of the owner using
// set operations over the trashed ids.
func (s *Service) EmptyTrash(ctx context.Context, ownerID string) (*EmptyResult, error) {
	ids, err := s.projects.TrashedIDs(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing trashed projects: %w", err)
	}
	if len(ids) == 0 {
		return &EmptyResult{Deleted: []string{}}, nil
	}
	if err := s.purge(ctx, ownerID, ids); err != nil {
		return nil, err
	}
	s.logger.Info("trash emptied", "owner_id", ownerID, "count", len(ids))
	return &EmptyResult{Deleted: ids}, nil
}

// purge runs the cascade children-first; project rows go last.
func (s *Service) purge(ctx context.Context, ownerID string, ids []string) error {
	steps := []struct {
		name string
		repo CascadeRepository
	}{
		{"replies", s.cascade.Replies},
		{"annotations", s.cascade.Annotations},
		{"files", s.cascade.Files},
		{"members", s.cascade.Members},
		{"invites", s.cascade.Invites},
	}
	for _, step := range steps {
		if step.repo == nil {
			continue
		}
		if err := step.repo.DeleteByProjects(ctx, ids); err != nil {
			return fmt.Errorf("deleting %s: %w", step.name, err)
		}
	}
	if err := s.projects.Delete(ctx, ownerID, ids); err != nil {
		return mapOwnerError("deleting projects", err)
	}
	return nil
}

func mapOwnerError(op string, err error) error {
	if errors.Is(err, repository.ErrNoRowsAffected) {
		return ErrNotAuthorized
	}
	return fmt.Errorf("%s: %w", op, err)
}
