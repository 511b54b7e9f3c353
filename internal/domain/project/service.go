package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rpggio/marginalia/internal/repository"
)

// Service handles project operations.
type Service struct {
	repo    Repository
	members MemberRepository
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a new project service.
func NewService(repo Repository, members MemberRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, members: members, logger: logger, now: time.Now}
}

// CreateRequest defines project creation inputs.
type CreateRequest struct {
	ID   string
	Name string
	Mode string
}

// Validate checks the request fields.
func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Mode, validation.Length(0, 40)),
	)
}

// Create creates a new, empty project owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, req CreateRequest) (*Project, error) {
	req.Name = strings.TrimSpace(req.Name)
	if ownerID == "" {
		return nil, ErrInvalidInput
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	id := req.ID
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	mode := req.Mode
	if mode == "" {
		mode = DefaultMode
	}

	now := s.now().UTC()
	proj := &Project{
		ID:        id,
		OwnerID:   ownerID,
		Name:      req.Name,
		Mode:      mode,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, proj); err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}

	s.logger.Info("project created", "project_id", proj.ID, "owner_id", ownerID)
	return proj, nil
}

// Get fetches a project visible to userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*Project, error) {
	proj, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return proj, nil
}

// ListActive returns the caller's selectable projects: owned or shared,
// not trashed, and outside the library namespace.
func (s *Service) ListActive(ctx context.Context, userID string) ([]Summary, error) {
	all, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	active := make([]Summary, 0, len(all))
	for _, sum := range all {
		if sum.DeletedAt != nil || IsLibraryName(sum.Name) {
			continue
		}
		active = append(active, sum)
	}
	return active, nil
}

// ListLibrary returns the caller's non-trashed library projects.
func (s *Service) ListLibrary(ctx context.Context, userID string) ([]Summary, error) {
	all, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	var library []Summary
	for _, sum := range all {
		if sum.DeletedAt == nil && IsLibraryName(sum.Name) {
			library = append(library, sum)
		}
	}
	return library, nil
}

// ListTrash returns the owner's soft-deleted projects.
func (s *Service) ListTrash(ctx context.Context, ownerID string) ([]Summary, error) {
	trashed, err := s.repo.ListTrashed(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing trash: %w", err)
	}
	return trashed, nil
}

// Members returns the explicit members of a project.
func (s *Service) Members(ctx context.Context, projectID string) ([]Member, error) {
	members, err := s.members.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return members, nil
}

// Rename changes the display name of an owned project.
func (s *Service) Rename(ctx context.Context, ownerID, id, name string) error {
	name = strings.TrimSpace(name)
	if err := validation.Validate(name, validation.Required, validation.Length(1, 200)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.repo.Rename(ctx, ownerID, id, name, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return ErrNotOwner
		}
		return fmt.Errorf("renaming project: %w", err)
	}
	return nil
}

// RoleOf returns userID's role on a project visible to them.
func (s *Service) RoleOf(ctx context.Context, userID, id string) (Role, error) {
	proj, err := s.Get(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if proj.OwnerID == userID {
		return RoleOwner, nil
	}
	members, err := s.Members(ctx, id)
	if err != nil {
		return "", err
	}
	for _, m := range members {
		if m.UserID == userID {
			return m.Role, nil
		}
	}
	return "", ErrProjectNotFound
}
