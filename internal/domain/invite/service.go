package invite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/marginalia/internal/domain/project"
	"github.com/rpggio/marginalia/internal/repository"
)

// DefaultTTL is how long an invite stays valid when no TTL is given.
const DefaultTTL = 7 * 24 * time.Hour

// Service creates invites and admits users who present them.
type Service struct {
	projects   ProjectRepository
	members    MemberRepository
	invites    InviteRepository
	refresher  ListingRefresher
	defaultTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a new invite service. refresher may be nil.
func NewService(projects ProjectRepository, members MemberRepository, invites InviteRepository, refresher ListingRefresher, defaultTTL time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Service{
		projects:   projects,
		members:    members,
		invites:    invites,
		refresher:  refresher,
		defaultTTL: defaultTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateLink issues an invite for projectID. Only the owner may invite.
func (s *Service) CreateLink(ctx context.Context, ownerID, projectID string, role project.Role, ttl time.Duration) (*Link, error) {
	if role == "" {
		role = project.RoleEditor
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	proj, err := s.projects.Get(ctx, ownerID, projectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}
	if proj.OwnerID != ownerID {
		return nil, ErrNotOwner
	}

	now := s.now().UTC()
	inv := &project.Invite{
		Token:     uuid.NewString(),
		ProjectID: projectID,
		Role:      role,
		CreatedBy: ownerID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.invites.Insert(ctx, inv); err != nil {
		return nil, fmt.Errorf("creating invite: %w", err)
	}

	s.logger.Info("invite created", "project_id", projectID, "role", role, "expires_at", inv.ExpiresAt)
	return &Link{
		Token:     inv.Token,
		Path:      PathFor(inv.Token),
		ProjectID: projectID,
		Role:      role,
		ExpiresAt: inv.ExpiresAt,
	}, nil
}

// JoinByToken admits userID to the project behind token. Joining is
// idempotent: an existing membership, or a concurrent join racing on the
// unique (project, user) key, is treated as success.
func (s *Service) JoinByToken(ctx context.Context, token, userID string) (*project.Project, error) {
	if uuid.Validate(token) != nil {
		return nil, ErrInviteInvalid
	}

	inv, err := s.invites.GetValid(ctx, token, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInviteInvalid
		}
		return nil, fmt.Errorf("looking up invite: %w", err)
	}

	var joined bool
	if inv.CreatedBy != userID {
		joined, err = s.ensureMember(ctx, inv, userID)
		if err != nil {
			return nil, err
		}
	}

	proj, err := s.projects.Get(ctx, userID, inv.ProjectID)
	if err != nil {
		if joined {
			// Trashed projects hide from members; take back the row just added.
			s.revokeMember(ctx, inv.ProjectID, userID)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("getting project: %w", err)
	}

	if s.refresher != nil {
		s.refresher.RefreshListing(ctx, userID)
	}
	s.logger.Info("project joined", "project_id", proj.ID, "user_id", userID)
	return proj, nil
}

// ensureMember adds userID to the invite's project and reports whether this
// call inserted the row.
func (s *Service) ensureMember(ctx context.Context, inv *project.Invite, userID string) (bool, error) {
	exists, err := s.members.Exists(ctx, inv.ProjectID, userID)
	if err != nil {
		return false, fmt.Errorf("checking membership: %w", err)
	}
	if exists {
		return false, nil
	}
	err = s.members.Insert(ctx, &project.Member{
		ProjectID: inv.ProjectID,
		UserID:    userID,
		Role:      inv.Role,
		CreatedAt: s.now().UTC(),
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrDuplicate):
		return false, nil
	case errors.Is(err, repository.ErrForeignKeyViolation):
		return false, ErrProjectNotFound
	default:
		return false, fmt.Errorf("adding member: %w", err)
	}
}

func (s *Service) revokeMember(ctx context.Context, projectID, userID string) {
	if err := s.members.Delete(context.WithoutCancel(ctx), projectID, userID); err != nil {
		s.logger.Error("removing membership of unavailable project failed", "project_id", projectID, "user_id", userID, "error", err)
		return
	}
	s.logger.Info("membership of unavailable project removed", "project_id", projectID, "user_id", userID)
}
