package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rpggio/marginalia/internal/domain/project"
	"github.com/rpggio/marginalia/internal/repository"
)

// InviteRepository stores invite tokens.
type InviteRepository struct {
	db *DB
}

// NewInviteRepository creates a new InviteRepository.
func NewInviteRepository(db *DB) *InviteRepository {
	return &InviteRepository{db: db}
}

// Insert stores a new invite.
func (r *InviteRepository) Insert(ctx context.Context, inv *project.Invite) error {
	_, err := r.db.exec(ctx, `
		INSERT INTO project_invites (token, project_id, role, created_by, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, inv.Token, inv.ProjectID, string(inv.Role), inv.CreatedBy, inv.ExpiresAt.UTC(), inv.CreatedAt.UTC())
	return mapError("insert invite", err)
}

// GetValid returns the invite for token if it expires after now.
func (r *InviteRepository) GetValid(ctx context.Context, token string, now time.Time) (*project.Invite, error) {
	row, err := r.db.queryRow(ctx, `
		SELECT token, project_id, role, created_by, expires_at, created_at
		FROM project_invites
		WHERE token = ? AND expires_at > ?
	`, token, now.UTC())
	if err != nil {
		return nil, err
	}

	var (
		inv  project.Invite
		role string
	)
	err = row.Scan(&inv.Token, &inv.ProjectID, &role, &inv.CreatedBy, &inv.ExpiresAt, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	inv.Role = project.Role(role)
	inv.ExpiresAt, inv.CreatedAt = inv.ExpiresAt.UTC(), inv.CreatedAt.UTC()
	return &inv, nil
}

// DeleteByProjects removes every invite of the given projects.
func (r *InviteRepository) DeleteByProjects(ctx context.Context, projectIDs []string) error {
	for _, batch := range chunk(projectIDs, batchRows) {
		query := `DELETE FROM project_invites WHERE project_id IN (` + placeholders(len(batch)) + `)`
		if _, err := r.db.exec(ctx, query, stringArgs(batch)...); err != nil {
			return mapError("delete invites", err)
		}
	}
	return nil
}
