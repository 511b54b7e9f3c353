package sqlstore

import (
	"context"
	"fmt"

	"github.com/rpggio/marginalia/internal/domain/project"
)

// MemberRepository stores project memberships.
type MemberRepository struct {
	db *DB
}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository(db *DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// Insert adds a membership. A second row for the same (project, user)
// fails with repository.ErrDuplicate.
func (r *MemberRepository) Insert(ctx context.Context, m *project.Member) error {
	_, err := r.db.exec(ctx, `
		INSERT INTO project_members (project_id, user_id, role, created_at)
		VALUES (?, ?, ?, ?)
	`, m.ProjectID, m.UserID, string(m.Role), m.CreatedAt.UTC())
	return mapError("insert member", err)
}

// Exists reports whether userID is a member of projectID.
func (r *MemberRepository) Exists(ctx context.Context, projectID, userID string) (bool, error) {
	row, err := r.db.queryRow(ctx, `SELECT COUNT(*) FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return false, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return n > 0, nil
}

// ListByProject returns a project's members in join order.
func (r *MemberRepository) ListByProject(ctx context.Context, projectID string) ([]project.Member, error) {
	rows, err := r.db.query(ctx, `
		SELECT project_id, user_id, role, created_at
		FROM project_members
		WHERE project_id = ?
		ORDER BY created_at, user_id
	`, projectID)
	if err != nil {
		return nil, mapError("list members", err)
	}
	defer rows.Close()

	var members []project.Member
	for rows.Next() {
		var (
			m    project.Member
			role string
		)
		if err := rows.Scan(&m.ProjectID, &m.UserID, &role, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Role = project.Role(role)
		m.CreatedAt = m.CreatedAt.UTC()
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member rows: %w", err)
	}
	return members, nil
}

// Delete removes one membership. Removing a missing row is not an error.
func (r *MemberRepository) Delete(ctx context.Context, projectID, userID string) error {
	_, err := r.db.exec(ctx, `DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	return mapError("delete member", err)
}

// DeleteByProjects removes every membership of the given projects.
func (r *MemberRepository) DeleteByProjects(ctx context.Context, projectIDs []string) error {
	for _, batch := range chunk(projectIDs, batchRows) {
		query := `DELETE FROM project_members WHERE project_id IN (` + placeholders(len(batch)) + `)`
		if _, err := r.db.exec(ctx, query, stringArgs(batch)...); err != nil {
			return mapError("delete members", err)
		}
	}
	return nil
}
