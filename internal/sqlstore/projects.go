package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rpggio/marginalia/internal/domain/project"
	"github.com/rpggio/marginalia/internal/repository"
)

// ProjectRepository stores projects and emulates the access policy: an owner
// reads their project in any state, a member only while it is not trashed.
type ProjectRepository struct {
	db *DB
}

// NewProjectRepository creates a new ProjectRepository.
func NewProjectRepository(db *DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = "p.id, p.owner_id, p.name, p.mode, p.blob, p.created_at, p.updated_at, p.deleted_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*project.Project, error) {
	var (
		proj      project.Project
		blob      sql.NullString
		deletedAt sql.NullTime
	)
	if err := row.Scan(&proj.ID, &proj.OwnerID, &proj.Name, &proj.Mode, &blob, &proj.CreatedAt, &proj.UpdatedAt, &deletedAt); err != nil {
		return nil, err
	}
	if blob.Valid && blob.String != "" {
		proj.Blob = json.RawMessage(blob.String)
	}
	proj.CreatedAt, proj.UpdatedAt = proj.CreatedAt.UTC(), proj.UpdatedAt.UTC()
	proj.DeletedAt = timePtr(deletedAt)
	return &proj, nil
}

func blobArg(blob json.RawMessage) any {
	if len(blob) == 0 {
		return nil
	}
	return string(blob)
}

// Create inserts a new project.
func (r *ProjectRepository) Create(ctx context.Context, proj *project.Project) error {
	_, err := r.db.exec(ctx, `
		INSERT INTO projects (id, owner_id, name, mode, blob, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		proj.ID,
		proj.OwnerID,
		proj.Name,
		proj.Mode,
		blobArg(proj.Blob),
		proj.CreatedAt.UTC(),
		proj.UpdatedAt.UTC(),
		nullTime(proj.DeletedAt),
	)
	return mapError("create project", err)
}

// Get returns the project if userID may read it.
func (r *ProjectRepository) Get(ctx context.Context, userID, id string) (*project.Project, error) {
	row, err := r.db.queryRow(ctx, `
		SELECT `+projectColumns+`
		FROM projects p
		WHERE p.id = ?
		  AND (p.owner_id = ?
		       OR (p.deleted_at IS NULL
		           AND EXISTS (SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = ?)))
	`, id, userID, userID)
	if err != nil {
		return nil, err
	}
	proj, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return proj, nil
}

func (r *ProjectRepository) listSummaries(ctx context.Context, query string, args ...any) ([]project.Summary, error) {
	rows, err := r.db.query(ctx, query, args...)
	if err != nil {
		return nil, mapError("list projects", err)
	}
	defer rows.Close()

	var summaries []project.Summary
	for rows.Next() {
		var (
			s         project.Summary
			role      string
			deletedAt sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Name, &s.Mode, &role, &s.UpdatedAt, &deletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project summary: %w", err)
		}
		s.Role = project.Role(role)
		s.UpdatedAt = s.UpdatedAt.UTC()
		s.DeletedAt = timePtr(deletedAt)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}
	return summaries, nil
}

// ListActive returns the non-trashed projects userID owns or is a member of,
// most recently updated first.
func (r *ProjectRepository) ListActive(ctx context.Context, userID string) ([]project.Summary, error) {
	owned, err := r.listSummaries(ctx, `
		SELECT p.id, p.owner_id, p.name, p.mode, 'owner', p.updated_at, p.deleted_at
		FROM projects p
		WHERE p.owner_id = ? AND p.deleted_at IS NULL
	`, userID)
	if err != nil {
		return nil, err
	}
	shared, err := r.listSummaries(ctx, `
		SELECT p.id, p.owner_id, p.name, p.mode, m.role, p.updated_at, p.deleted_at
		FROM projects p
		JOIN project_members m ON m.project_id = p.id
		WHERE m.user_id = ? AND p.owner_id <> ? AND p.deleted_at IS NULL
	`, userID, userID)
	if err != nil {
		return nil, err
	}

	all := append(owned, shared...)
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return all, nil
}

// ListTrashed returns the owner's trashed projects, most recently trashed first.
func (r *ProjectRepository) ListTrashed(ctx context.Context, ownerID string) ([]project.Summary, error) {
	return r.listSummaries(ctx, `
		SELECT p.id, p.owner_id, p.name, p.mode, 'owner', p.updated_at, p.deleted_at
		FROM projects p
		WHERE p.owner_id = ? AND p.deleted_at IS NOT NULL
		ORDER BY p.deleted_at DESC, p.id
	`, ownerID)
}

// TrashedIDs returns the ids of the owner's trashed projects.
func (r *ProjectRepository) TrashedIDs(ctx context.Context, ownerID string) ([]string, error) {
	rows, err := r.db.query(ctx, `SELECT id FROM projects WHERE owner_id = ? AND deleted_at IS NOT NULL ORDER BY id`, ownerID)
	if err != nil {
		return nil, mapError("list trashed projects", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}
	return ids, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNoRowsAffected
	}
	return nil
}

// Rename changes the name of an owned project.
func (r *ProjectRepository) Rename(ctx context.Context, ownerID, id, name string, at time.Time) error {
	res, err := r.db.exec(ctx, `UPDATE projects SET name = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		name, at.UTC(), id, ownerID)
	if err != nil {
		return mapError("rename project", err)
	}
	return requireAffected(res)
}

// UpdateMeta writes the session blob and bumps updated_at. The owner may
// always write; an editor member only while the project is not trashed.
func (r *ProjectRepository) UpdateMeta(ctx context.Context, userID, id string, blob json.RawMessage, at time.Time) error {
	res, err := r.db.exec(ctx, `
		UPDATE projects
		SET blob = ?, updated_at = ?
		WHERE id = ?
		  AND (owner_id = ?
		       OR (deleted_at IS NULL
		           AND EXISTS (SELECT 1 FROM project_members m
		                       WHERE m.project_id = projects.id AND m.user_id = ? AND m.role = 'editor')))
	`, blobArg(blob), at.UTC(), id, userID, userID)
	if err != nil {
		return mapError("update project", err)
	}
	return requireAffected(res)
}

// SetDeletedAt sets (or with nil clears) deleted_at on the owner's projects.
func (r *ProjectRepository) SetDeletedAt(ctx context.Context, ownerID string, ids []string, at *time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{nullTime(at), ownerID}, stringArgs(ids)...)
	res, err := r.db.exec(ctx,
		`UPDATE projects SET deleted_at = ? WHERE owner_id = ? AND id IN (`+placeholders(len(ids))+`)`,
		args...)
	if err != nil {
		return mapError("update project", err)
	}
	return requireAffected(res)
}

// Delete removes the owner's projects. Dependent rows must already be gone.
func (r *ProjectRepository) Delete(ctx context.Context, ownerID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var deleted int64
	for _, batch := range chunk(ids, batchRows) {
		args := append([]any{ownerID}, stringArgs(batch)...)
		res, err := r.db.exec(ctx,
			`DELETE FROM projects WHERE owner_id = ? AND id IN (`+placeholders(len(batch))+`)`,
			args...)
		if err != nil {
			return mapError("delete project", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		deleted += n
	}
	if deleted == 0 {
		return repository.ErrNoRowsAffected
	}
	return nil
}
