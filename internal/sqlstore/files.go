package sqlstore

import (
	"context"
	"fmt"

	"github.com/rpggio/marginalia/internal/domain/document"
)

// FileRepository stores code files.
type FileRepository struct {
	c collection
}

// NewFileRepository creates a new FileRepository.
func NewFileRepository(db *DB) *FileRepository {
	return &FileRepository{c: collection{
		db:    db,
		table: "code_files",
		columns: []string{
			"id", "project_id", "filename", "language", "content", "display_order", "created_at", "updated_at",
		},
	}}
}

func fileRows(files []document.CodeFile) [][]any {
	rows := make([][]any, len(files))
	for i, f := range files {
		rows[i] = []any{f.ID, f.ProjectID, f.Filename, f.Language, f.Content, f.DisplayOrder, f.CreatedAt.UTC(), f.UpdatedAt.UTC()}
	}
	return rows
}

// Upsert writes files, overwriting existing ids.
func (r *FileRepository) Upsert(ctx context.Context, files []document.CodeFile) error {
	return r.c.write(ctx, fileRows(files), true)
}

// Insert writes new files.
func (r *FileRepository) Insert(ctx context.Context, files []document.CodeFile) error {
	return r.c.write(ctx, fileRows(files), false)
}

// ListByProject returns a project's files in display order.
func (r *FileRepository) ListByProject(ctx context.Context, projectID string) ([]document.CodeFile, error) {
	rows, err := r.c.db.query(ctx, `
		SELECT id, project_id, filename, language, content, display_order, created_at, updated_at
		FROM code_files
		WHERE project_id = ?
		ORDER BY display_order, id
	`, projectID)
	if err != nil {
		return nil, mapError("list files", err)
	}
	defer rows.Close()

	var files []document.CodeFile
	for rows.Next() {
		var f document.CodeFile
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Filename, &f.Language, &f.Content, &f.DisplayOrder, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		f.CreatedAt, f.UpdatedAt = f.CreatedAt.UTC(), f.UpdatedAt.UTC()
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating file rows: %w", err)
	}
	return files, nil
}

// ListIDs returns the ids of a project's files.
func (r *FileRepository) ListIDs(ctx context.Context, projectID string) ([]string, error) {
	return r.c.ids(ctx, projectID)
}

// DeleteByIDs deletes files by id.
func (r *FileRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	return r.c.deleteWhereIn(ctx, "id", ids)
}

// DeleteByProjects deletes every file of the given projects.
func (r *FileRepository) DeleteByProjects(ctx context.Context, projectIDs []string) error {
	return r.c.deleteWhereIn(ctx, "project_id", projectIDs)
}
