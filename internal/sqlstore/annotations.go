package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rpggio/marginalia/internal/domain/document"
)

// AnnotationRepository stores annotations. Replies live in their own table.
type AnnotationRepository struct {
	c collection
}

// NewAnnotationRepository creates a new AnnotationRepository.
func NewAnnotationRepository(db *DB) *AnnotationRepository {
	return &AnnotationRepository{c: collection{
		db:    db,
		table: "annotations",
		columns: []string{
			"id", "project_id", "file_id", "author_id", "line", "end_line", "line_text", "category", "body", "created_at", "updated_at",
		},
	}}
}

func annotationRows(annotations []document.Annotation) [][]any {
	rows := make([][]any, len(annotations))
	for i, a := range annotations {
		var endLine any
		if a.EndLine != nil {
			endLine = *a.EndLine
		}
		rows[i] = []any{
			a.ID, a.ProjectID, a.FileID, a.AuthorID, a.Line, endLine, a.LineText, string(a.Category), a.Body,
			a.CreatedAt.UTC(), a.UpdatedAt.UTC(),
		}
	}
	return rows
}

// Upsert writes annotations, overwriting existing ids.
func (r *AnnotationRepository) Upsert(ctx context.Context, annotations []document.Annotation) error {
	return r.c.write(ctx, annotationRows(annotations), true)
}

// Insert writes new annotations.
func (r *AnnotationRepository) Insert(ctx context.Context, annotations []document.Annotation) error {
	return r.c.write(ctx, annotationRows(annotations), false)
}

// ListByProject returns a project's annotations ordered by file and line.
func (r *AnnotationRepository) ListByProject(ctx context.Context, projectID string) ([]document.Annotation, error) {
	rows, err := r.c.db.query(ctx, `
		SELECT id, project_id, file_id, author_id, line, end_line, line_text, category, body, created_at, updated_at
		FROM annotations
		WHERE project_id = ?
		ORDER BY file_id, line, id
	`, projectID)
	if err != nil {
		return nil, mapError("list annotations", err)
	}
	defer rows.Close()

	var annotations []document.Annotation
	for rows.Next() {
		var (
			a        document.Annotation
			endLine  sql.NullInt64
			category string
		)
		err := rows.Scan(&a.ID, &a.ProjectID, &a.FileID, &a.AuthorID, &a.Line, &endLine, &a.LineText, &category, &a.Body, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan annotation: %w", err)
		}
		if endLine.Valid {
			end := int(endLine.Int64)
			a.EndLine = &end
		}
		a.Category = document.Category(category)
		a.CreatedAt, a.UpdatedAt = a.CreatedAt.UTC(), a.UpdatedAt.UTC()
		annotations = append(annotations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating annotation rows: %w", err)
	}
	return annotations, nil
}

// ListIDs returns the ids of a project's annotations.
func (r *AnnotationRepository) ListIDs(ctx context.Context, projectID string) ([]string, error) {
	return r.c.ids(ctx, projectID)
}

// DeleteByIDs deletes annotations by id.
func (r *AnnotationRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	return r.c.deleteWhereIn(ctx, "id", ids)
}

// DeleteByProjects deletes every annotation of the given projects.
func (r *AnnotationRepository) DeleteByProjects(ctx context.Context, projectIDs []string) error {
	return r.c.deleteWhereIn(ctx, "project_id", projectIDs)
}
