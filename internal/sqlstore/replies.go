package sqlstore

import (
	"context"
	"fmt"

	"github.com/rpggio/marginalia/internal/domain/document"
)

// ReplyRepository stores annotation replies.
type ReplyRepository struct {
	c collection
}

// NewReplyRepository creates a new ReplyRepository.
func NewReplyRepository(db *DB) *ReplyRepository {
	return &ReplyRepository{c: collection{
		db:    db,
		table: "annotation_replies",
		columns: []string{
			"id", "project_id", "annotation_id", "author_id", "author_initials", "author_color", "body", "created_at",
		},
	}}
}

func replyRows(replies []document.Reply) [][]any {
	rows := make([][]any, len(replies))
	for i, r := range replies {
		rows[i] = []any{r.ID, r.ProjectID, r.AnnotationID, r.AuthorID, r.AuthorInitials, r.AuthorColor, r.Body, r.CreatedAt.UTC()}
	}
	return rows
}

// Upsert writes replies, overwriting existing ids.
func (r *ReplyRepository) Upsert(ctx context.Context, replies []document.Reply) error {
	return r.c.write(ctx, replyRows(replies), true)
}

// Insert writes new replies.
func (r *ReplyRepository) Insert(ctx context.Context, replies []document.Reply) error {
	return r.c.write(ctx, replyRows(replies), false)
}

// ListByProject returns a project's replies in creation order.
func (r *ReplyRepository) ListByProject(ctx context.Context, projectID string) ([]document.Reply, error) {
	rows, err := r.c.db.query(ctx, `
		SELECT id, project_id, annotation_id, author_id, author_initials, author_color, body, created_at
		FROM annotation_replies
		WHERE project_id = ?
		ORDER BY created_at, id
	`, projectID)
	if err != nil {
		return nil, mapError("list replies", err)
	}
	defer rows.Close()

	var replies []document.Reply
	for rows.Next() {
		var rep document.Reply
		if err := rows.Scan(&rep.ID, &rep.ProjectID, &rep.AnnotationID, &rep.AuthorID, &rep.AuthorInitials, &rep.AuthorColor, &rep.Body, &rep.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reply: %w", err)
		}
		rep.CreatedAt = rep.CreatedAt.UTC()
		replies = append(replies, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reply rows: %w", err)
	}
	return replies, nil
}

// ListIDs returns the ids of a project's replies.
func (r *ReplyRepository) ListIDs(ctx context.Context, projectID string) ([]string, error) {
	return r.c.ids(ctx, projectID)
}

// DeleteByIDs deletes replies by id.
func (r *ReplyRepository) DeleteByIDs(ctx context.Context, ids []string) error {
	return r.c.deleteWhereIn(ctx, "id", ids)
}

// DeleteByProjects deletes every reply of the given projects.
func (r *ReplyRepository) DeleteByProjects(ctx context.Context, projectIDs []string) error {
	return r.c.deleteWhereIn(ctx, "project_id", projectIDs)
}
