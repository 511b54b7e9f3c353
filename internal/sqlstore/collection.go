package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpggio/marginalia/internal/repository"
)

// batchRows bounds the rows written per statement so a bulk write stays
// under the placeholder limits of both dialects.
const batchRows = 200

// collection describes a document table keyed by id and scoped by
// project_id. Upserts and bulk deletes of all document tables share it.
type collection struct {
	db      *DB
	table   string
	columns []string
}

// write inserts rows in batches. With upsert set, an existing id of the same
// project is overwritten with the incoming values; ids held by another
// project are left alone and reported as a *repository.ForeignRowsError.
func (c collection) write(ctx context.Context, rows [][]any, upsert bool) error {
	if len(rows) == 0 {
		return nil
	}
	op := "insert " + c.table
	if upsert {
		op = "upsert " + c.table
	}
	rowPlaceholder := "(" + placeholders(len(c.columns)) + ")"

	var foreign []string
	for _, batch := range chunk(rows, batchRows) {
		var b strings.Builder
		fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", c.table, strings.Join(c.columns, ", "))
		args := make([]any, 0, len(batch)*len(c.columns))
		for i, row := range batch {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(rowPlaceholder)
			args = append(args, row...)
		}
		if upsert {
			b.WriteString(" ON CONFLICT (id) DO UPDATE SET ")
			first := true
			for _, col := range c.columns {
				if col == "id" || col == "created_at" {
					continue
				}
				if !first {
					b.WriteString(", ")
				}
				first = false
				fmt.Fprintf(&b, "%s = excluded.%s", col, col)
			}
			fmt.Fprintf(&b, " WHERE %s.project_id = excluded.project_id", c.table)
		}
		res, err := c.db.exec(ctx, b.String(), args...)
		if err != nil {
			return mapError(op, err)
		}
		if !upsert {
			continue
		}
		if n, err := res.RowsAffected(); err == nil && n >= int64(len(batch)) {
			continue
		}
		ids, err := c.foreignIDs(ctx, batch)
		if err != nil {
			return err
		}
		foreign = append(foreign, ids...)
	}
	if len(foreign) > 0 {
		return &repository.ForeignRowsError{Table: c.table, IDs: foreign}
	}
	return nil
}

// foreignIDs returns the ids in batch stored under a different project than
// the one the row names. Rows are laid out as (id, project_id, ...).
func (c collection) foreignIDs(ctx context.Context, batch [][]any) ([]string, error) {
	want := make(map[string]any, len(batch))
	args := make([]any, len(batch))
	for i, row := range batch {
		want[row[0].(string)] = row[1]
		args[i] = row[0]
	}
	query := fmt.Sprintf("SELECT id, project_id FROM %s WHERE id IN (%s)", c.table, placeholders(len(batch)))
	rows, err := c.db.query(ctx, query, args...)
	if err != nil {
		return nil, mapError("check "+c.table+" ownership", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, projectID string
		if err := rows.Scan(&id, &projectID); err != nil {
			return nil, fmt.Errorf("failed to scan %s ownership: %w", c.table, err)
		}
		if want[id] != projectID {
			ids = append(ids, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s ownership: %w", c.table, err)
	}
	return ids, nil
}

// ids returns the ids currently stored for a project.
func (c collection) ids(ctx context.Context, projectID string) ([]string, error) {
	rows, err := c.db.query(ctx, "SELECT id FROM "+c.table+" WHERE project_id = ?", projectID)
	if err != nil {
		return nil, mapError("list "+c.table+" ids", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s id: %w", c.table, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s ids: %w", c.table, err)
	}
	return ids, nil
}

// deleteWhereIn deletes rows whose column value is in values.
func (c collection) deleteWhereIn(ctx context.Context, column string, values []string) error {
	for _, batch := range chunk(values, batchRows) {
		query := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)", c.table, column, placeholders(len(batch)))
		if _, err := c.db.exec(ctx, query, stringArgs(batch)...); err != nil {
			return mapError("delete "+c.table, err)
		}
	}
	return nil
}
