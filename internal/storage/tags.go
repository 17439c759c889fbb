package storage

import (
	"context"
	"fmt"

	"sfinapp/internal/core"
)

func (r *SQLiteRepository) ListTags(ctx context.Context) ([]core.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tags := []core.Tag{}
	for rows.Next() {
		var t core.Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tags: %w", err)
	}
	return tags, nil
}

// CreateTag fails with core.ErrConflict when the name is taken.
func (r *SQLiteRepository) CreateTag(ctx context.Context, t core.Tag) (int64, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO tags (name) VALUES (?)`, t.Name)
	if err != nil {
		return 0, fmt.Errorf("create tag: %w", mapConstraintError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create tag: last insert id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) UpdateTag(ctx context.Context, id int64, t core.Tag) (*core.Tag, error) {
	if err := execAffecting(ctx, r.db, "tag", id, `UPDATE tags SET name = ? WHERE id = ?`, t.Name, id); err != nil {
		return nil, fmt.Errorf("update tag: %w", err)
	}
	return &core.Tag{ID: id, Name: t.Name}, nil
}

// DeleteTag also unlinks the tag from every transaction.
func (r *SQLiteRepository) DeleteTag(ctx context.Context, id int64) error {
	if err := execAffecting(ctx, r.db, "tag", id, `DELETE FROM tags WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete tag: %w", err)
	}
	return nil
}
