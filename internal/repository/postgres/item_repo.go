package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/scrumkit/scrumkit/internal/errs"
	"github.com/scrumkit/scrumkit/internal/model"
)

// ItemRepo implements ItemRepository using PostgreSQL.
type ItemRepo struct{ db *DB }

// NewItemRepo constructs a retro-item repository.
func NewItemRepo(db *DB) *ItemRepo { return &ItemRepo{db: db} }

// Create inserts a new item.
func (r *ItemRepo) Create(ctx context.Context, it *model.RetroItem) error {
	const q = `
INSERT INTO retro_items (id, board_id, col, text, author_name)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.Pool.Exec(ctx, q, it.ID, it.BoardID, it.Column, it.Text, it.AuthorName)
	return err
}

// ListByBoard returns a board's items ordered by creation time.
func (r *ItemRepo) ListByBoard(ctx context.Context, boardID uuid.UUID) ([]model.RetroItem, error) {
	const q = `
SELECT id, board_id, col, text, author_name, created_at, updated_at
FROM retro_items WHERE board_id=$1
ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RetroItem
	for rows.Next() {
		var it model.RetroItem
		if err := rows.Scan(&it.ID, &it.BoardID, &it.Column, &it.Text, &it.AuthorName, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// UpdateText replaces an item's text.
func (r *ItemRepo) UpdateText(ctx context.Context, id uuid.UUID, text string) error {
	const q = `UPDATE retro_items SET text=$2, updated_at=now() WHERE id=$1`
	tag, err := r.db.Pool.Exec(ctx, q, id, text)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes an item.
func (r *ItemRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM retro_items WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// GetItem returns a single item by id.
func (r *ItemRepo) GetItem(ctx context.Context, id uuid.UUID) (*model.RetroItem, error) {
	const q = `
SELECT id, board_id, col, text, author_name, created_at, updated_at
FROM retro_items WHERE id=$1`
	var it model.RetroItem
	row := r.db.Pool.QueryRow(ctx, q, id)
	if err := row.Scan(&it.ID, &it.BoardID, &it.Column, &it.Text, &it.AuthorName, &it.CreatedAt, &it.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &it, nil
}
