package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/scrumkit/scrumkit/internal/anon"
	"github.com/scrumkit/scrumkit/internal/errs"
	"github.com/scrumkit/scrumkit/internal/model"
)

// AssetRepo implements AssetRepository using PostgreSQL.
type AssetRepo struct{ db *DB }

// NewAssetRepo constructs an asset repository.
func NewAssetRepo(db *DB) *AssetRepo { return &AssetRepo{db: db} }

func tableFor(typ model.AssetType) (string, error) {
	cfg, ok := anon.ConfigFor(typ)
	if !ok {
		return "", fmt.Errorf("unknown asset type %q", typ)
	}
	return cfg.TableName, nil
}

// Create inserts a new asset row.
func (r *AssetRepo) Create(ctx context.Context, a *model.Asset) error {
	table, err := tableFor(a.Type)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`
INSERT INTO %s (id, title, owner_id, is_anonymous, status, unique_url)
VALUES ($1, $2, $3, $4, $5, $6)`, table)
	_, err = r.db.Pool.Exec(ctx, q, a.ID, a.Title, a.OwnerID, a.IsAnonymous, a.Status, a.UniqueURL)
	if isUniqueViolation(err) {
		return errs.ErrAlreadyExists
	}
	return err
}

// GetByURL loads an asset by its public slug.
func (r *AssetRepo) GetByURL(ctx context.Context, typ model.AssetType, uniqueURL string) (*model.Asset, error) {
	table, err := tableFor(typ)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
SELECT id, title, owner_id, is_anonymous, status, unique_url, created_at, updated_at
FROM %s WHERE unique_url=$1`, table)
	a := model.Asset{Type: typ}
	row := r.db.Pool.QueryRow(ctx, q, uniqueURL)
	if err := row.Scan(&a.ID, &a.Title, &a.OwnerID, &a.IsAnonymous, &a.Status, &a.UniqueURL, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// ListByOwner returns the non-archived assets owned by a user, newest first.
func (r *AssetRepo) ListByOwner(ctx context.Context, typ model.AssetType, ownerID uuid.UUID) ([]model.Asset, error) {
	table, err := tableFor(typ)
	if err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
SELECT id, title, owner_id, is_anonymous, status, unique_url, created_at, updated_at
FROM %s WHERE owner_id=$1 AND status<>'archived'
ORDER BY created_at DESC`, table)
	rows, err := r.db.Pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Asset
	for rows.Next() {
		a := model.Asset{Type: typ}
		if err := rows.Scan(&a.ID, &a.Title, &a.OwnerID, &a.IsAnonymous, &a.Status, &a.UniqueURL, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ClaimAssets performs the dual-validated ownership transfer inside one
// transaction: fetch the rows whose ID is in the client-supplied set AND
// whose slug is in the cookie-trusted set AND which are still anonymous, then
// update exactly those row IDs. Rows claimed or deleted between read and
// write are excluded rather than silently reclaimed.
func (r *AssetRepo) ClaimAssets(
	ctx context.Context, cfg anon.Config, userID uuid.UUID, ids []uuid.UUID, trustedSlugs []string,
) (n int, err error) {
	if len(ids) == 0 || len(trustedSlugs) == 0 {
		return 0, nil
	}
	tx, err := r.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	sel := fmt.Sprintf(`
SELECT %s FROM %s
WHERE %s = ANY($1) AND unique_url = ANY($2) AND %s = true
FOR UPDATE`, cfg.IDColumn, cfg.TableName, cfg.IDColumn, cfg.AnonymousColumn)

	rows, err := tx.Query(ctx, sel, ids, trustedSlugs)
	if err != nil {
		return 0, err
	}
	var matched []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err = rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		matched = append(matched, id)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return 0, err
	}
	if len(matched) == 0 {
		return 0, nil
	}

	upd := fmt.Sprintf(`
UPDATE %s SET %s=$1, %s=false, updated_at=now()
WHERE %s = ANY($2)`, cfg.TableName, cfg.OwnerColumn, cfg.AnonymousColumn, cfg.IDColumn)

	tag, err := tx.Exec(ctx, upd, userID, matched)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Delete removes an asset row.
func (r *AssetRepo) Delete(ctx context.Context, typ model.AssetType, id uuid.UUID) error {
	table, err := tableFor(typ)
	if err != nil {
		return err
	}
	tag, err := r.db.Pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, table), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// SetStatus updates the lifecycle status.
func (r *AssetRepo) SetStatus(ctx context.Context, typ model.AssetType, id uuid.UUID, status model.AssetStatus) error {
	table, err := tableFor(typ)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`UPDATE %s SET status=$2, updated_at=now() WHERE id=$1`, table)
	tag, err := r.db.Pool.Exec(ctx, q, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
