package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/scrumkit/scrumkit/internal/anon"
	"github.com/scrumkit/scrumkit/internal/errs"
	"github.com/scrumkit/scrumkit/internal/model"
	"github.com/stretchr/testify/require"
)

var (
	pgUniqueErr = pgconn.PgError{Code: "23505"}
	errNoRows   = pgx.ErrNoRows
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func retroCfg(t *testing.T) anon.Config {
	t.Helper()
	cfg, ok := anon.ConfigFor(model.AssetRetrospective)
	require.True(t, ok)
	return cfg
}

func TestAssetRepo_ClaimAssets_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssetRepo(db)

	userID := uuid.Must(uuid.NewV4())
	id1 := uuid.Must(uuid.NewV4())
	id2 := uuid.Must(uuid.NewV4())
	ids := []uuid.UUID{id1, id2}
	slugs := []string{"slugA", "slugB"}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM retrospectives\s+WHERE id = ANY\(\$1\) AND unique_url = ANY\(\$2\) AND is_anonymous = true\s+FOR UPDATE`).
		WithArgs(ids, slugs).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id1).AddRow(id2))
	mock.ExpectExec(`UPDATE retrospectives SET owner_id=\$1, is_anonymous=false, updated_at=now\(\)\s+WHERE id = ANY\(\$2\)`).
		WithArgs(userID, []uuid.UUID{id1, id2}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	n, err := r.ClaimAssets(context.Background(), retroCfg(t), userID, ids, slugs)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestAssetRepo_ClaimAssets_OnlyIntersectionUpdated(t *testing.T) {
	// Adversarial case: the client submits two IDs, but only one row also has
	// a cookie-trusted slug and is still anonymous. The update must target
	// exactly the matched row, never the full candidate set.
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssetRepo(db)

	userID := uuid.Must(uuid.NewV4())
	owned := uuid.Must(uuid.NewV4())
	foreign := uuid.Must(uuid.NewV4())
	ids := []uuid.UUID{owned, foreign}
	slugs := []string{"mine"}

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(ids, slugs).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(owned))
	mock.ExpectExec(`UPDATE retrospectives`).
		WithArgs(userID, []uuid.UUID{owned}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	n, err := r.ClaimAssets(context.Background(), retroCfg(t), userID, ids, slugs)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestAssetRepo_ClaimAssets_NoMatches(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssetRepo(db)

	userID := uuid.Must(uuid.NewV4())
	ids := []uuid.UUID{uuid.Must(uuid.NewV4())}
	slugs := []string{"s"}

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(ids, slugs).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	n, err := r.ClaimAssets(context.Background(), retroCfg(t), userID, ids, slugs)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestAssetRepo_ClaimAssets_EmptyInputsSkipDB(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssetRepo(db)

	userID := uuid.Must(uuid.NewV4())

	n, err := r.ClaimAssets(context.Background(), retroCfg(t), userID, nil, []string{"s"})
	require.NoError(t, err)
	require.Zero(t, n)

	n, err = r.ClaimAssets(context.Background(), retroCfg(t), userID, []uuid.UUID{uuid.Must(uuid.NewV4())}, nil)
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAssetRepo_ClaimAssets_SelectErrorRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssetRepo(db)

	userID := uuid.Must(uuid.NewV4())
	ids := []uuid.UUID{uuid.Must(uuid.NewV4())}

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(ids, []string{"s"}).
		WillReturnError(errors.New("db boom"))
	mock.ExpectRollback()

	_, err := r.ClaimAssets(context.Background(), retroCfg(t), userID, ids, []string{"s"})
	require.Error(t, err)
}

func TestAssetRepo_ClaimAssets_UpdateErrorRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssetRepo(db)

	userID := uuid.Must(uuid.NewV4())
	id := uuid.Must(uuid.NewV4())
	ids := []uuid.UUID{id}

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(ids, []string{"s"}).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectExec(`UPDATE retrospectives`).
		WithArgs(userID, []uuid.UUID{id}).
		WillReturnError(errors.New("update boom"))
	mock.ExpectRollback()

	_, err := r.ClaimAssets(context.Background(), retroCfg(t), userID, ids, []string{"s"})
	require.Error(t, err)
}

func TestAssetRepo_Create_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssetRepo(db)

	a := &model.Asset{
		ID:          uuid.Must(uuid.NewV4()),
		Type:        model.AssetRetrospective,
		Title:       "Sprint 12",
		IsAnonymous: true,
		Status:      model.StatusActive,
		UniqueURL:   "abc123",
	}
	mock.ExpectExec(`INSERT INTO retrospectives`).
		WithArgs(a.ID, a.Title, a.OwnerID, a.IsAnonymous, a.Status, a.UniqueURL).
		WillReturnError(&pgUniqueErr)

	err := r.Create(context.Background(), a)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestAssetRepo_GetByURL_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssetRepo(db)

	mock.ExpectQuery(`FROM retrospectives WHERE unique_url=\$1`).
		WithArgs("missing").
		WillReturnError(errNoRows)

	_, err := r.GetByURL(context.Background(), model.AssetRetrospective, "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAssetRepo_GetByURL_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAssetRepo(db)

	id := uuid.Must(uuid.NewV4())
	now := time.Now()
	mock.ExpectQuery(`FROM retrospectives WHERE unique_url=\$1`).
		WithArgs("abc123").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "title", "owner_id", "is_anonymous", "status", "unique_url", "created_at", "updated_at",
		}).AddRow(id, "Sprint 12", (*uuid.UUID)(nil), true, model.StatusActive, "abc123", now, now))

	a, err := r.GetByURL(context.Background(), model.AssetRetrospective, "abc123")
	require.NoError(t, err)
	require.Equal(t, id, a.ID)
	require.True(t, a.IsAnonymous)
	require.Nil(t, a.OwnerID)
	require.Equal(t, model.AssetRetrospective, a.Type)
}
