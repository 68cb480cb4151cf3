package postgres

import (
	"context"
	"errors"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/scrumkit/scrumkit/internal/errs"
	"github.com/scrumkit/scrumkit/internal/model"
)

// VoteRepo implements VoteRepository using PostgreSQL.
type VoteRepo struct{ db *DB }

// NewVoteRepo constructs a vote repository.
func NewVoteRepo(db *DB) *VoteRepo { return &VoteRepo{db: db} }

// Upsert records a vote. The (subject_id, participant_id) uniqueness
// constraint turns a revote into an update instead of a duplicate row.
// On conflict the existing row keeps its id, so RETURNING scans the
// canonical id back into v.
func (r *VoteRepo) Upsert(ctx context.Context, v *model.Vote) error {
	const q = `
INSERT INTO votes (id, subject_id, participant_id, value, revealed)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (subject_id, participant_id)
DO UPDATE SET value=EXCLUDED.value, updated_at=now()
RETURNING id`
	return r.db.Pool.QueryRow(ctx, q, v.ID, v.SubjectID, v.ParticipantID, v.Value, v.Revealed).Scan(&v.ID)
}

// ListBySubject returns all votes for an item or story.
func (r *VoteRepo) ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]model.Vote, error) {
	const q = `
SELECT id, subject_id, participant_id, value, revealed, created_at, updated_at
FROM votes WHERE subject_id=$1
ORDER BY created_at ASC`
	rows, err := r.db.Pool.Query(ctx, q, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Vote
	for rows.Next() {
		var v model.Vote
		if err := rows.Scan(&v.ID, &v.SubjectID, &v.ParticipantID, &v.Value, &v.Revealed, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Reveal marks every vote on a subject as revealed.
func (r *VoteRepo) Reveal(ctx context.Context, subjectID uuid.UUID) error {
	const q = `UPDATE votes SET revealed=true, updated_at=now() WHERE subject_id=$1`
	_, err := r.db.Pool.Exec(ctx, q, subjectID)
	return err
}

// Delete removes a participant's vote on a subject and returns the id
// of the removed row, so callers can broadcast the deletion.
func (r *VoteRepo) Delete(ctx context.Context, subjectID uuid.UUID, participantID string) (uuid.UUID, error) {
	const q = `DELETE FROM votes WHERE subject_id=$1 AND participant_id=$2 RETURNING id`
	var id uuid.UUID
	if err := r.db.Pool.QueryRow(ctx, q, subjectID, participantID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, errs.ErrNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}
