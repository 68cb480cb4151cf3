package service

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/scrumkit/scrumkit/internal/errs"
	"github.com/scrumkit/scrumkit/internal/limiter"
	"github.com/scrumkit/scrumkit/internal/model"
	"github.com/scrumkit/scrumkit/internal/repository"
	"github.com/scrumkit/scrumkit/internal/sanitize"
)

const (
	maxItemLen  = 500
	maxValueLen = 10

	itemLimit  = 10
	itemWindow = time.Minute
	voteLimit  = 30
	voteWindow = time.Minute
)

// ContentService manages retro items and votes, gating writes through the
// sanitizer and the per-actor action limiter, and publishing a row-change
// event for every successful write.
type ContentService interface {
	AddItem(ctx context.Context, boardID uuid.UUID, column, text, authorName, actorID string) (*model.RetroItem, error)
	UpdateItem(ctx context.Context, boardID, itemID uuid.UUID, text string) (*model.RetroItem, error)
	DeleteItem(ctx context.Context, boardID, itemID uuid.UUID, actorID string) error
	ListItems(ctx context.Context, boardID uuid.UUID) ([]model.RetroItem, error)

	CastVote(ctx context.Context, boardID, subjectID uuid.UUID, participantID, value string) (*model.Vote, error)
	RetractVote(ctx context.Context, boardID, subjectID uuid.UUID, participantID string) error
	RevealVotes(ctx context.Context, boardID, subjectID uuid.UUID) error
	ListVotes(ctx context.Context, subjectID uuid.UUID) ([]model.Vote, error)
}

type ContentServiceImpl struct {
	items   repository.ItemRepository
	votes   repository.VoteRepository
	actions *limiter.Window
	pub     Publisher
	logger  *zap.Logger
}

// NewContentService constructs ContentService.
func NewContentService(
	items repository.ItemRepository, votes repository.VoteRepository,
	actions *limiter.Window, pub Publisher, logger *zap.Logger,
) *ContentServiceImpl {
	return &ContentServiceImpl{items: items, votes: votes, actions: actions, pub: pub, logger: logger}
}

// AddItem sanitizes text, applies the item creation limit, stores, publishes.
func (s *ContentServiceImpl) AddItem(
	ctx context.Context, boardID uuid.UUID, column, text, authorName, actorID string,
) (*model.RetroItem, error) {
	text = sanitize.UserInput(text, maxItemLen)
	if text == "" || boardID == uuid.Nil {
		return nil, errors.New("validation: empty text/boardID")
	}
	if !s.actions.Allow("item:"+actorID, itemLimit, itemWindow) {
		return nil, errs.ErrRateLimited
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	it := &model.RetroItem{
		ID:         id,
		BoardID:    boardID,
		Column:     column,
		Text:       text,
		AuthorName: sanitize.UserInput(authorName, maxTitleLen),
	}
	if err := s.items.Create(ctx, it); err != nil {
		return nil, err
	}
	s.publish(ctx, boardID, model.RowChange{
		Table: "retro_items", Kind: model.ChangeInsert, RowID: it.ID.String(), Row: itemRow(it),
	})
	return it, nil
}

// UpdateItem replaces an item's text and publishes the update.
func (s *ContentServiceImpl) UpdateItem(ctx context.Context, boardID, itemID uuid.UUID, text string) (*model.RetroItem, error) {
	text = sanitize.UserInput(text, maxItemLen)
	if text == "" || itemID == uuid.Nil {
		return nil, errors.New("validation: empty text/itemID")
	}
	if err := s.items.UpdateText(ctx, itemID, text); err != nil {
		return nil, err
	}
	// Reload so the broadcast carries the full row, not just the new text.
	it, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, boardID, model.RowChange{
		Table: "retro_items", Kind: model.ChangeUpdate, RowID: itemID.String(), Row: itemRow(it),
	})
	return it, nil
}

// DeleteItem removes an item, gated by the per-actor delete limit.
func (s *ContentServiceImpl) DeleteItem(ctx context.Context, boardID, itemID uuid.UUID, actorID string) error {
	if itemID == uuid.Nil {
		return errors.New("validation: empty itemID")
	}
	if !s.actions.Allow("delete:"+actorID, itemLimit, itemWindow) {
		return errs.ErrRateLimited
	}
	if err := s.items.Delete(ctx, itemID); err != nil {
		return err
	}
	s.publish(ctx, boardID, model.RowChange{
		Table: "retro_items", Kind: model.ChangeDelete, RowID: itemID.String(),
	})
	return nil
}

// ListItems returns a board's items.
func (s *ContentServiceImpl) ListItems(ctx context.Context, boardID uuid.UUID) ([]model.RetroItem, error) {
	if boardID == uuid.Nil {
		return nil, errors.New("validation: empty boardID")
	}
	return s.items.ListByBoard(ctx, boardID)
}

// CastVote upserts a participant's vote; the uniqueness constraint makes a
// revote an update, not a duplicate.
func (s *ContentServiceImpl) CastVote(
	ctx context.Context, boardID, subjectID uuid.UUID, participantID, value string,
) (*model.Vote, error) {
	value = sanitize.UserInput(value, maxValueLen)
	if value == "" || subjectID == uuid.Nil || participantID == "" {
		return nil, errors.New("validation: empty value/subjectID/participantID")
	}
	if !s.actions.Allow("vote:"+participantID, voteLimit, voteWindow) {
		return nil, errs.ErrRateLimited
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	v := &model.Vote{ID: id, SubjectID: subjectID, ParticipantID: participantID, Value: value}
	if err := s.votes.Upsert(ctx, v); err != nil {
		return nil, err
	}
	s.publish(ctx, boardID, model.RowChange{
		Table: "votes", Kind: model.ChangeUpdate, RowID: v.ID.String(), Row: voteRow(v),
	})
	return v, nil
}

// RetractVote removes a participant's own vote and publishes the deletion
// under the stored row's id.
func (s *ContentServiceImpl) RetractVote(ctx context.Context, boardID, subjectID uuid.UUID, participantID string) error {
	if subjectID == uuid.Nil || participantID == "" {
		return errors.New("validation: empty subjectID/participantID")
	}
	id, err := s.votes.Delete(ctx, subjectID, participantID)
	if err != nil {
		return err
	}
	s.publish(ctx, boardID, model.RowChange{
		Table: "votes", Kind: model.ChangeDelete, RowID: id.String(),
	})
	return nil
}

// RevealVotes flips all votes on a subject to revealed and publishes it.
func (s *ContentServiceImpl) RevealVotes(ctx context.Context, boardID, subjectID uuid.UUID) error {
	if subjectID == uuid.Nil {
		return errors.New("validation: empty subjectID")
	}
	if err := s.votes.Reveal(ctx, subjectID); err != nil {
		return err
	}
	s.publish(ctx, boardID, model.RowChange{
		Table: "votes", Kind: model.ChangeReveal, RowID: subjectID.String(),
		Row: map[string]any{"subject_id": subjectID.String(), "revealed": true},
	})
	return nil
}

// ListVotes returns all votes on a subject.
func (s *ContentServiceImpl) ListVotes(ctx context.Context, subjectID uuid.UUID) ([]model.Vote, error) {
	if subjectID == uuid.Nil {
		return nil, errors.New("validation: empty subjectID")
	}
	return s.votes.ListBySubject(ctx, subjectID)
}

// publish is best-effort: a realtime failure never fails the write that
// already committed, subscribers recover on their next baseline fetch.
func (s *ContentServiceImpl) publish(ctx context.Context, boardID uuid.UUID, ch model.RowChange) {
	topic := Topic(model.AssetRetrospective, boardID)
	if err := s.pub.PublishChange(ctx, topic, ch); err != nil {
		s.logger.Warn("publish change", zap.String("topic", topic), zap.Error(err))
	}
}

func itemRow(it *model.RetroItem) map[string]any {
	return map[string]any{
		"id":          it.ID.String(),
		"board_id":    it.BoardID.String(),
		"col":         it.Column,
		"text":        it.Text,
		"author_name": it.AuthorName,
	}
}

func voteRow(v *model.Vote) map[string]any {
	return map[string]any{
		"id":             v.ID.String(),
		"subject_id":     v.SubjectID.String(),
		"participant_id": v.ParticipantID,
		"value":          v.Value,
		"revealed":       v.Revealed,
	}
}
