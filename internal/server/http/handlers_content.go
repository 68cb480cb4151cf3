package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/scrumkit/scrumkit/internal/anon"
	"github.com/scrumkit/scrumkit/internal/model"
	"github.com/scrumkit/scrumkit/internal/stats"
)

type itemDTO struct {
	ID         string    `json:"id"`
	BoardID    string    `json:"boardId"`
	Column     string    `json:"column"`
	Text       string    `json:"text"`
	AuthorName string    `json:"authorName"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toItemDTO(it *model.RetroItem) itemDTO {
	return itemDTO{
		ID:         it.ID.String(),
		BoardID:    it.BoardID.String(),
		Column:     it.Column,
		Text:       it.Text,
		AuthorName: it.AuthorName,
		CreatedAt:  it.CreatedAt,
		UpdatedAt:  it.UpdatedAt,
	}
}

type voteDTO struct {
	ID            string `json:"id"`
	SubjectID     string `json:"subjectId"`
	ParticipantID string `json:"participantId"`
	Value         string `json:"value"`
	Revealed      bool   `json:"revealed"`
}

func toVoteDTO(v *model.Vote) voteDTO {
	return voteDTO{
		ID:            v.ID.String(),
		SubjectID:     v.SubjectID.String(),
		ParticipantID: v.ParticipantID,
		Value:         v.Value,
		Revealed:      v.Revealed,
	}
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

type addItemRequest struct {
	Column     string `json:"column" binding:"required"`
	Text       string `json:"text" binding:"required"`
	AuthorName string `json:"authorName"`
}

func (s *Server) handleAddItem(c *gin.Context) {
	boardID, ok := pathUUID(c, "boardID")
	if !ok {
		return
	}
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	actorID, err := s.actor(c)
	if err != nil {
		respondErr(c, err)
		return
	}
	it, err := s.content.AddItem(c.Request.Context(), boardID, req.Column, req.Text, req.AuthorName, actorID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if anon.IsAnonymousID(actorID) {
		if err := anon.NewOwnershipStore(s.visitorStorage(c)).Record(c.Request.Context(), it.ID.String(), actorID); err != nil {
			s.logger.Warn("record item ownership", zap.Error(err))
		}
	}
	c.JSON(http.StatusCreated, toItemDTO(it))
}

func (s *Server) handleListItems(c *gin.Context) {
	boardID, ok := pathUUID(c, "boardID")
	if !ok {
		return
	}
	items, err := s.content.ListItems(c.Request.Context(), boardID)
	if err != nil {
		respondErr(c, err)
		return
	}
	out := make([]itemDTO, 0, len(items))
	for i := range items {
		out = append(out, toItemDTO(&items[i]))
	}
	c.JSON(http.StatusOK, gin.H{"items": out})
}

type updateItemRequest struct {
	Text string `json:"text" binding:"required"`
}

func (s *Server) handleUpdateItem(c *gin.Context) {
	boardID, ok := pathUUID(c, "boardID")
	if !ok {
		return
	}
	itemID, ok := pathUUID(c, "itemID")
	if !ok {
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if !s.canEditItem(c, itemID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	it, err := s.content.UpdateItem(c.Request.Context(), boardID, itemID, req.Text)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, toItemDTO(it))
}

func (s *Server) handleDeleteItem(c *gin.Context) {
	boardID, ok := pathUUID(c, "boardID")
	if !ok {
		return
	}
	itemID, ok := pathUUID(c, "itemID")
	if !ok {
		return
	}
	if !s.canEditItem(c, itemID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	actorID, err := s.actor(c)
	if err != nil {
		respondErr(c, err)
		return
	}
	if err := s.content.DeleteItem(c.Request.Context(), boardID, itemID, actorID); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// canEditItem lets authenticated users edit freely (board moderation) and
// anonymous visitors edit only the items their own pseudo-user created.
func (s *Server) canEditItem(c *gin.Context, itemID uuid.UUID) bool {
	if _, ok := currentUser(c); ok {
		return true
	}
	store := s.visitorStorage(c)
	owner, found, err := anon.NewOwnershipStore(store).Owner(c.Request.Context(), itemID.String())
	if err != nil {
		s.logger.Warn("read item ownership", zap.Error(err))
		return false
	}
	if !found {
		return false
	}
	id, err := anon.NewIdentityStore(store).GetOrCreate(c.Request.Context())
	if err != nil {
		return false
	}
	return owner == id.ID
}

type castVoteRequest struct {
	Value string `json:"value" binding:"required"`
}

func (s *Server) handleCastVote(c *gin.Context) {
	boardID, ok := pathUUID(c, "boardID")
	if !ok {
		return
	}
	subjectID, ok := pathUUID(c, "subjectID")
	if !ok {
		return
	}
	var req castVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	actorID, err := s.actor(c)
	if err != nil {
		respondErr(c, err)
		return
	}
	v, err := s.content.CastVote(c.Request.Context(), boardID, subjectID, actorID, req.Value)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, toVoteDTO(v))
}

// handleRetractVote withdraws the caller's own vote. Whose vote is taken
// comes from the actor, never the request, so nobody can unvote a peer.
func (s *Server) handleRetractVote(c *gin.Context) {
	boardID, ok := pathUUID(c, "boardID")
	if !ok {
		return
	}
	subjectID, ok := pathUUID(c, "subjectID")
	if !ok {
		return
	}
	actorID, err := s.actor(c)
	if err != nil {
		respondErr(c, err)
		return
	}
	if err := s.content.RetractVote(c.Request.Context(), boardID, subjectID, actorID); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRevealVotes(c *gin.Context) {
	boardID, ok := pathUUID(c, "boardID")
	if !ok {
		return
	}
	subjectID, ok := pathUUID(c, "subjectID")
	if !ok {
		return
	}
	if err := s.content.RevealVotes(c.Request.Context(), boardID, subjectID); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleListVotes returns a subject's votes, masking values still hidden
// behind an unfinished reveal for everyone but their caster.
func (s *Server) handleListVotes(c *gin.Context) {
	subjectID, ok := pathUUID(c, "subjectID")
	if !ok {
		return
	}
	votes, err := s.content.ListVotes(c.Request.Context(), subjectID)
	if err != nil {
		respondErr(c, err)
		return
	}
	actorID, err := s.actor(c)
	if err != nil {
		respondErr(c, err)
		return
	}
	out := make([]voteDTO, 0, len(votes))
	for i := range votes {
		dto := toVoteDTO(&votes[i])
		if !votes[i].Revealed && votes[i].ParticipantID != actorID {
			dto.Value = ""
		}
		out = append(out, dto)
	}
	c.JSON(http.StatusOK, gin.H{"votes": out})
}

// handleVoteStats computes the revealed-round statistics for a subject.
func (s *Server) handleVoteStats(c *gin.Context) {
	subjectID, ok := pathUUID(c, "subjectID")
	if !ok {
		return
	}
	tolerance := 1.0
	if raw := c.Query("tolerance"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tolerance"})
			return
		}
		tolerance = v
	}
	votes, err := s.content.ListVotes(c.Request.Context(), subjectID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary":        stats.Summarize(votes),
		"distribution":   stats.Distribution(votes),
		"consensus":      stats.Consensus(votes, tolerance),
		"perParticipant": stats.PerParticipant(votes),
	})
}
