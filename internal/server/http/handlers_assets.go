package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/scrumkit/scrumkit/internal/anon"
	"github.com/scrumkit/scrumkit/internal/model"
)

type assetDTO struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	OwnerID     string    `json:"ownerId,omitempty"`
	IsAnonymous bool      `json:"isAnonymous"`
	Status      string    `json:"status"`
	UniqueURL   string    `json:"uniqueUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toAssetDTO(a *model.Asset) assetDTO {
	dto := assetDTO{
		ID:          a.ID.String(),
		Type:        string(a.Type),
		Title:       a.Title,
		IsAnonymous: a.IsAnonymous,
		Status:      string(a.Status),
		UniqueURL:   a.UniqueURL,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
	if a.OwnerID != nil {
		dto.OwnerID = a.OwnerID.String()
	}
	return dto
}

type createAssetRequest struct {
	Title string `json:"title" binding:"required"`
}

func (s *Server) handleCreateAsset(typ model.AssetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createAssetRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}
		actorID, err := s.actor(c)
		if err != nil {
			respondErr(c, err)
			return
		}

		var ownerID *uuid.UUID
		if uid, ok := currentUser(c); ok {
			ownerID = &uid
		}
		a, err := s.assets.Create(c.Request.Context(), typ, req.Title, ownerID, actorID)
		if err != nil {
			respondErr(c, err)
			return
		}

		if a.IsAnonymous {
			s.rememberAnonymousAsset(c, typ, a)
		}
		c.JSON(http.StatusCreated, toAssetDTO(a))
	}
}

// rememberAnonymousAsset records the asset in the visitor's tracker and
// appends its slug to the signed per-type claim cookie. Both are best-effort:
// losing them only narrows what a later sign-in can claim.
func (s *Server) rememberAnonymousAsset(c *gin.Context, typ model.AssetType, a *model.Asset) {
	cfg, ok := anon.ConfigFor(typ)
	if !ok {
		return
	}
	if err := anon.NewTracker(s.visitorStorage(c)).Store(c.Request.Context(), typ, a.ID.String()); err != nil {
		s.logger.Warn("track anonymous asset", zap.Error(err))
	}
	prev, _ := c.Cookie(cfg.CookieKey)
	value, err := s.codec.Append(prev, a.UniqueURL)
	if err != nil {
		s.logger.Warn("append claim cookie", zap.Error(err))
		return
	}
	c.SetCookie(cfg.CookieKey, value, claimCookieMaxAge, "/", "", s.secureCookies, true)
}

func (s *Server) handleGetAsset(typ model.AssetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		url := c.Param("url")
		if _, pending := s.pending.Pending(url); pending {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		a, err := s.assets.GetByURL(c.Request.Context(), typ, url)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toAssetDTO(a))
	}
}

func (s *Server) handleListAssets(typ model.AssetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, _ := currentUser(c)
		list, err := s.assets.ListByOwner(c.Request.Context(), typ, uid)
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]assetDTO, 0, len(list))
		for i := range list {
			out = append(out, toAssetDTO(&list[i]))
		}
		c.JSON(http.StatusOK, gin.H{"assets": out})
	}
}

// handleDeleteAsset schedules an optimistic deletion. The asset vanishes from
// reads immediately; the row survives until the undo window passes.
func (s *Server) handleDeleteAsset(typ model.AssetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		url := c.Param("url")
		a, err := s.assets.GetByURL(c.Request.Context(), typ, url)
		if err != nil {
			respondErr(c, err)
			return
		}
		if !s.canManage(c, a) {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		m := s.pending.Schedule(*a)
		c.JSON(http.StatusAccepted, gin.H{"undoUntil": m.ScheduledFor})
	}
}

func (s *Server) handleRestoreAsset(typ model.AssetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		url := c.Param("url")
		if !s.pending.Undo(url) {
			c.JSON(http.StatusGone, gin.H{"error": "deletion already final"})
			return
		}
		a, err := s.assets.GetByURL(c.Request.Context(), typ, url)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, toAssetDTO(a))
	}
}

// canManage authorizes destructive asset operations: the authenticated owner,
// or for anonymous assets the visitor whose tracker recorded the creation.
func (s *Server) canManage(c *gin.Context, a *model.Asset) bool {
	if uid, ok := currentUser(c); ok {
		return a.OwnerID != nil && *a.OwnerID == uid
	}
	if !a.IsAnonymous {
		return false
	}
	ids, err := anon.NewTracker(s.visitorStorage(c)).Assets(c.Request.Context(), a.Type)
	if err != nil {
		s.logger.Warn("read anonymous tracker", zap.Error(err))
		return false
	}
	for _, id := range ids {
		if id == a.ID.String() {
			return true
		}
	}
	return false
}

// handleAnonymousAssets lists what the visitor created before signing in.
func (s *Server) handleAnonymousAssets(c *gin.Context) {
	tracker := anon.NewTracker(s.visitorStorage(c))
	all, err := tracker.AllAssets(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	count := 0
	out := map[string][]string{}
	for typ, ids := range all {
		out[string(typ)] = ids
		count += len(ids)
	}
	c.JSON(http.StatusOK, gin.H{"assets": out, "count": count})
}
