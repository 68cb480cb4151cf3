// Package httpserver exposes the REST and websocket API over gin.
package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scrumkit/scrumkit/internal/anon"
	"github.com/scrumkit/scrumkit/internal/claimcookie"
	"github.com/scrumkit/scrumkit/internal/errs"
	"github.com/scrumkit/scrumkit/internal/model"
	"github.com/scrumkit/scrumkit/internal/realtime"
	"github.com/scrumkit/scrumkit/internal/service"
)

const (
	accessCookie  = "scrumkit_access"
	visitorCookie = "scrumkit_visitor"

	claimCookieMaxAge   = 30 * 24 * 60 * 60 // seconds
	visitorCookieMaxAge = 365 * 24 * 60 * 60
)

// StorageFactory yields the per-visitor key-value storage backing anonymous
// identity, tracking, and item ownership.
type StorageFactory func(visitorID string) anon.Storage

// Server wires services into HTTP handlers.
type Server struct {
	auth    service.AuthService
	assets  service.AssetService
	content service.ContentService
	claims  service.ClaimService
	pending *service.PendingDeletions
	hub     *realtime.Hub
	codec   *claimcookie.Codec

	storageFor StorageFactory
	logger     *zap.Logger

	secureCookies bool
}

// New constructs the HTTP server with injected services.
func New(
	auth service.AuthService,
	assets service.AssetService,
	content service.ContentService,
	claims service.ClaimService,
	pending *service.PendingDeletions,
	hub *realtime.Hub,
	codec *claimcookie.Codec,
	storageFor StorageFactory,
	logger *zap.Logger,
	secureCookies bool,
) *Server {
	return &Server{
		auth:          auth,
		assets:        assets,
		content:       content,
		claims:        claims,
		pending:       pending,
		hub:           hub,
		codec:         codec,
		storageFor:    storageFor,
		logger:        logger,
		secureCookies: secureCookies,
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(s.requestLogger(), s.recovery(), s.withVisitor(), s.withAuth())

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.POST("/register", s.handleRegister)
		auth.POST("/login", s.handleLogin)
		auth.POST("/logout", s.handleLogout)

		api.POST("/claim", s.requireAuth(), s.handleClaim)
		api.GET("/anonymous", s.handleAnonymousAssets)

		s.registerAssetRoutes(api.Group("/retrospectives"), model.AssetRetrospective)
		s.registerAssetRoutes(api.Group("/poker-sessions"), model.AssetPokerSession)

		boards := api.Group("/boards/:boardID")
		boards.GET("/items", s.handleListItems)
		boards.POST("/items", s.handleAddItem)
		boards.PATCH("/items/:itemID", s.handleUpdateItem)
		boards.DELETE("/items/:itemID", s.handleDeleteItem)
		boards.POST("/subjects/:subjectID/votes", s.handleCastVote)
		boards.DELETE("/subjects/:subjectID/votes", s.handleRetractVote)
		boards.POST("/subjects/:subjectID/reveal", s.handleRevealVotes)
		boards.GET("/subjects/:subjectID/votes", s.handleListVotes)
		boards.GET("/subjects/:subjectID/stats", s.handleVoteStats)
	}

	r.GET("/ws/retrospectives/:url", s.handleWS(model.AssetRetrospective))
	r.GET("/ws/poker-sessions/:url", s.handleWS(model.AssetPokerSession))

	return r
}

func (s *Server) registerAssetRoutes(g *gin.RouterGroup, typ model.AssetType) {
	g.POST("", s.handleCreateAsset(typ))
	g.GET("", s.requireAuth(), s.handleListAssets(typ))
	g.GET("/:url", s.handleGetAsset(typ))
	g.DELETE("/:url", s.handleDeleteAsset(typ))
	g.POST("/:url/restore", s.handleRestoreAsset(typ))
}

// respondErr maps service errors onto HTTP statuses.
func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, errs.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, errs.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate limited"})
	case errors.Is(err, errs.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	case strings.HasPrefix(err.Error(), "validation:"):
		c.JSON(http.StatusBadRequest, gin.H{"error": strings.TrimSpace(strings.TrimPrefix(err.Error(), "validation:"))})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
