package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/scrumkit/scrumkit/internal/anon"
	"github.com/scrumkit/scrumkit/internal/model"
)

type claimRequest struct {
	Retrospectives []string `json:"retrospectives"`
	PokerSessions  []string `json:"pokerSessions"`
}

// handleClaim reconciles anonymously created assets after sign-in. The body
// carries the client's claimed IDs; the signed per-type cookies carry the
// slugs the server handed out at creation time. Only their intersection is
// ever reassigned.
func (s *Server) handleClaim(c *gin.Context) {
	uid, _ := currentUser(c)

	var body claimRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	req := model.ClaimRequest{
		Retrospectives: parseUUIDs(body.Retrospectives),
		PokerSessions:  parseUUIDs(body.PokerSessions),
	}

	cookies := map[model.AssetType]string{}
	for _, typ := range anon.Types() {
		cfg, ok := anon.ConfigFor(typ)
		if !ok {
			continue
		}
		if v, err := c.Cookie(cfg.CookieKey); err == nil {
			cookies[typ] = v
		}
	}

	res, err := s.claims.Claim(c.Request.Context(), uid, req, cookies)
	if err != nil {
		respondErr(c, err)
		return
	}

	// claimed or not, the anonymous bookkeeping is spent after one attempt
	for _, typ := range anon.Types() {
		if cfg, ok := anon.ConfigFor(typ); ok {
			c.SetCookie(cfg.CookieKey, "", -1, "/", "", s.secureCookies, true)
		}
	}
	if err := anon.NewTracker(s.visitorStorage(c)).ClearAll(c.Request.Context()); err != nil {
		s.logger.Warn("clear anonymous tracker", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"retrospectives": res.Retrospectives,
		"pokerSessions":  res.PokerSessions,
		"total":          res.Total,
	})
}

// parseUUIDs drops malformed entries instead of failing the request: the ID
// list is untrusted advisory input, not an authorization claim.
func parseUUIDs(raw []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		if id, err := uuid.FromString(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}
