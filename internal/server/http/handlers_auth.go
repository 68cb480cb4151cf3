package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scrumkit/scrumkit/internal/anon"
)

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	userID, err := s.auth.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"userId": userID})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	tokens, user, err := s.auth.LoginWithIP(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		respondErr(c, err)
		return
	}
	maxAge := int(time.Until(tokens.ExpiresAt).Seconds())
	c.SetCookie(accessCookie, tokens.AccessToken, maxAge, "/", "", s.secureCookies, true)

	// how many anonymously created assets this browser could claim now
	claimable, err := anon.NewTracker(s.visitorStorage(c)).Count(c.Request.Context())
	if err != nil {
		s.logger.Warn("count claimable assets", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":    user.ID.String(),
			"email": user.Email,
			"name":  user.Name,
		},
		"expiresAt": tokens.ExpiresAt,
		"claimable": claimable,
	})
}

func (s *Server) handleLogout(c *gin.Context) {
	c.SetCookie(accessCookie, "", -1, "/", "", s.secureCookies, true)
	c.Status(http.StatusNoContent)
}
