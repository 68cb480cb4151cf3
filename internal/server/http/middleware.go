package httpserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/scrumkit/scrumkit/internal/anon"
)

const (
	ctxUserID  = "userID"
	ctxVisitor = "visitorID"
)

// requestLogger logs one line per request in the access-log style.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

// recovery converts panics into 500s without killing the process.
func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}

// withVisitor assigns every request a stable visitor ID, minting the cookie
// on first contact. The visitor ID scopes anonymous identity and tracking.
func (s *Server) withVisitor() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := c.Cookie(visitorCookie)
		if err != nil || v == "" {
			v = uuid.Must(uuid.NewV4()).String()
			c.SetCookie(visitorCookie, v, visitorCookieMaxAge, "/", "", s.secureCookies, true)
		}
		c.Set(ctxVisitor, v)
		c.Next()
	}
}

// withAuth resolves the access token when present. It never rejects: routes
// that require a session stack requireAuth on top.
func (s *Server) withAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if v, err := c.Cookie(accessCookie); err == nil {
			token = v
		} else if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
		if token != "" {
			if uid, err := s.auth.VerifyToken(token); err == nil {
				c.Set(ctxUserID, uid)
			}
		}
		c.Next()
	}
}

func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(ctxUserID); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		return uuid.Nil, false
	}
	uid, ok := v.(uuid.UUID)
	return uid, ok
}

func visitorID(c *gin.Context) string {
	return c.GetString(ctxVisitor)
}

// visitorStorage returns the per-visitor KV scope for the current request.
func (s *Server) visitorStorage(c *gin.Context) anon.Storage {
	return s.storageFor(visitorID(c))
}

// actor resolves the acting identity: the authenticated user ID, or the
// visitor's anonymous pseudo-user (created on first use).
func (s *Server) actor(c *gin.Context) (string, error) {
	if uid, ok := currentUser(c); ok {
		return uid.String(), nil
	}
	id, err := anon.NewIdentityStore(s.visitorStorage(c)).GetOrCreate(c.Request.Context())
	if err != nil {
		return "", err
	}
	return id.ID, nil
}
