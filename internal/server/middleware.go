package server

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	authdomain "github.com/keymasterhq/keymaster/internal/auth/domain"
)

const contextSessionKey = "auth_session"

// AuthRequired resolves the session cookie to a live session and stores it
// on the request context. Missing or dead sessions abort with 401.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			s.sessions.Clear(c)
			AbortWithError(c, err)
			return
		}

		c.Set(contextSessionKey, session)
		c.Next()
	}
}

// Authorized gates a route group on the casbin policy for the session role.
func (s *Server) Authorized(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := s.currentSession(c)
		if session == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), session.Role, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// RequireRole restricts a route group to one account tier. Ownership checks
// stay in the domain services.
func (s *Server) RequireRole(role authdomain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := s.currentSession(c)
		if session == nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if session.Role != role {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

func (s *Server) currentSession(c *gin.Context) *authdomain.Session {
	value, ok := c.Get(contextSessionKey)
	if !ok {
		return nil
	}
	session, ok := value.(*authdomain.Session)
	if !ok {
		return nil
	}
	return session
}

// VerifyRateLimit throttles the public verification endpoints per client
// address. A disabled limiter passes everything through.
func (s *Server) VerifyRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.verifyLimiter == nil || !s.verifyLimiter.Enabled() {
			c.Next()
			return
		}

		res := s.verifyLimiter.Allow(c.Request.Context(), c.ClientIP())
		if res.Allowed {
			c.Next()
			return
		}

		retryAfter := int(math.Ceil(res.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
			Message: "Too many requests",
		})
	}
}
