package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/keymasterhq/keymaster/internal/auth/domain"
	referraldomain "github.com/keymasterhq/keymaster/internal/referral/domain"
)

func (s *Server) registerAuthRoutes() {
	group := s.engine.Group("/api/auth")

	group.POST("/admin/login", s.AdminLogin)
	group.POST("/reseller/login", s.ResellerLogin)
	group.POST("/reseller/register", s.RegisterReseller)

	// Logout tolerates a dead session; clearing the cookie is the point.
	group.POST("/logout", s.Logout)
	group.GET("/session", s.AuthRequired(), s.SessionInfo)
}

func (s *Server) AdminLogin(c *gin.Context) {
	s.login(c, s.authSvc.LoginAdmin)
}

func (s *Server) ResellerLogin(c *gin.Context) {
	s.login(c, s.authSvc.LoginReseller)
}

func (s *Server) login(c *gin.Context, attempt func(context.Context, authdomain.LoginRequest) (*authdomain.LoginResult, error)) {
	var req authdomain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.UserAgent = c.Request.UserAgent()
	req.IPAddress = c.ClientIP()

	result, err := attempt(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	c.JSON(http.StatusOK, result)
}

func (s *Server) Logout(c *gin.Context) {
	if token, ok := s.sessions.ReadToken(c); ok {
		// A dead or unknown session still gets its cookie cleared.
		_ = s.authSvc.Logout(c.Request.Context(), token)
	}
	s.sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (s *Server) SessionInfo(c *gin.Context) {
	session := s.currentSession(c)
	if session == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"role":       session.Role,
		"account_id": session.AccountID,
		"expires_at": session.ExpiresAt,
	})
}

// RegisterReseller is the public referral-token registration endpoint.
func (s *Server) RegisterReseller(c *gin.Context) {
	var req referraldomain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, referraldomain.ErrInvalidRegistration)
		return
	}

	account, err := s.referralSvc.RegisterReseller(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}
