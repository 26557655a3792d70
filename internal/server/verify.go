package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	verifydomain "github.com/keymasterhq/keymaster/internal/verify/domain"
)

// The verify surface is served at both /verify and /api/verify; launcher
// builds in the field are split across the two prefixes.
func (s *Server) registerVerifyRoutes() {
	limit := s.VerifyRateLimit()
	for _, prefix := range []string{"/verify", "/api/verify"} {
		group := s.engine.Group(prefix, limit)
		group.POST("", s.VerifyKey)
		group.GET("/:key/:game/:deviceId", s.CheckKey)
	}
}

// VerifyKey runs the full decision chain and binds the device on success.
func (s *Server) VerifyKey(c *gin.Context) {
	var req verifydomain.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, verifydomain.Result{
			Valid:   false,
			Message: "Missing required parameters. Need key, game, and deviceId.",
		})
		return
	}
	if !s.games.Valid(req.Game) {
		c.JSON(http.StatusBadRequest, verifydomain.Result{
			Valid:   false,
			Message: "Invalid game. Must be one of: " + strings.Join(s.games.Names(), ", "),
		})
		return
	}

	result, err := s.verifySvc.Verify(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CheckKey is the read-only variant; a registrable device yields
// canRegister instead of a new binding.
func (s *Server) CheckKey(c *gin.Context) {
	req := verifydomain.Request{
		Key:      strings.TrimSpace(c.Param("key")),
		Game:     strings.TrimSpace(c.Param("game")),
		DeviceID: strings.TrimSpace(c.Param("deviceId")),
	}
	if req.Key == "" || req.Game == "" || req.DeviceID == "" {
		c.JSON(http.StatusBadRequest, verifydomain.Result{
			Valid:   false,
			Message: "Missing required parameters. Need key, game, and deviceId.",
		})
		return
	}
	if !s.games.Valid(req.Game) {
		c.JSON(http.StatusBadRequest, verifydomain.Result{
			Valid:   false,
			Message: "Invalid game. Must be one of: " + strings.Join(s.games.Names(), ", "),
		})
		return
	}

	result, err := s.verifySvc.CheckOnly(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
