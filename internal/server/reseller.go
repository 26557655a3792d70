package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/keymasterhq/keymaster/internal/auth/domain"
	"github.com/keymasterhq/keymaster/internal/authorization"
)

func (s *Server) registerResellerRoutes() {
	group := s.engine.Group("/api/reseller", s.AuthRequired(), s.RequireRole(authdomain.RoleReseller))

	group.GET("/profile", s.ResellerProfile)

	keys := group.Group("/keys")
	keys.GET("",
		s.Authorized(authorization.ObjectKey, authorization.ActionView), s.OwnKeys)
	keys.POST("/generate",
		s.Authorized(authorization.ObjectKey, authorization.ActionCreate), s.ResellerGenerateKeys)
	keys.GET("/:id",
		s.Authorized(authorization.ObjectKey, authorization.ActionView), s.OwnKeyDetails)
	keys.POST("/:id/revoke",
		s.Authorized(authorization.ObjectKey, authorization.ActionRevoke), s.ResellerRevokeKey)
	keys.POST("/:id/devices/:deviceId/remove",
		s.Authorized(authorization.ObjectDevice, authorization.ActionRemove), s.RemoveDevice)
}

func (s *Server) ResellerProfile(c *gin.Context) {
	session := s.currentSession(c)
	profile, err := s.resellerSvc.Profile(c.Request.Context(), session.AccountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (s *Server) OwnKeys(c *gin.Context) {
	session := s.currentSession(c)
	keys, err := s.keySvc.ListByOwner(c.Request.Context(), session.AccountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, keys)
}

func (s *Server) ResellerGenerateKeys(c *gin.Context) {
	var req generateKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	session := s.currentSession(c)
	keys, err := s.keySvc.Create(c.Request.Context(), req.toCreate(session.AccountID))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, keys)
}

func (s *Server) OwnKeyDetails(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	session := s.currentSession(c)
	key, err := s.keySvc.GetOwned(c.Request.Context(), session.AccountID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	devices, err := s.deviceSvc.ListByKey(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "devices": devices})
}

func (s *Server) ResellerRevokeKey(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	session := s.currentSession(c)
	key, err := s.keySvc.RevokeOwned(c.Request.Context(), session.AccountID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

func (s *Server) RemoveDevice(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	deviceID := strings.TrimSpace(c.Param("deviceId"))
	if deviceID == "" {
		AbortWithError(c, ErrNotFound)
		return
	}

	session := s.currentSession(c)
	if err := s.deviceSvc.RemoveFromOwnedKey(c.Request.Context(), session.AccountID, id, deviceID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Device removed"})
}
