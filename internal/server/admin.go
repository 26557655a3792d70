package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/keymasterhq/keymaster/internal/auth/domain"
	"github.com/keymasterhq/keymaster/internal/authorization"
	keydomain "github.com/keymasterhq/keymaster/internal/licensekey/domain"
	updatedomain "github.com/keymasterhq/keymaster/internal/update/domain"
	"github.com/keymasterhq/keymaster/pkg/db/pagination"
)

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.AuthRequired(), s.RequireRole(authdomain.RoleAdmin))

	admin.GET("/stats",
		s.Authorized(authorization.ObjectStats, authorization.ActionView), s.AdminStats)

	resellers := admin.Group("/resellers",
		s.Authorized(authorization.ObjectReseller, authorization.ActionManage))
	resellers.GET("", s.ListResellers)
	resellers.GET("/:id/keys", s.ResellerKeys)
	resellers.POST("/credits", s.AdjustResellerCredits)
	resellers.POST("/:id/toggle-status", s.ToggleResellerStatus)

	tokens := admin.Group("/tokens",
		s.Authorized(authorization.ObjectToken, authorization.ActionManage))
	tokens.POST("/generate", s.GenerateToken)
	tokens.GET("", s.ListTokens)

	keys := admin.Group("/keys",
		s.Authorized(authorization.ObjectKey, authorization.ActionManage))
	keys.POST("/generate", s.AdminGenerateKeys)
	keys.GET("", s.AdminKeys)
	keys.GET("/manage", s.ManageKeys)
	keys.GET("/:id/details", s.AdminKeyDetails)
	keys.POST("/:id/revoke", s.AdminRevokeKey)
	keys.POST("/reset-devices", s.ResetDevices)

	updates := admin.Group("/online-updates",
		s.Authorized(authorization.ObjectUpdate, authorization.ActionManage))
	updates.GET("", s.ListUpdates)
	updates.POST("", s.CreateUpdate)
	updates.GET("/:id", s.GetUpdate)
	updates.PATCH("/:id", s.ModifyUpdate)
	updates.DELETE("/:id", s.DeleteUpdate)
}

func (s *Server) AdminStats(c *gin.Context) {
	ctx := c.Request.Context()

	totalResellers, err := s.resellerSvc.Count(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	activeKeys, err := s.keySvc.CountActive(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	availableTokens, err := s.referralSvc.CountAvailable(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	activeUpdates, inactiveUpdates, err := s.updateSvc.CountByActive(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	adminKeys, err := s.keySvc.ListAdminIssued(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totalResellers":        totalResellers,
		"activeKeys":            activeKeys,
		"availableTokens":       availableTokens,
		"activeOnlineUpdates":   activeUpdates,
		"inactiveOnlineUpdates": inactiveUpdates,
		"totalAdminKeys":        len(adminKeys),
	})
}

func (s *Server) ListResellers(c *gin.Context) {
	overviews, err := s.resellerSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, overviews)
}

func (s *Server) ResellerKeys(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if _, err := s.resellerSvc.GetByID(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	keys, err := s.keySvc.ListByOwner(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, keys)
}

type adjustCreditsRequest struct {
	ResellerID snowflake.ID `json:"resellerId" binding:"required"`
	Amount     int          `json:"amount" binding:"required"`
}

func (s *Server) AdjustResellerCredits(c *gin.Context) {
	var req adjustCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	account, err := s.resellerSvc.AdjustCredits(c.Request.Context(), req.ResellerID, req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *Server) ToggleResellerStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	current, err := s.resellerSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	account, err := s.resellerSvc.SetActive(c.Request.Context(), id, !current.IsActive)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

type generateTokenRequest struct {
	Credits int `json:"credits" binding:"required"`
}

func (s *Server) GenerateToken(c *gin.Context) {
	var req generateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	token, err := s.referralSvc.Generate(c.Request.Context(), req.Credits)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, token)
}

func (s *Server) ListTokens(c *gin.Context) {
	tokens, err := s.referralSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

type generateKeysRequest struct {
	Game        string     `json:"game" binding:"required"`
	DeviceLimit int        `json:"deviceLimit" binding:"required"`
	ExpiryDate  *time.Time `json:"expiryDate"`
	Days        int        `json:"days"`
	Count       int        `json:"count"`
	CustomKey   string     `json:"customKey"`
}

func (r generateKeysRequest) toCreate(ownerID snowflake.ID) keydomain.CreateRequest {
	req := keydomain.CreateRequest{
		OwnerID:     ownerID,
		Game:        r.Game,
		DeviceLimit: r.DeviceLimit,
		Days:        r.Days,
		Count:       r.Count,
		KeyString:   r.CustomKey,
	}
	if r.ExpiryDate != nil {
		req.ExpiresAt = *r.ExpiryDate
	}
	return req
}

func (s *Server) AdminGenerateKeys(c *gin.Context) {
	var req generateKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	keys, err := s.keySvc.Create(c.Request.Context(), req.toCreate(keydomain.AdminOwnerID))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, keys)
}

func (s *Server) AdminKeys(c *gin.Context) {
	keys, err := s.keySvc.ListAdminIssued(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, keys)
}

type manageKeysQuery struct {
	Search string           `form:"search"`
	Game   string           `form:"game"`
	Status keydomain.Status `form:"status"`
	Page   int              `form:"page,default=1"`
	Limit  int              `form:"limit,default=20"`
}

func (s *Server) ManageKeys(c *gin.Context) {
	var query manageKeysQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.keySvc.ListManaged(c.Request.Context(), keydomain.ListRequest{
		Search: query.Search,
		Game:   query.Game,
		Status: query.Status,
		Page:   pagination.Params{Page: query.Page, Limit: query.Limit},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) AdminKeyDetails(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	key, err := s.keySvc.GetByID(c.Request.Context(), id)
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

func (s *Server) AdminRevokeKey(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	key, err := s.keySvc.Revoke(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

func (s *Server) ResetDevices(c *gin.Context) {
	removed, err := s.deviceSvc.ResetAll(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        "All device registrations reset",
		"devicesRemoved": removed,
	})
}

func (s *Server) ListUpdates(c *gin.Context) {
	updates, err := s.updateSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updates)
}

func (s *Server) CreateUpdate(c *gin.Context) {
	var req updatedomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	update, err := s.updateSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, update)
}

func (s *Server) GetUpdate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	update, err := s.updateSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, update)
}

func (s *Server) ModifyUpdate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req updatedomain.ModifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	update, err := s.updateSvc.Modify(c.Request.Context(), id, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, update)
}

func (s *Server) DeleteUpdate(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.updateSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Update deleted"})
}
