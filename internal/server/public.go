package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) registerPublicRoutes() {
	s.engine.GET("/api/updates", s.ActiveUpdates)
}

// ActiveUpdates is the public announcement feed consumed by launchers.
func (s *Server) ActiveUpdates(c *gin.Context) {
	updates, err := s.updateSvc.ListActive(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, updates)
}
