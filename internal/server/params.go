package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

// pathID parses a snowflake path parameter; on failure it aborts with 404
// so malformed and unknown identifiers are indistinguishable.
func pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.Param(name))
	if raw == "" {
		AbortWithError(c, ErrNotFound)
		return 0, false
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return 0, false
	}
	return id, true
}
