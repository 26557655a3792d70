package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/keymasterhq/keymaster/internal/auth/domain"
	"github.com/keymasterhq/keymaster/internal/authorization"
	devicedomain "github.com/keymasterhq/keymaster/internal/device/domain"
	keydomain "github.com/keymasterhq/keymaster/internal/licensekey/domain"
	referraldomain "github.com/keymasterhq/keymaster/internal/referral/domain"
	resellerdomain "github.com/keymasterhq/keymaster/internal/reseller/domain"
	updatedomain "github.com/keymasterhq/keymaster/internal/update/domain"
	"gorm.io/gorm"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

// Responses are a flat {message} object; dashboard and launcher clients
// both parse that shape.
type errorResponse struct {
	Message string `json:"message"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, message := mapError(lastErr.Err)
		c.AbortWithStatusJSON(status, errorResponse{Message: message})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "Invalid request"

	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked):
		return http.StatusUnauthorized, "Unauthorized"

	case errors.Is(err, authdomain.ErrAccountSuspended):
		return http.StatusForbidden, "Account is suspended"

	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden):
		return http.StatusForbidden, "Forbidden"

	case errors.Is(err, keydomain.ErrInvalidGame),
		errors.Is(err, updatedomain.ErrInvalidGame):
		return http.StatusBadRequest, "Invalid game"
	case errors.Is(err, keydomain.ErrInvalidDeviceLimit):
		return http.StatusBadRequest, "Invalid device limit"
	case errors.Is(err, keydomain.ErrInvalidExpiry):
		return http.StatusBadRequest, "Invalid expiry"
	case errors.Is(err, keydomain.ErrInvalidCount):
		return http.StatusBadRequest, "Invalid key count"
	case errors.Is(err, keydomain.ErrKeyExists):
		return http.StatusConflict, "License key already exists"
	case errors.Is(err, keydomain.ErrInsufficientCredits):
		return http.StatusBadRequest, "Insufficient credits"

	case errors.Is(err, resellerdomain.ErrInvalidDelta):
		return http.StatusBadRequest, "Invalid credit amount"
	case errors.Is(err, resellerdomain.ErrCreditsBelowZero):
		return http.StatusBadRequest, "Credits cannot go below zero"
	case errors.Is(err, resellerdomain.ErrUsernameExists):
		return http.StatusConflict, "Username already exists"

	case errors.Is(err, referraldomain.ErrInvalidCredits):
		return http.StatusBadRequest, "Invalid token credits"
	case errors.Is(err, referraldomain.ErrInvalidRegistration):
		return http.StatusBadRequest, "Username and password are required"
	case errors.Is(err, referraldomain.ErrTokenUnavailable):
		return http.StatusBadRequest, "Invalid or already used referral token"

	case errors.Is(err, updatedomain.ErrInvalidTitle):
		return http.StatusBadRequest, "Invalid title"
	case errors.Is(err, updatedomain.ErrInvalidMessage):
		return http.StatusBadRequest, "Invalid message"
	case errors.Is(err, updatedomain.ErrInvalidButton):
		return http.StatusBadRequest, "Button text requires a link URL"

	case errors.Is(err, keydomain.ErrNotFound),
		errors.Is(err, resellerdomain.ErrNotFound),
		errors.Is(err, updatedomain.ErrNotFound),
		errors.Is(err, devicedomain.ErrKeyNotFound),
		errors.Is(err, devicedomain.ErrDeviceNotFound),
		errors.Is(err, ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, "Not found"

	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// classifyErrorForLog labels request errors for the structured access log.
func classifyErrorForLog(err error) (string, string) {
	status, _ := mapError(err)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "auth", err.Error()
	case status >= 400 && status < 500:
		return "client", err.Error()
	default:
		return "server", err.Error()
	}
}
