package authorization

import (
	"context"
	"errors"

	authdomain "github.com/keymasterhq/keymaster/internal/auth/domain"
)

// Service answers a single question: may this role perform this action on
// this object class. Ownership checks (a reseller touching its own keys)
// stay in the domain services; this layer only gates the surface.
type Service interface {
	Authorize(ctx context.Context, role authdomain.Role, object, action string) error
}

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid actor")
	ErrInvalidObject = errors.New("invalid object")
	ErrInvalidAction = errors.New("invalid action")
)
