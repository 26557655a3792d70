package domain

import (
	"context"
	"errors"

	resellerdomain "github.com/keymasterhq/keymaster/internal/reseller/domain"
)

type Service interface {
	// Generate mints a new unused token worth the given credits.
	Generate(ctx context.Context, credits int) (*Token, error)
	List(ctx context.Context) ([]Token, error)
	CountAvailable(ctx context.Context) (int64, error)
	// RegisterReseller claims the referral token and creates an active
	// reseller seeded with the token's credits, atomically.
	RegisterReseller(ctx context.Context, req RegisterRequest) (*resellerdomain.Reseller, error)
}

type RegisterRequest struct {
	Username      string `json:"username" binding:"required"`
	Password      string `json:"password" binding:"required"`
	ReferralToken string `json:"referralToken" binding:"required"`
}

var (
	ErrInvalidCredits      = errors.New("invalid_token_credits")
	ErrTokenUnavailable    = errors.New("token_unavailable")
	ErrInvalidRegistration = errors.New("invalid_registration")
)
