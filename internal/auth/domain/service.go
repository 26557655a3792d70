package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// LoginAdmin and LoginReseller verify credentials and mint a session.
	// Unknown accounts and bad passwords are indistinguishable to callers;
	// a suspended reseller fails with ErrAccountSuspended.
	LoginAdmin(ctx context.Context, req LoginRequest) (*LoginResult, error)
	LoginReseller(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	// Authenticate resolves a cookie token to a live session and touches
	// its last-seen timestamp.
	Authenticate(ctx context.Context, rawToken string) (*Session, error)
	// EnsureAdmin creates the account when the username is free; an
	// existing account is left untouched.
	EnsureAdmin(ctx context.Context, username, plaintext string) error
}

type LoginRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	UserAgent string `json:"-"`
	IPAddress string `json:"-"`
}

type LoginResult struct {
	Role      Role         `json:"role"`
	AccountID snowflake.ID `json:"account_id"`
	Username  string       `json:"username"`
	RawToken  string       `json:"-"`
	ExpiresAt time.Time    `json:"expires_at"`
}
