package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	GetByID(ctx context.Context, id snowflake.ID) (*Reseller, error)
	// List returns every reseller with per-account key totals for the
	// admin dashboard.
	List(ctx context.Context) ([]Overview, error)
	// Profile aggregates the reseller's own account view: credits plus
	// active/expired/total key counts.
	Profile(ctx context.Context, id snowflake.ID) (*Profile, error)
	// AdjustCredits applies a signed credit delta. The balance never goes
	// below zero; an over-debit fails with ErrCreditsBelowZero.
	AdjustCredits(ctx context.Context, id snowflake.ID, delta int) (*Reseller, error)
	// SetActive suspends or reactivates the account and notifies the
	// reseller's live sessions.
	SetActive(ctx context.Context, id snowflake.ID, active bool) (*Reseller, error)
	Count(ctx context.Context) (int64, error)
}

// Overview is a reseller row in the admin listing.
type Overview struct {
	Reseller
	TotalKeys  int `json:"total_keys"`
	ActiveKeys int `json:"active_keys"`
}

// Profile is the reseller's own account summary.
type Profile struct {
	ID               snowflake.ID `json:"id"`
	Username         string       `json:"username"`
	Credits          int          `json:"credits"`
	RegistrationDate time.Time    `json:"registration_date"`
	ActiveKeys       int          `json:"active_keys"`
	ExpiredKeys      int          `json:"expired_keys"`
	TotalKeys        int          `json:"total_keys"`
}

var (
	ErrNotFound         = errors.New("reseller_not_found")
	ErrUsernameExists   = errors.New("username_exists")
	ErrInvalidDelta     = errors.New("invalid_credit_delta")
	ErrCreditsBelowZero = errors.New("credits_below_zero")
)
