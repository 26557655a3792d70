package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/keymasterhq/keymaster/pkg/db/pagination"
	"gorm.io/gorm"
)

type Service interface {
	// Create issues count keys for the same owner/game/limit/expiry. When
	// req.KeyString is set it is used verbatim for the first key of the
	// batch; the remaining keys get generated strings. Reseller-owned
	// batches debit one credit per key atomically with the insert.
	Create(ctx context.Context, req CreateRequest) ([]Response, error)
	// Revoke flips the revocation flag. Revoking an already-revoked key is
	// a successful no-op; a key is never un-revoked.
	Revoke(ctx context.Context, id snowflake.ID) (*Response, error)
	// RevokeOwned revokes a key only if it belongs to the given owner.
	RevokeOwned(ctx context.Context, ownerID, id snowflake.ID) (*Response, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Response, error)
	GetOwned(ctx context.Context, ownerID, id snowflake.ID) (*Response, error)
	ListByOwner(ctx context.Context, ownerID snowflake.ID) ([]Response, error)
	// ListAdminIssued lists keys with no reseller owner.
	ListAdminIssued(ctx context.Context) ([]Response, error)
	// ListManaged is the filtered management listing (search text, game,
	// derived status) with offset pagination.
	ListManaged(ctx context.Context, req ListRequest) (*ListResponse, error)
	// CountActive counts non-revoked, non-expired keys.
	CountActive(ctx context.Context) (int64, error)
}

// CreditLedger debits reseller credits inside the key-creation transaction.
// Implemented by the reseller repository; admin-issued keys never touch it.
type CreditLedger interface {
	Debit(ctx context.Context, tx *gorm.DB, ownerID snowflake.ID, amount int) (bool, error)
}

type CreateRequest struct {
	OwnerID     snowflake.ID
	Game        string
	DeviceLimit int
	// ExpiresAt wins when both are set; Days counts from now.
	ExpiresAt time.Time
	Days      int
	Count     int
	KeyString string
}

type ListRequest struct {
	Search string
	Game   string
	Status Status
	Page   pagination.Params
}

type Response struct {
	ID          snowflake.ID `json:"id"`
	KeyString   string       `json:"key_string"`
	Game        string       `json:"game"`
	OwnerID     snowflake.ID `json:"owner_id"`
	CreatedAt   time.Time    `json:"created_at"`
	ExpiresAt   time.Time    `json:"expires_at"`
	DeviceLimit int          `json:"device_limit"`
	IsRevoked   bool         `json:"is_revoked"`
	Status      Status       `json:"status"`
	DeviceCount int          `json:"device_count"`
}

type ListResponse struct {
	Keys     []Response          `json:"keys"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

var (
	ErrInvalidGame         = errors.New("invalid_game")
	ErrInvalidDeviceLimit  = errors.New("invalid_device_limit")
	ErrInvalidExpiry       = errors.New("invalid_expiry")
	ErrInvalidCount        = errors.New("invalid_count")
	ErrKeyExists           = errors.New("key_exists")
	ErrNotFound            = errors.New("not_found")
	ErrInsufficientCredits = errors.New("insufficient_credits")
)
