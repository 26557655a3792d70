package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/keymasterhq/keymaster/pkg/db/pagination"
	"gorm.io/gorm"
)

// Repository is the license key store contract. Lookups return (nil, nil)
// when no row matches; absence is a decision branch, not an error.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *Key) error
	FindByString(ctx context.Context, db *gorm.DB, keyString string) (*Key, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Key, error)
	FindByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]Key, error)
	// SetRevoked flips the revocation flag and reports whether a row matched.
	// The flag is monotonic; there is no way back.
	SetRevoked(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	// ListFiltered applies the management filters and offset pagination.
	ListFiltered(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Params) ([]Key, int64, error)
	CountActive(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}

// ListFilter narrows the management listing. Zero values mean "any".
type ListFilter struct {
	Search string
	Game   string
	Status Status
	Now    time.Time
}
