package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the device store contract. InsertIfCapacity is the single
// write path for new bindings and carries both hard invariants: at most one
// row per (key, device) pair, and never more rows than the key's limit.
type Repository interface {
	FindByKeyID(ctx context.Context, db *gorm.DB, keyID snowflake.ID) ([]Device, error)
	CountByKeyID(ctx context.Context, db *gorm.DB, keyID snowflake.ID) (int, error)
	CountByKeyIDs(ctx context.Context, db *gorm.DB, keyIDs []snowflake.ID) (map[snowflake.ID]int, error)
	// InsertIfCapacity atomically inserts the binding unless the key already
	// has limit rows. Returns false when the capacity check failed, and
	// ErrAlreadyRegistered when the exact pair already exists.
	InsertIfCapacity(ctx context.Context, db *gorm.DB, device *Device, limit int) (bool, error)
	// Remove deletes one binding and reports whether a row matched.
	Remove(ctx context.Context, db *gorm.DB, keyID snowflake.ID, deviceID string) (bool, error)
	// ResetAll deletes every binding system-wide and returns the count.
	ResetAll(ctx context.Context, db *gorm.DB) (int64, error)
}
