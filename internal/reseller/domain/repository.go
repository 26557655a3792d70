package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, reseller *Reseller) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Reseller, error)
	FindByUsername(ctx context.Context, db *gorm.DB, username string) (*Reseller, error)
	List(ctx context.Context, db *gorm.DB) ([]Reseller, error)
	// AdjustCredits applies a signed delta and reports whether the row
	// matched; a delta that would drive credits negative matches nothing.
	AdjustCredits(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int) (bool, error)
	SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) (bool, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
}
