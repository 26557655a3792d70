package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type AdminRepository interface {
	Insert(ctx context.Context, db *gorm.DB, admin *Admin) error
	FindByUsername(ctx context.Context, db *gorm.DB, username string) (*Admin, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Admin, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
}

type SessionRepository interface {
	Insert(ctx context.Context, db *gorm.DB, session *Session) error
	FindByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*Session, error)
	UpdateLastSeen(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	Revoke(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
	DeleteExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}
