package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, token *Token) error
	FindByToken(ctx context.Context, db *gorm.DB, token string) (*Token, error)
	List(ctx context.Context, db *gorm.DB) ([]Token, error)
	// Claim marks the token used by the given account. Returns false when
	// the token does not exist or was already claimed.
	Claim(ctx context.Context, db *gorm.DB, token, usedBy string) (bool, error)
	CountAvailable(ctx context.Context, db *gorm.DB) (int64, error)
}
