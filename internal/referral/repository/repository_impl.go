package repository

import (
	"context"

	referraldomain "github.com/keymasterhq/keymaster/internal/referral/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() referraldomain.Repository {
	return &repo{}
}

const tokenColumns = `id, token, created_at, used_by, is_used, credits`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, token *referraldomain.Token) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tokens (`+tokenColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		token.ID,
		token.Token,
		token.CreatedAt,
		token.UsedBy,
		token.IsUsed,
		token.Credits,
	).Error
}

func (r *repo) FindByToken(ctx context.Context, db *gorm.DB, token string) (*referraldomain.Token, error) {
	var record referraldomain.Token
	err := db.WithContext(ctx).Raw(
		`SELECT `+tokenColumns+` FROM tokens WHERE token = ?`,
		token,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]referraldomain.Token, error) {
	var tokens []referraldomain.Token
	err := db.WithContext(ctx).Raw(
		`SELECT ` + tokenColumns + ` FROM tokens ORDER BY created_at DESC`,
	).Scan(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *repo) Claim(ctx context.Context, db *gorm.DB, token, usedBy string) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE tokens SET is_used = ?, used_by = ? WHERE token = ? AND is_used = ?`,
		true,
		usedBy,
		token,
		false,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) CountAvailable(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM tokens WHERE is_used = ?`,
		false,
	).Scan(&count).Error
	return count, err
}
