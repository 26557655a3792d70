package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	keydomain "github.com/keymasterhq/keymaster/internal/licensekey/domain"
	resellerdomain "github.com/keymasterhq/keymaster/internal/reseller/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() resellerdomain.Repository {
	return &repo{}
}

// ProvideLedger exposes the same store as the key issuance credit ledger.
func ProvideLedger() keydomain.CreditLedger {
	return &repo{}
}

const resellerColumns = `id, username, password_hash, credits, registration_date, is_active, referral_token, metadata`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, reseller *resellerdomain.Reseller) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO resellers (`+resellerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		reseller.ID,
		reseller.Username,
		reseller.PasswordHash,
		reseller.Credits,
		reseller.RegistrationDate,
		reseller.IsActive,
		reseller.ReferralToken,
		reseller.Metadata,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*resellerdomain.Reseller, error) {
	var reseller resellerdomain.Reseller
	err := db.WithContext(ctx).Raw(
		`SELECT `+resellerColumns+` FROM resellers WHERE id = ?`,
		id,
	).Scan(&reseller).Error
	if err != nil {
		return nil, err
	}
	if reseller.ID == 0 {
		return nil, nil
	}
	return &reseller, nil
}

func (r *repo) FindByUsername(ctx context.Context, db *gorm.DB, username string) (*resellerdomain.Reseller, error) {
	var reseller resellerdomain.Reseller
	err := db.WithContext(ctx).Raw(
		`SELECT `+resellerColumns+` FROM resellers WHERE username = ?`,
		username,
	).Scan(&reseller).Error
	if err != nil {
		return nil, err
	}
	if reseller.ID == 0 {
		return nil, nil
	}
	return &reseller, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]resellerdomain.Reseller, error) {
	var resellers []resellerdomain.Reseller
	err := db.WithContext(ctx).Raw(
		`SELECT ` + resellerColumns + ` FROM resellers ORDER BY registration_date DESC`,
	).Scan(&resellers).Error
	if err != nil {
		return nil, err
	}
	return resellers, nil
}

func (r *repo) AdjustCredits(ctx context.Context, db *gorm.DB, id snowflake.ID, delta int) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE resellers SET credits = credits + ? WHERE id = ? AND credits + ? >= 0`,
		delta,
		id,
		delta,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE resellers SET is_active = ? WHERE id = ?`,
		active,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(`SELECT COUNT(*) FROM resellers`).Scan(&count).Error
	return count, err
}

// Debit satisfies the key issuance credit ledger. The balance guard lives
// in the WHERE clause so concurrent batches cannot overspend.
func (r *repo) Debit(ctx context.Context, tx *gorm.DB, ownerID snowflake.ID, amount int) (bool, error) {
	if amount <= 0 {
		return false, nil
	}
	result := tx.WithContext(ctx).Exec(
		`UPDATE resellers SET credits = credits - ? WHERE id = ? AND credits >= ?`,
		amount,
		ownerID,
		amount,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
