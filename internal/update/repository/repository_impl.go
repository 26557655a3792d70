package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	updatedomain "github.com/keymasterhq/keymaster/internal/update/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() updatedomain.Repository {
	return &repo{}
}

const updateColumns = `id, code, title, message, button_text, link_url, games, is_active, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, update *updatedomain.Update) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO online_updates (`+updateColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		update.ID,
		update.Code,
		update.Title,
		update.Message,
		update.ButtonText,
		update.LinkURL,
		update.Games,
		update.IsActive,
		update.CreatedAt,
		update.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*updatedomain.Update, error) {
	var update updatedomain.Update
	err := db.WithContext(ctx).Raw(
		`SELECT `+updateColumns+` FROM online_updates WHERE id = ?`,
		id,
	).Scan(&update).Error
	if err != nil {
		return nil, err
	}
	if update.ID == 0 {
		return nil, nil
	}
	return &update, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]updatedomain.Update, error) {
	var updates []updatedomain.Update
	err := db.WithContext(ctx).Raw(
		`SELECT ` + updateColumns + ` FROM online_updates ORDER BY created_at DESC`,
	).Scan(&updates).Error
	if err != nil {
		return nil, err
	}
	return updates, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB) ([]updatedomain.Update, error) {
	var updates []updatedomain.Update
	err := db.WithContext(ctx).Raw(
		`SELECT `+updateColumns+` FROM online_updates WHERE is_active = ? ORDER BY created_at DESC`,
		true,
	).Scan(&updates).Error
	if err != nil {
		return nil, err
	}
	return updates, nil
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, update *updatedomain.Update) error {
	return db.WithContext(ctx).Exec(
		`UPDATE online_updates
		 SET title = ?, message = ?, button_text = ?, link_url = ?, games = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		update.Title,
		update.Message,
		update.ButtonText,
		update.LinkURL,
		update.Games,
		update.IsActive,
		update.UpdatedAt,
		update.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM online_updates WHERE id = ?`, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) CountByActive(ctx context.Context, db *gorm.DB) (int64, int64, error) {
	var active, inactive int64
	if err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM online_updates WHERE is_active = ?`, true,
	).Scan(&active).Error; err != nil {
		return 0, 0, err
	}
	if err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM online_updates WHERE is_active = ?`, false,
	).Scan(&inactive).Error; err != nil {
		return 0, 0, err
	}
	return active, inactive, nil
}
