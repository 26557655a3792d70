package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	keydomain "github.com/keymasterhq/keymaster/internal/licensekey/domain"
	"github.com/keymasterhq/keymaster/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() keydomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, key *keydomain.Key) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO license_keys (id, key_string, game, owner_id, created_at, expires_at, device_limit, is_revoked)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.ID,
		key.KeyString,
		key.Game,
		key.OwnerID,
		key.CreatedAt,
		key.ExpiresAt,
		key.DeviceLimit,
		key.IsRevoked,
	).Error
}

func (r *repo) FindByString(ctx context.Context, db *gorm.DB, keyString string) (*keydomain.Key, error) {
	var key keydomain.Key
	err := db.WithContext(ctx).Raw(
		`SELECT id, key_string, game, owner_id, created_at, expires_at, device_limit, is_revoked
		 FROM license_keys WHERE key_string = ?`,
		keyString,
	).Scan(&key).Error
	if err != nil {
		return nil, err
	}
	if key.ID == 0 {
		return nil, nil
	}
	return &key, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*keydomain.Key, error) {
	var key keydomain.Key
	err := db.WithContext(ctx).Raw(
		`SELECT id, key_string, game, owner_id, created_at, expires_at, device_limit, is_revoked
		 FROM license_keys WHERE id = ?`,
		id,
	).Scan(&key).Error
	if err != nil {
		return nil, err
	}
	if key.ID == 0 {
		return nil, nil
	}
	return &key, nil
}

func (r *repo) FindByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) ([]keydomain.Key, error) {
	var keys []keydomain.Key
	err := db.WithContext(ctx).Raw(
		`SELECT id, key_string, game, owner_id, created_at, expires_at, device_limit, is_revoked
		 FROM license_keys WHERE owner_id = ? ORDER BY created_at DESC`,
		ownerID,
	).Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *repo) SetRevoked(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE license_keys SET is_revoked = ? WHERE id = ?`,
		true,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListFiltered(ctx context.Context, db *gorm.DB, filter keydomain.ListFilter, page pagination.Params) ([]keydomain.Key, int64, error) {
	where, args := buildFilter(filter)

	var total int64
	if err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM license_keys`+where, args...,
	).Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	var keys []keydomain.Key
	listArgs := append(append([]interface{}{}, args...), page.Limit, page.Offset())
	if err := db.WithContext(ctx).Raw(
		`SELECT id, key_string, game, owner_id, created_at, expires_at, device_limit, is_revoked
		 FROM license_keys`+where+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		listArgs...,
	).Scan(&keys).Error; err != nil {
		return nil, 0, err
	}
	return keys, total, nil
}

func (r *repo) CountActive(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM license_keys WHERE is_revoked = ? AND expires_at > ?`,
		false,
		now,
	).Scan(&count).Error
	return count, err
}

func buildFilter(filter keydomain.ListFilter) (string, []interface{}) {
	clauses := make([]string, 0, 3)
	args := make([]interface{}, 0, 4)

	if search := strings.TrimSpace(filter.Search); search != "" {
		clauses = append(clauses, "UPPER(key_string) LIKE ?")
		args = append(args, "%"+strings.ToUpper(search)+"%")
	}
	if game := strings.TrimSpace(filter.Game); game != "" {
		clauses = append(clauses, "game = ?")
		args = append(args, game)
	}
	switch filter.Status {
	case keydomain.StatusRevoked:
		clauses = append(clauses, "is_revoked = ?")
		args = append(args, true)
	case keydomain.StatusExpired:
		clauses = append(clauses, "is_revoked = ? AND expires_at <= ?")
		args = append(args, false, filter.Now)
	case keydomain.StatusActive:
		clauses = append(clauses, "is_revoked = ? AND expires_at > ?")
		args = append(args, false, filter.Now)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
