package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	devicedomain "github.com/keymasterhq/keymaster/internal/device/domain"
	"github.com/keymasterhq/keymaster/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() devicedomain.Repository {
	return &repo{}
}

func (r *repo) FindByKeyID(ctx context.Context, conn *gorm.DB, keyID snowflake.ID) ([]devicedomain.Device, error) {
	var devices []devicedomain.Device
	err := conn.WithContext(ctx).Raw(
		`SELECT id, key_id, device_id, first_connected
		 FROM devices WHERE key_id = ? ORDER BY first_connected ASC`,
		keyID,
	).Scan(&devices).Error
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *repo) CountByKeyID(ctx context.Context, conn *gorm.DB, keyID snowflake.ID) (int, error) {
	var count int
	err := conn.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM devices WHERE key_id = ?`,
		keyID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountByKeyIDs(ctx context.Context, conn *gorm.DB, keyIDs []snowflake.ID) (map[snowflake.ID]int, error) {
	counts := make(map[snowflake.ID]int, len(keyIDs))
	if len(keyIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		KeyID snowflake.ID
		Count int
	}
	err := conn.WithContext(ctx).Raw(
		`SELECT key_id, COUNT(*) AS count FROM devices WHERE key_id IN ? GROUP BY key_id`,
		keyIDs,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.KeyID] = row.Count
	}
	return counts, nil
}

// InsertIfCapacity enforces the device limit and the (key, device)
// uniqueness in one atomic step. Two concurrent distinct devices racing for
// the last slot must not both get a row, so same-key registrations are
// serialized: postgres takes a per-key advisory transaction lock, mysql
// locks the key row, and sqlite's single writer makes the conditional
// insert atomic on its own.
func (r *repo) InsertIfCapacity(ctx context.Context, conn *gorm.DB, device *devicedomain.Device, limit int) (bool, error) {
	if conn.Dialector.Name() == "sqlite" {
		return r.conditionalInsert(ctx, conn, device, limit)
	}

	inserted := false
	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch tx.Dialector.Name() {
		case "postgres":
			if err := tx.Exec(`SELECT pg_advisory_xact_lock(?)`, int64(device.KeyID)).Error; err != nil {
				return err
			}
		case "mysql":
			if err := tx.Exec(`SELECT id FROM license_keys WHERE id = ? FOR UPDATE`, device.KeyID).Error; err != nil {
				return err
			}
		}

		var count int
		if err := tx.Raw(`SELECT COUNT(*) FROM devices WHERE key_id = ?`, device.KeyID).Scan(&count).Error; err != nil {
			return err
		}
		if count >= limit {
			return nil
		}

		if err := r.insert(tx, device); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return devicedomain.ErrAlreadyRegistered
			}
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

// conditionalInsert performs the capacity check inside the INSERT itself.
func (r *repo) conditionalInsert(ctx context.Context, conn *gorm.DB, device *devicedomain.Device, limit int) (bool, error) {
	result := conn.WithContext(ctx).Exec(
		`INSERT INTO devices (id, key_id, device_id, first_connected)
		 SELECT ?, ?, ?, ?
		 WHERE (SELECT COUNT(*) FROM devices WHERE key_id = ?) < ?`,
		device.ID,
		device.KeyID,
		device.DeviceID,
		device.FirstConnected,
		device.KeyID,
		limit,
	)
	if result.Error != nil {
		if db.IsDuplicateKeyErr(result.Error) {
			return false, devicedomain.ErrAlreadyRegistered
		}
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) insert(tx *gorm.DB, device *devicedomain.Device) error {
	return tx.Exec(
		`INSERT INTO devices (id, key_id, device_id, first_connected)
		 VALUES (?, ?, ?, ?)`,
		device.ID,
		device.KeyID,
		device.DeviceID,
		device.FirstConnected,
	).Error
}

func (r *repo) Remove(ctx context.Context, conn *gorm.DB, keyID snowflake.ID, deviceID string) (bool, error) {
	result := conn.WithContext(ctx).Exec(
		`DELETE FROM devices WHERE key_id = ? AND device_id = ?`,
		keyID,
		deviceID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ResetAll(ctx context.Context, conn *gorm.DB) (int64, error) {
	result := conn.WithContext(ctx).Exec(`DELETE FROM devices`)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
