// Package domain contains core types for the device binding store.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Device is one (key, device identifier) binding. The identifier is an
// opaque string supplied by the client; the pair is unique and consumes one
// unit of the key's device limit.
type Device struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	KeyID          snowflake.ID `gorm:"column:key_id;not null;uniqueIndex:ux_devices_key_device,priority:1"`
	DeviceID       string       `gorm:"column:device_id;type:text;not null;uniqueIndex:ux_devices_key_device,priority:2"`
	FirstConnected time.Time    `gorm:"column:first_connected;not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Device) TableName() string { return "devices" }

// ErrAlreadyRegistered signals that the (key, device) pair already has a row.
// Callers racing on first registration reinterpret this as success.
var ErrAlreadyRegistered = errors.New("device_already_registered")
