package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	ListByKey(ctx context.Context, keyID snowflake.ID) ([]Device, error)
	// RemoveFromOwnedKey deletes one binding after confirming the key
	// belongs to the owner. AdminOwnerID semantics are handled by the
	// caller passing the key's real owner.
	RemoveFromOwnedKey(ctx context.Context, ownerID, keyID snowflake.ID, deviceID string) error
	// ResetAll wipes every binding for every key. Irreversible, global,
	// and intentionally not key-scoped. Keys are untouched.
	ResetAll(ctx context.Context) (int64, error)
}

var (
	ErrKeyNotFound    = errors.New("key_not_found")
	ErrDeviceNotFound = errors.New("device_not_found")
)
