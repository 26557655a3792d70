package service

import (
	"crypto/rand"
	"strings"
)

const (
	keySegmentLen = 5
	keySegments   = 3
	keyCharset    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// Generated strings can collide with previously issued keys. The
	// uniqueness constraint catches the collision and the caller
	// regenerates, up to this bound.
	maxGenerateAttempts = 5
)

// generateKeyString builds a key like FIRE-7K2MQ-X81DZ-P4N6C from the game's
// catalog prefix and three random uppercase alphanumeric segments.
func generateKeyString(prefix string) (string, error) {
	buf := make([]byte, keySegmentLen*keySegments)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	var b strings.Builder
	b.Grow(len(prefix) + keySegments*(keySegmentLen+1))
	b.WriteString(prefix)
	for i, raw := range buf {
		if i%keySegmentLen == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(keyCharset[int(raw)%len(keyCharset)])
	}
	return b.String(), nil
}
