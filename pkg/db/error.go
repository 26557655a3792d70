package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsDuplicateKeyErr reports whether err came from a unique-constraint
// violation. The device registrar and the key generator both rely on this to
// turn insert races into normal control flow.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	// Fallbacks for drivers that only expose the message text.
	msg := err.Error()
	if strings.Contains(msg, "duplicate key value violates unique constraint") {
		return true
	}
	if strings.Contains(msg, "Error 1062") {
		return true
	}
	return strings.Contains(msg, "UNIQUE constraint failed")
}
