package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	authdomain "github.com/keymasterhq/keymaster/internal/auth/domain"
	devicedomain "github.com/keymasterhq/keymaster/internal/device/domain"
	keydomain "github.com/keymasterhq/keymaster/internal/licensekey/domain"
	referraldomain "github.com/keymasterhq/keymaster/internal/referral/domain"
	resellerdomain "github.com/keymasterhq/keymaster/internal/reseller/domain"
	updatedomain "github.com/keymasterhq/keymaster/internal/update/domain"
	"gorm.io/gorm"
)

//go:embed sql/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "sql"

// RunMigrations applies the embedded schema so a fresh database is usable
// on first start without any external tooling.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB, so skip it.

	return nil
}

// AutoMigrate covers the non-postgres dialects where the embedded SQL does
// not apply. It creates the same tables and unique indexes from the models.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(
		&authdomain.Admin{},
		&authdomain.Session{},
		&resellerdomain.Reseller{},
		&referraldomain.Token{},
		&keydomain.Key{},
		&devicedomain.Device{},
		&updatedomain.Update{},
	)
}
