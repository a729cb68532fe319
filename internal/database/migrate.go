package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema means an earlier migration failed partway. The schema
// has to be repaired by hand and the version forced before startup
// can migrate again.
var ErrDirtySchema = errors.New("schema is dirty")

// migrator is the part of *migrate.Migrate that applyMigrations drives.
type migrator interface {
	Version() (uint, bool, error)
	Up() error
}

// Migrate applies every pending embedded migration to the database at
// databaseURL. It refuses to run on a dirty schema.
func Migrate(databaseURL string, log *zap.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warn("Failed to close migrator", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
		}
	}()

	return applyMigrations(m, log)
}

func applyMigrations(m migrator, log *zap.Logger) error {
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		log.Error("Schema is dirty, refusing to migrate", zap.Uint("version", version))
		return fmt.Errorf("%w at version %d: fix the schema, then run `migrate force` with the last good version", ErrDirtySchema, version)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("Schema is up to date", zap.Uint("version", version))
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	newVersion, _, _ := m.Version()
	log.Info("Schema migrated", zap.Uint("version", newVersion))
	return nil
}
