package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/slok/missionctl/internal/log"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded entity store schema.
type Migrator struct {
	db     *sql.DB
	logger log.Logger
}

// NewMigrator creates a new migrator instance.
func NewMigrator(db *sql.DB, logger log.Logger) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = log.Noop
	}

	return &Migrator{
		db:     db,
		logger: logger.WithValues(log.Kv{"svc": "storage.Migrator"}),
	}, nil
}

// Up runs all the pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	return m.run(ctx, "apply", func(inst *migrate.Migrate) error { return inst.Up() })
}

// Down reverts all migrations, this drops every table.
func (m *Migrator) Down(ctx context.Context) error {
	return m.run(ctx, "revert", func(inst *migrate.Migrate) error { return inst.Down() })
}

// Version returns the current schema version.
func (m *Migrator) Version(ctx context.Context) (version uint, dirty bool, err error) {
	inst, closeSrc, err := m.instance(ctx)
	defer closeSrc()
	if err != nil {
		return 0, false, err
	}

	version, dirty, err = inst.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, fmt.Errorf("could not get schema version: %w", err)
	}

	return version, dirty, nil
}

func (m *Migrator) run(ctx context.Context, action string, fn func(inst *migrate.Migrate) error) error {
	inst, closeSrc, err := m.instance(ctx)
	defer closeSrc()
	if err != nil {
		return err
	}

	err = fn(inst)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not %s migrations: %w", action, err)
	}

	m.logger.Debugf("Migrations %s finished", action)
	return nil
}

// instance creates a migrate instance over the embedded SQL files.
func (m *Migrator) instance(_ context.Context) (instance *migrate.Migrate, closeSrc func(), err error) {
	closeSrc = func() {}

	driver, err := sqlite3.WithInstance(m.db, &sqlite3.Config{})
	if err != nil {
		return nil, closeSrc, fmt.Errorf("could not create driver: %w", err)
	}

	src, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		return nil, closeSrc, fmt.Errorf("could not create fs: %w", err)
	}
	closeSrc = func() {
		if err := src.Close(); err != nil {
			m.logger.Errorf("could not close migration source: %s", err)
		}
	}

	instance, err = migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return nil, closeSrc, fmt.Errorf("could not create migration instance: %w", err)
	}

	return instance, closeSrc, nil
}
