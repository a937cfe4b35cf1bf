package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator creates (and can wipe) the activities schema.
// Every call opens its own short lived database/sql connection.
type Migrator struct {
	connString string
}

func NewMigrator(params NewDBPoolParams) *Migrator {
	return &Migrator{
		connString: params.ConnString(),
	}
}

// Up applies all pending migrations. Already being at the latest version is not an error.
func (m *Migrator) Up() error {
	return m.run(func(mig *migrate.Migrate) error {
		if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration up failed: %w", err)
		}
		return nil
	})
}

// Clean drops every object in the database, migration bookkeeping included.
func (m *Migrator) Clean() error {
	return m.run(func(mig *migrate.Migrate) error {
		if err := mig.Drop(); err != nil {
			return fmt.Errorf("drop failed: %w", err)
		}
		return nil
	})
}

// CleanAndMigrate wipes the database and migrates it to the latest version.
func (m *Migrator) CleanAndMigrate() error {
	if err := m.Clean(); err != nil {
		return err
	}
	return m.Up()
}

// Version returns the current migration version and dirty state.
// It returns 0, false, nil if no migrations have been applied yet.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	err = m.run(func(mig *migrate.Migrate) error {
		var verr error
		version, dirty, verr = mig.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			return nil
		}
		return verr
	})
	return version, dirty, err
}

func (m *Migrator) run(fn func(mig *migrate.Migrate) error) (err error) {
	mig, err := m.newMigrate()
	if err != nil {
		return err
	}
	defer func() {
		// closes the underlying *sql.DB too
		srcErr, dbErr := mig.Close()
		err = multierr.Combine(err, srcErr, dbErr)
	}()

	mig.Log = migrateLogger{}
	return fn(mig)
}

func (m *Migrator) newMigrate() (*migrate.Migrate, error) {
	sqlDB, err := sql.Open("postgres", m.connString)
	if err != nil {
		return nil, fmt.Errorf("open migrations db: %w", err)
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return nil, multierr.Combine(fmt.Errorf("create postgres migrate driver: %w", err), sqlDB.Close())
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, multierr.Combine(fmt.Errorf("open embedded migrations: %w", err), driver.Close())
	}

	mig, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, multierr.Combine(fmt.Errorf("create migrate instance: %w", err), driver.Close())
	}

	return mig, nil
}

// migrateLogger routes golang-migrate output to logrus.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	log.Debugf("migrate: "+format, v...)
}

func (migrateLogger) Verbose() bool {
	return log.IsLevelEnabled(log.DebugLevel)
}
