package database

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"campusmap_backend/internals/logger"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

type migrationLogger struct {
	log *logrus.Logger
}

func (l migrationLogger) Printf(format string, v ...any) { l.log.Infof(format, v...) }
func (l migrationLogger) Verbose() bool                  { return l.log.IsLevelEnabled(logrus.DebugLevel) }

// newMigrate opens dsn and binds it to the embedded migrations.
// release closes the database handle.
func newMigrate(dsn string) (m *migrate.Migrate, release func(), err error) {
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open postgres for migrations")
	}
	release = func() { _ = sqlDB.Close() }

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		release()
		return nil, nil, errors.Wrap(err, "create migrate driver")
	}
	src, err := migrationSource()
	if err != nil {
		release()
		return nil, nil, err
	}
	m, err = migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		release()
		return nil, nil, errors.Wrap(err, "create migrate instance")
	}
	return m, release, nil
}

func migrationSource() (source.Driver, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "open embedded migrations")
	}
	return src, nil
}

// Migrate applies the embedded SQL migrations. version 0 means latest.
func Migrate(dsn string, version uint) error {
	log := logger.GetLogger("migrate")

	m, release, err := newMigrate(dsn)
	if err != nil {
		return err
	}
	defer release()
	m.Log = migrationLogger{log: log}

	if version != 0 {
		err = m.Migrate(version)
	} else {
		err = m.Up()
	}
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("No new migrations to apply")
		return nil
	}
	if err != nil {
		v, dirty, _ := m.Version()
		log.WithError(err).Errorf("migration failed, database version=%d dirty=%t", v, dirty)
		return err
	}
	log.Info("Successfully applied migrations")
	return nil
}

// Rollback reverts the last applied migration.
func Rollback(dsn string) error {
	m, release, err := newMigrate(dsn)
	if err != nil {
		return err
	}
	defer release()
	m.Log = migrationLogger{log: logger.GetLogger("migrate")}

	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
