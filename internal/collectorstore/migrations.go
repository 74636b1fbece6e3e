package collectorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	sqlite_migrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
)

// LatestMigrationVersion guards against opening a database a newer
// build of this daemon already migrated forward.
//
// NOTE: bump this whenever a migration is added.
const LatestMigrationVersion uint = 3

// MigrationTarget decides how far applyMigrations should go, given the
// database's current version and the highest version known to the
// embedded migration source.
type MigrationTarget func(mig *migrate.Migrate,
	currentDBVersion int, maxMigrationVersion uint) error

var TargetLatest MigrationTarget = func(mig *migrate.Migrate, _ int, _ uint) error {
	return mig.Up()
}

func TargetVersion(version uint) MigrationTarget {
	return func(mig *migrate.Migrate, _ int, _ uint) error {
		return mig.Migrate(version)
	}
}

// ErrMigrationDowngrade is returned when the on-disk database reports a
// version newer than this binary's latest known migration.
var ErrMigrationDowngrade = errors.New(
	"collectorstore: database downgrade detected",
)

type migrateOptions struct {
	latestVersion uint
}

func defaultMigrateOptions() *migrateOptions {
	return &migrateOptions{latestVersion: LatestMigrationVersion}
}

type MigrateOpt func(*migrateOptions)

func WithLatestVersion(v uint) MigrateOpt {
	return func(o *migrateOptions) { o.latestVersion = v }
}

// migrationLogger wraps slog.Logger to implement the migrate.Logger
// interface expected by golang-migrate.
type migrationLogger struct {
	log *slog.Logger
}

func (m *migrationLogger) Printf(format string, v ...any) {
	format = strings.TrimRight(format, "\n")
	m.log.Info(fmt.Sprintf(format, v...))
}

func (m *migrationLogger) Verbose() bool { return true }

// applyMigrations executes the migration files found in fsys under path
// against driver, up to or down to the version described by target.
func applyMigrations(fsys fs.FS, driver database.Driver, path, dbName string,
	target MigrationTarget, opts *migrateOptions, log *slog.Logger) error {

	source, err := httpfs.New(http.FS(fsys), path)
	if err != nil {
		return err
	}

	mig, err := migrate.NewWithInstance("migrations", source, dbName, driver)
	if err != nil {
		return err
	}
	mig.Log = &migrationLogger{log: log}

	version, dirty, err := mig.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf(
			"unable to determine current migration version: %w", err,
		)
	}
	if dirty {
		return fmt.Errorf(
			"database is in a dirty state at version %v, manual "+
				"intervention required", version,
		)
	}
	if version > int(opts.latestVersion) {
		return fmt.Errorf(
			"%w: db_version=%v, latest_migration_version=%v",
			ErrMigrationDowngrade, version, opts.latestVersion,
		)
	}

	log.InfoContext(
		context.Background(), "attempting to apply migration(s)",
		"current_db_version", version,
		"latest_migration_version", opts.latestVersion,
	)

	err = target(mig, version, opts.latestVersion)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	newVersion, _, err := driver.Version()
	if err != nil {
		return fmt.Errorf("unable to get current db version: %w", err)
	}
	log.InfoContext(
		context.Background(), "database version after migration",
		"current_db_version", newVersion,
	)

	return nil
}

// backupSqliteDatabase writes a point-in-time copy of srcDB to
// "<path>.<unixnano>.backup" using sqlite's VACUUM INTO, so a botched
// migration can be recovered from.
func backupSqliteDatabase(srcDB *sql.DB, dbFullFilePath string,
	log *slog.Logger) error {

	if srcDB == nil {
		return fmt.Errorf("backup source database is nil")
	}

	backupPath := fmt.Sprintf(
		"%s.%d.backup", dbFullFilePath, time.Now().UnixNano(),
	)

	log.InfoContext(context.Background(), "creating backup of database file",
		"source", dbFullFilePath, "backup", backupPath,
	)

	stmt, err := srcDB.Prepare("VACUUM INTO ?;")
	if err != nil {
		return err
	}
	defer stmt.Close()

	_, err = stmt.Exec(backupPath)
	return err
}

// ExecuteMigrations runs migrations for the sqlite database up to
// target.
func (s *SqliteStore) ExecuteMigrations(target MigrationTarget,
	optFuncs ...MigrateOpt) error {

	opts := defaultMigrateOptions()
	for _, optFunc := range optFuncs {
		optFunc(opts)
	}

	driver, err := sqlite_migrate.WithInstance(s.DB(), &sqlite_migrate.Config{})
	if err != nil {
		return fmt.Errorf("error creating sqlite migration driver: %w", err)
	}

	return applyMigrations(
		sqlSchemas, driver, "migrations", "sqlite", target, opts, s.log,
	)
}

// DB exposes the underlying connection for migration tooling.
func (s *SqliteStore) DB() *sql.DB {
	return s.BaseDB.DB
}
