package collectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// defaultMaxConns caps open/idle connections. A single writer is
	// enforced regardless, since sqlite serializes writes.
	defaultMaxConns = 25

	defaultConnMaxLifetime = 10 * time.Minute

	// DefaultDBFileName is the file the daemon opens inside its data
	// directory when no explicit path is given.
	DefaultDBFileName = "collector.db"
)

// SqliteConfig holds the arguments needed to open the collector's
// sqlite database, mirroring internal/db.SqliteConfig.
type SqliteConfig struct {
	// DatabaseFileName is the full path to the sqlite file.
	DatabaseFileName string

	// SkipMigrations, if true, opens the connection without running
	// ExecuteMigrations. Used by tests that manage schema themselves.
	SkipMigrations bool

	// SkipMigrationDBBackup, if true, skips the VACUUM INTO backup
	// normally taken before a pending migration is applied.
	SkipMigrationDBBackup bool
}

func DefaultDBPath(dataDir string) string {
	return filepath.Join(dataDir, DefaultDBFileName)
}

// SqliteStore is a Store backed by an on-disk sqlite database, wired
// through golang-migrate for schema management, mirroring
// internal/db.SqliteStore.
type SqliteStore struct {
	cfg *SqliteConfig
	log *slog.Logger

	*Store
}

// NewSqliteStore opens (creating if necessary) the sqlite database
// described by cfg and runs pending migrations up to TargetLatest,
// backing up the existing file first, unless cfg.SkipMigrations is
// set.
func NewSqliteStore(cfg *SqliteConfig, log *slog.Logger) (*SqliteStore, error) {
	if log == nil {
		log = slog.Default()
	}

	dir := filepath.Dir(cfg.DatabaseFileName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		cfg.DatabaseFileName,
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxConns)
	db.SetMaxIdleConns(defaultMaxConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	if err := configurePragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	s := &SqliteStore{
		cfg:   cfg,
		log:   log,
		Store: NewStoreWithLogger(db, log),
	}

	if !cfg.SkipMigrations {
		if err := s.ExecuteMigrations(s.backupAndMigrate); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("error executing migrations: %w", err)
		}
	}

	return s, nil
}

// backupAndMigrate takes a VACUUM INTO backup of the database (unless
// disabled) before migrating it forward, but only when a migration is
// actually pending.
func (s *SqliteStore) backupAndMigrate(mig *migrate.Migrate,
	currentDBVersion int, maxMigrationVersion uint) error {

	versionUpgradePending := currentDBVersion < int(maxMigrationVersion)
	if !versionUpgradePending {
		s.log.InfoContext(
			context.Background(),
			"current database version is up-to-date, skipping "+
				"migration attempt and backup creation",
			"current_db_version", currentDBVersion,
			"max_migration_version", maxMigrationVersion,
		)
		return nil
	}

	if !s.cfg.SkipMigrationDBBackup {
		s.log.InfoContext(
			context.Background(),
			"creating database backup before applying migration(s)",
		)

		err := backupSqliteDatabase(s.DB(), s.cfg.DatabaseFileName, s.log)
		if err != nil {
			return err
		}
	} else {
		s.log.InfoContext(
			context.Background(),
			"skipping database backup creation before applying "+
				"migration(s)",
		)
	}

	s.log.InfoContext(context.Background(), "applying migrations to database")

	return mig.Up()
}

// configurePragmas sets additional sqlite pragmas for durability and
// throughput beyond what the connection DSN covers.
func configurePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA mmap_size = 268435456",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the underlying sqlite connection.
func (s *SqliteStore) Close() error {
	return s.DB().Close()
}
