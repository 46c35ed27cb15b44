package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AdamBeresnev/tourney-bot/migrations"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// DSN builds the sqlite connection string for a database file. Immediate
// transactions make concurrent writers queue on the busy timeout instead of
// failing on lock upgrade.
func DSN(path string) string {
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", path)
}

// MemoryDSN is used by tests; every connection gets its own database, so the
// pool must stay at one connection.
const MemoryDSN = "file::memory:?_foreign_keys=on"

func Open(dsn string) (*sqlx.DB, error) {
	database, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}

	// SQLite allows one writer at a time; a single connection serializes transactions.
	database.SetMaxOpenConns(1)

	slog.Info("database connected", "dsn", dsn)
	return database, nil
}

func RunMigrations(database *sql.DB) error {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	driver, err := sqlite3.WithInstance(database, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
