package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// goose keeps its dialect, filesystem and logger in package globals.
var gooseMu sync.Mutex

// Migrate applies pending schema migrations. It is idempotent.
// Migration output goes to logger; nil uses a "[db] " stderr logger.
func (db *DB) Migrate(ctx context.Context, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(os.Stderr, "[db] ", log.LstdFlags)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := setupGoose(logger); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db.conn.DB, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Version reports the applied schema version.
func (db *DB) Version(ctx context.Context) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := setupGoose(log.New(os.Stderr, "[db] ", log.LstdFlags)); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersionContext(ctx, db.conn.DB)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

func setupGoose(logger *log.Logger) error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	dir, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to get migrations directory: %w", err)
	}
	goose.SetBaseFS(dir)
	goose.SetLogger(logger)
	return nil
}
