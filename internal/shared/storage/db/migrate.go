package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"github.com/pressly/goose/v3"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrationFiles embed.FS

var (
	gooseOnce sync.Once
	gooseErr  error
)

// MigrationCommands are the goose commands accepted by Migrate.
var MigrationCommands = []string{"up", "down", "status", "version"}

func setupGoose() error {
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrationFiles)
		gooseErr = goose.SetDialect("postgres")
	})
	return gooseErr
}

// RunMigrations brings the schema up to date. A nil database is a no-op so
// the in-memory dev mode can share the startup path.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	if database == nil {
		return nil
	}
	return Migrate(ctx, database, "up")
}

// Migrate runs a single goose command against the embedded migrations.
func Migrate(ctx context.Context, database *sql.DB, command string) error {
	if !validMigrationCommand(command) {
		return fmt.Errorf("migrate: unknown command %q", command)
	}
	if database == nil {
		return fmt.Errorf("migrate: database not configured")
	}
	if err := setupGoose(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := goose.RunContext(ctx, command, database, migrationsDir); err != nil {
		return fmt.Errorf("migrate %s: %w", command, err)
	}
	return nil
}

func validMigrationCommand(command string) bool {
	for _, c := range MigrationCommands {
		if c == command {
			return true
		}
	}
	return false
}

// MigrationNames lists the embedded migration files in apply order.
func MigrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationFiles, migrationsDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
