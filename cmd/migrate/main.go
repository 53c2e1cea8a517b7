package main

// Apply or inspect database migrations:
//   go run ./cmd/migrate [up|down|status|version]

import (
	"context"
	"os"
	"strings"

	"farmdata-backend/internal/shared/config"
	"farmdata-backend/internal/shared/storage/db"
	"farmdata-backend/internal/shared/telemetry"
)

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = strings.ToLower(strings.TrimSpace(os.Args[1]))
	}

	cfg, err := config.Load()
	if err != nil {
		telemetry.Error("migrate.config_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	if cfg.DatabaseURL == "" {
		telemetry.Error("migrate.no_database", map[string]any{"hint": "set DATABASE_URL"})
		os.Exit(1)
	}

	ctx := context.Background()
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultMigrateOptions()))
	if err != nil {
		telemetry.Error("migrate.connect_failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := db.Migrate(ctx, sqlDB, command); err != nil {
		telemetry.Error("migrate.failed", map[string]any{"command": command, "error": err.Error()})
		sqlDB.Close()
		os.Exit(1)
	}

	names, _ := db.MigrationNames()
	telemetry.Info("migrate.done", map[string]any{"command": command, "migrations": names})
}
