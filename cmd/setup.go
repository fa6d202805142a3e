package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/echo/internal/shared"
)

// SetupDatabase writes a starter config when none exists, then brings the schema up to date.
// With --rollback it reverts the newest migration instead.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config, err := r.resolveConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	r.config = config

	r.logger.Info("opening database", "path", config.Database.Path)
	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if cmd.Bool("rollback") {
		return r.rollback(db)
	}

	applied, err := shared.RunMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	version, err := shared.CurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	r.logger.Info("migrations complete", "applied", applied, "version", version)
	return r.writePlain("✓ Database ready at %s (schema v%d, %d migrations applied)\n", config.Database.Path, version, applied)
}

func (r *Runner) rollback(db *sql.DB) error {
	before, err := shared.CurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if before == 0 {
		return r.writePlain("Nothing to roll back\n")
	}

	if err := shared.RollbackMigration(db); err != nil {
		return fmt.Errorf("failed to roll back migration %d: %w", before, err)
	}

	after, err := shared.CurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	r.logger.Warn("migration rolled back", "from", before, "to", after)
	return r.writePlain("✓ Rolled back schema v%d (now v%d)\n", before, after)
}

// resolveConfig loads path, creating it from the embedded template first when it is missing.
// A file that exists but does not parse is an error rather than a silent fallback to defaults.
func (r *Runner) resolveConfig(path string) (*shared.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := shared.CreateConfigFile(path); err != nil {
			return nil, err
		}
		r.logger.Info("config file created", "path", path)
		r.writePlain("✓ Wrote starter config to %s; fill in your platform credentials\n", path)
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
