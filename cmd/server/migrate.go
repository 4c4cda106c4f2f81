package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soaringjerry/Vigil/internal/config"
	dbstore "github.com/soaringjerry/Vigil/internal/db"
)

var migrateDryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context(), cmd, cfg, logger)
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "List pending SQLite migrations without applying them")
}

func runMigrate(ctx context.Context, cmd *cobra.Command, c *config.Config, log *zap.Logger) error {
	switch c.Database.Type {
	case dbstore.TypeSQLite:
		return migrateSQLite(ctx, cmd, c.Database.URL, c.Database.MigrationsDir, log)
	case dbstore.TypePostgres:
		if migrateDryRun {
			return fmt.Errorf("--dry-run is only supported for sqlite")
		}
		s, err := dbstore.OpenPostgres(c.Database.URL, log.Named("db"))
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		log.Info("postgres schema is up to date")
		return nil
	default:
		log.Info("nothing to migrate", zap.String("database", c.Database.Type))
		return nil
	}
}

func migrateSQLite(ctx context.Context, cmd *cobra.Command, sqlitePath, migrationsDir string, log *zap.Logger) error {
	if sqlitePath == "" {
		return fmt.Errorf("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(sqlitePath), 0o755); err != nil {
		return fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", filepath.ToSlash(sqlitePath))
	sqliteDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer func() {
		if cerr := sqliteDB.Close(); cerr != nil {
			log.Warn("failed to close sqlite db", zap.Error(cerr))
		}
	}()

	pending, err := dbstore.PendingMigrations(ctx, sqliteDB, migrationsDir)
	if err != nil {
		return err
	}
	if migrateDryRun {
		for _, name := range pending {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	}
	if len(pending) == 0 {
		log.Info("sqlite schema is up to date", zap.String("path", sqlitePath))
		return nil
	}
	if err := dbstore.RunMigrationsContext(ctx, sqliteDB, migrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("applied migrations", zap.String("path", sqlitePath), zap.Strings("names", pending))
	return nil
}
