// Package cli implements the helpdesk command line: the HTTP server and the
// database maintenance commands that share its configuration.
package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-helpdesk-backend/internal/config"
	"github.com/tbourn/go-helpdesk-backend/internal/observability"
	"github.com/tbourn/go-helpdesk-backend/internal/repo"
	"github.com/tbourn/go-helpdesk-backend/internal/sysutil"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	envFile string
	dbPath  string
	version string
}

// NewRootCommand builds the helpdesk command tree.
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "helpdesk",
		Short:         "Helpdesk backend",
		Long:          "Helpdesk backend: reports with advisory locks, notifications, FAQs and support chat over a JSON API.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before reading the environment (ignored when missing)")
	root.PersistentFlags().StringVar(&g.dbPath, "db", "", "SQLite path, overrides DB_PATH")
	root.PersistentFlags().StringVar(&g.version, "version-override", "", "version reported in logs and traces (default: build info)")

	root.AddCommand(
		newServeCommand(g),
		newMigrateCommand(g),
		newSeedCommand(g),
		newExportCommand(g),
		newImportCommand(g),
	)
	return root
}

// loadConfig reads the dotenv file, then the environment, then applies the
// command line overrides and installs the root logger.
func (g *globalFlags) loadConfig(cmd *cobra.Command) (config.Config, error) {
	if g.envFile != "" {
		if err := godotenv.Load(g.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, fmt.Errorf("load %s: %w", g.envFile, err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.DBPath = sysutil.FirstNonEmpty(g.dbPath, cfg.DBPath)

	observability.SetupLogging(observability.LogOptions{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: cfg.OTEL.ServiceName,
		Out:     cmd.ErrOrStderr(),
	})
	return cfg, nil
}

// openDB opens and migrates the configured database.
func openDB(cfg config.Config) (*gorm.DB, error) {
	if err := sysutil.EnsureParentDir(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("db dir: %w", err)
	}
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Warn().Err(err).Msg("close db")
		}
	}
}
