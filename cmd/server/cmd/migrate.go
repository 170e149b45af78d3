package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/altamira-asset/indexes-server/internal/calendar"
	"github.com/altamira-asset/indexes-server/internal/config"
	"github.com/altamira-asset/indexes-server/internal/storage/postgres"
	"github.com/spf13/cobra"
)

var (
	migrationsPath   string
	migrateDownSteps int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		if err := postgres.MigrateUp(cfg.Database.URL, migrationsPath); err != nil {
			return err
		}
		return syncHolidays(cmd.Context(), cfg)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("config error: %w", err)
		}
		return postgres.MigrateDown(cfg.Database.URL, migrationsPath, migrateDownSteps)
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsPath, "path", "", "migrations directory (default: "+postgres.DefaultMigrationsPath+")")
	migrateDownCmd.Flags().IntVar(&migrateDownSteps, "steps", 1, "number of migrations to roll back")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
}

// syncHolidays loads the YAML holiday calendar into the holidays table, when
// one is configured.
func syncHolidays(ctx context.Context, cfg config.Config) error {
	if cfg.Calendar.HolidaysFile == "" {
		return nil
	}
	holidays, err := calendar.LoadHolidays(cfg.Calendar.HolidaysFile)
	if err != nil {
		return err
	}

	poolCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := postgres.NewPool(poolCtx, cfg.Database.URL, cfg.Database.MaxConnections, cfg.Database.MaxIdle)
	cancel()
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	repo, err := postgres.NewIndexRepository(pool)
	if err != nil {
		return err
	}
	return repo.ReplaceHolidays(ctx, holidays)
}
