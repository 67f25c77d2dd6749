// schedulehq-migrate applies and inspects database schema migrations.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/schedulehq/schedulehq/internal/db"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	var databaseURL string

	root := &cobra.Command{
		Use:   "schedulehq-migrate",
		Short: "Manage ScheduleHQ database migrations",
	}
	root.PersistentFlags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")

	open := func(ctx context.Context) (*db.DB, error) {
		if databaseURL == "" {
			return nil, fmt.Errorf("--database-url or DATABASE_URL is required")
		}
		return db.New(ctx, db.DefaultConfig(databaseURL), logger)
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()

			database, err := open(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.Migrate(ctx); err != nil {
				return err
			}

			version, err := database.CurrentVersion(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("migrations applied, schema at version %d\n", version)
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version and available migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			database, err := open(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			version, err := database.CurrentVersion(ctx)
			if err != nil {
				return err
			}

			migrations, err := db.Migrations()
			if err != nil {
				return err
			}

			fmt.Printf("schema version: %d\n", version)
			for _, m := range migrations {
				state := "pending"
				if m.Version <= version {
					state = "applied"
				}
				fmt.Printf("  %3d %-40s %s\n", m.Version, m.Name, state)
			}
			return nil
		},
	}

	root.AddCommand(up, status)

	if err := root.Execute(); err != nil {
		logger.Fatal().Err(err).Msg("command failed")
	}
}
