package main

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/leozw/mantenapp/internal/config"
	"github.com/leozw/mantenapp/internal/db"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the MantenApp database schema",
		SilenceUsage: true,
	}

	root.AddCommand(newUpCmd(), newDownCmd(), newVersionCmd())
	return root
}

func newUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(database *sqlx.DB) error {
				if err := db.Migrate(database); err != nil {
					return err
				}
				return printVersion(cmd, database)
			})
		},
	}
}

func newDownCmd() *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return withDatabase(func(database *sqlx.DB) error {
				if err := db.MigrateDown(database, steps); err != nil {
					return err
				}
				return printVersion(cmd, database)
			})
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(database *sqlx.DB) error {
				return printVersion(cmd, database)
			})
		},
	}
}

func withDatabase(fn func(*sqlx.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	database, err := db.NewConnection(cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close()
	return fn(database)
}

func printVersion(cmd *cobra.Command, database *sqlx.DB) error {
	version, dirty, err := db.MigrationVersion(database)
	if err != nil {
		return err
	}
	cmd.Printf("schema version %d (dirty=%t)\n", version, dirty)
	return nil
}
