// Package main is the migration tool for configd's Postgres backend: it
// applies, rolls back and reports the goose migrations embedded in the
// postgres repository package.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aboglioli/configd/internal/infrastructure/repository/postgres"
)

func main() {
	var postgresURL string

	root := &cobra.Command{
		Use:   "migrate",
		Short: "Manage configd's Postgres schema migrations",
	}
	root.PersistentFlags().StringVar(&postgresURL, "postgres-url", os.Getenv("POSTGRES_URL"),
		"Postgres connection URL (defaults to $POSTGRES_URL)")

	requireURL := func() error {
		if postgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is not set and --postgres-url was not given")
		}
		return nil
	}

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireURL(); err != nil {
				return err
			}
			return postgres.RunMigrations(postgresURL)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireURL(); err != nil {
				return err
			}
			return postgres.RollbackMigration(postgresURL)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireURL(); err != nil {
				return err
			}
			return postgres.MigrationStatus(postgresURL)
		},
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
