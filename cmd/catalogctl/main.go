package main

import (
	"context"
	"fmt"
	"os"

	"ai-shopping-assistant-be/internal/config"
	"ai-shopping-assistant-be/internal/repository/unitofwork"
	"ai-shopping-assistant-be/internal/seed"
	"ai-shopping-assistant-be/pkg/database"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	okColor   = color.New(color.FgGreen)
	infoColor = color.New(color.FgCyan)
)

var rootCmd = &cobra.Command{
	Use:   "catalogctl",
	Short: "Schema and catalog maintenance for the shopping assistant",
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Creates or updates the PostgreSQL schema, including the vector index.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Database.LogLevel)
			if err != nil {
				return fmt.Errorf("could not connect to db: %w", err)
			}
			infoColor.Fprintln(cmd.OutOrStdout(), "migrating schema")
			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("could not migrate db: %w", err)
			}
			okColor.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Loads stores and products from a YAML catalog file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			catalog, err := seed.Parse(f)
			if err != nil {
				return err
			}

			cfg := config.Load()
			db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.Database.LogLevel)
			if err != nil {
				return fmt.Errorf("could not connect to db: %w", err)
			}

			infoColor.Fprintf(cmd.OutOrStdout(), "loading %d stores from %s\n", len(catalog.Stores), file)
			res, err := seed.Apply(context.Background(), unitofwork.NewRepositoryFactory(db), catalog)
			if err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "seeded %d stores and %d products\n", res.Stores, res.Products)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "catalog.yaml", "Path to the catalog YAML file")
	return cmd
}

func main() {
	rootCmd.AddCommand(
		newMigrateCommand(),
		newSeedCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
