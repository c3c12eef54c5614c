package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hongjs/code-tanuki/internal/config"
	"github.com/hongjs/code-tanuki/internal/provider"
	"github.com/hongjs/code-tanuki/internal/security"
	"github.com/hongjs/code-tanuki/internal/settings"
	"github.com/hongjs/code-tanuki/internal/store"
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the review database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := settings.ReadDotenv(dotEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			s := settings.NewSettings()
			if err := s.Validate(); err != nil {
				return err
			}

			driver := store.Driver(s.DBDriver)
			if driver == store.DriverSQLite {
				if err := os.MkdirAll(filepath.Dir(s.DBPath), 0o750); err != nil {
					return fmt.Errorf("creating database directory: %w", err)
				}
			}
			db, err := store.OpenDatabase(driver, s.DSN(false), false)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := store.RunMigrations(db, driver); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s database is up to date\n", driver)
			return nil
		},
	}
}

func newModelsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the selectable models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			catalog, err := provider.LoadCatalog(cfg.Model.CatalogFile)
			if err != nil {
				return err
			}
			if asJSON {
				return renderJSON(cmd.OutOrStdout(), map[string]any{"models": catalog.Models()})
			}
			renderModels(cmd.OutOrStdout(), catalog.Models(), cfg.Model.Default)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the catalog as JSON")
	return cmd
}

func newKeygenCommand() *cobra.Command {
	var length int
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Print a random key for TANUKI_ARTIFACT_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch length {
			case 16, 24, 32:
			default:
				return fmt.Errorf("key length must be 16, 24 or 32, got %d", length)
			}
			key, err := security.GenerateRandomKey(length)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().IntVar(&length, "length", 32, "key length in bytes (16, 24 or 32)")
	return cmd
}
