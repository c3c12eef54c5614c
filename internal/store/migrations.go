package store

import (
	"database/sql"
	"fmt"
	"path"

	assets "github.com/hongjs/code-tanuki"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies the embedded migrations for driver.
func RunMigrations(db *sql.DB, driver Driver) error {
	if !driver.Valid() {
		return fmt.Errorf("unsupported database driver %q", driver)
	}
	goose.SetBaseFS(assets.MigrationsFS)
	if err := goose.SetDialect(string(driver)); err != nil {
		return err
	}
	return goose.Up(db, path.Join("migrations", string(driver)))
}
