package store

import (
	"database/sql"
	"fmt"
	"runtime"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

func (d Driver) Valid() bool {
	return d == DriverSQLite || d == DriverPostgres
}

// sqlName is the database/sql driver registered for d.
func (d Driver) sqlName() string {
	if d == DriverPostgres {
		return "pgx"
	}
	return "sqlite"
}

// OpenDatabase opens a pool for dsn. Read-only pools get several
// connections; the sqlite read-write pool is limited to one so writes are
// serialized.
func OpenDatabase(driver Driver, dsn string, readonly bool) (*sql.DB, error) {
	if !driver.Valid() {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver.sqlName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}

	switch {
	case readonly:
		db.SetMaxOpenConns(max(4, runtime.NumCPU()))
	case driver == DriverSQLite:
		if _, err := db.Exec("PRAGMA temp_store=memory"); err != nil {
			_ = db.Close()
			return nil, err
		}
		db.SetMaxOpenConns(1)
	default:
		db.SetMaxOpenConns(max(4, runtime.NumCPU()))
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", driver, err)
	}
	return db, nil
}
