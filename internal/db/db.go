// Package db persists fusion runs and their per-reading estimates in SQLite.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/sensorfusion/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationsFS returns the embedded schema migrations, rooted so the
// migration files sit at the top level.
func MigrationsFS() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return sub
}

// pragmas are applied to every pooled connection through the DSN.
var pragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"temp_store(MEMORY)",
	"foreign_keys(1)",
}

type DB struct {
	*sql.DB
	clock timeutil.Clock
}

// SetClock replaces the clock used to stamp run start and finish times.
func (db *DB) SetClock(c timeutil.Clock) { db.clock = c }

// OpenDB opens the database at path without touching the schema.
func OpenDB(path string) (*DB, error) {
	var dsn strings.Builder
	dsn.WriteString(path)
	for i, p := range pragmas {
		if i == 0 {
			dsn.WriteByte('?')
		} else {
			dsn.WriteByte('&')
		}
		dsn.WriteString("_pragma=")
		dsn.WriteString(p)
	}

	db, err := sql.Open("sqlite", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &DB{DB: db, clock: timeutil.RealClock{}}, nil
}

// NewDB opens the database at path and applies any pending migrations.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(MigrationsFS()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
