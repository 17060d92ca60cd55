// Package sqlite implements the repository.Table port on top of SQLite.
//
// STORAGE LAYOUT:
// SQLite is relational, the port is a property-bag table store, so the
// mapping uses three tables:
//
//	store_tables       one row per logical table (CreateTable)
//	entities           one row per (table, partition key, row key)
//	entity_properties  one row per property of an entity
//
// Storing each property as its own row keeps values byte-exact: a photo
// chunk is bound as a plain TEXT parameter, never re-encoded into JSON.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary
// builds without a C toolchain. Use ":memory:" for tests.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and hands out table handles.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/resumes.db"  → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// One connection: SQLite serialises writers anyway, and every
	// ":memory:" connection would otherwise be a separate empty database.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the storage tables. CREATE ... IF NOT EXISTS keeps it
// safe to run on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS store_tables (
			name       TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating store_tables table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS entities (
			table_name    TEXT NOT NULL REFERENCES store_tables(name),
			partition_key TEXT NOT NULL,
			row_key       TEXT NOT NULL,
			updated_at    DATETIME NOT NULL,
			PRIMARY KEY (table_name, partition_key, row_key)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating entities table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS entity_properties (
			table_name    TEXT NOT NULL,
			partition_key TEXT NOT NULL,
			row_key       TEXT NOT NULL,
			name          TEXT NOT NULL,
			value         TEXT NOT NULL,
			PRIMARY KEY (table_name, partition_key, row_key, name),
			FOREIGN KEY (table_name, partition_key, row_key)
				REFERENCES entities(table_name, partition_key, row_key) ON DELETE CASCADE
		);
	`)
	if err != nil {
		return fmt.Errorf("creating entity_properties table: %w", err)
	}

	return nil
}
