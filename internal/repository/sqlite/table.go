package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/resume-builder/internal/apperror"
	"github.com/sakif/resume-builder/internal/repository"
)

// compile-time check that *Table implements repository.Table
var _ repository.Table = (*Table)(nil)

// Table is a handle on one logical table inside the database.
type Table struct {
	db   *DB
	name string
}

// Table returns a handle for the named table. The table itself is not
// created until CreateTable is called.
func (db *DB) Table(name string) *Table {
	return &Table{db: db, name: name}
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// CreateTable registers the table. A second call returns apperror.ErrConflict,
// matching the hosted service's 409 on an existing table.
func (t *Table) CreateTable(ctx context.Context) error {
	if err := repository.ValidateTableName(t.name); err != nil {
		return err
	}

	res, err := t.db.conn.ExecContext(ctx,
		`INSERT INTO store_tables (name) VALUES (?) ON CONFLICT(name) DO NOTHING`,
		t.name,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating table %s: %w", t.name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: creating table %s: %w", t.name, err)
	}
	if n == 0 {
		return apperror.Conflict("table", t.name)
	}
	return nil
}

// UpsertEntity replaces the entity in a single transaction: the entity row
// is inserted or touched, its old properties are deleted and the new ones
// inserted. A concurrent reader sees either the old or the new entity.
func (t *Table) UpsertEntity(ctx context.Context, e repository.Entity) error {
	if err := repository.ValidateEntity(e); err != nil {
		return err
	}

	tx, err := t.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning upsert: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM store_tables WHERE name = ?`, t.name,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("sqlite: checking table %s: %w", t.name, err)
	}
	if exists == 0 {
		return apperror.NotFound("table", t.name)
	}

	id := repository.EntityID(e.PartitionKey, e.RowKey)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entities (table_name, partition_key, row_key, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(table_name, partition_key, row_key) DO UPDATE SET updated_at = excluded.updated_at`,
		t.name, e.PartitionKey, e.RowKey, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting entity %s: %w", id, err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM entity_properties WHERE table_name = ? AND partition_key = ? AND row_key = ?`,
		t.name, e.PartitionKey, e.RowKey,
	)
	if err != nil {
		return fmt.Errorf("sqlite: clearing properties of %s: %w", id, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entity_properties (table_name, partition_key, row_key, name, value)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("sqlite: preparing property insert: %w", err)
	}
	defer stmt.Close()

	for name, value := range e.Properties {
		if _, err := stmt.ExecContext(ctx, t.name, e.PartitionKey, e.RowKey, name, value); err != nil {
			return fmt.Errorf("sqlite: writing property %s of %s: %w", name, id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing entity %s: %w", id, err)
	}
	return nil
}

// GetEntity loads an entity and all of its properties.
// Returns apperror.ErrNotFound if no entity exists with those keys.
func (t *Table) GetEntity(ctx context.Context, partitionKey, rowKey string) (*repository.Entity, error) {
	id := repository.EntityID(partitionKey, rowKey)

	var found int
	err := t.db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM entities WHERE table_name = ? AND partition_key = ? AND row_key = ?`,
		t.name, partitionKey, rowKey,
	).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("entity", id)
		}
		return nil, fmt.Errorf("sqlite: getting entity %s: %w", id, err)
	}

	rows, err := t.db.conn.QueryContext(ctx,
		`SELECT name, value FROM entity_properties
		 WHERE table_name = ? AND partition_key = ? AND row_key = ?`,
		t.name, partitionKey, rowKey,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading properties of %s: %w", id, err)
	}
	defer rows.Close()

	e := &repository.Entity{
		PartitionKey: partitionKey,
		RowKey:       rowKey,
		Properties:   make(map[string]string),
	}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("sqlite: scanning property of %s: %w", id, err)
		}
		e.Properties[name] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating properties of %s: %w", id, err)
	}

	return e, nil
}
