// Package redis implements the repository.Table port on Redis.
//
// Each entity is one hash; each property one hash field. Redis hashes are
// binary safe, so chunk values round-trip byte for byte. Table registration
// is a member of a set, which gives CreateTable its "already exists" answer
// for free (SADD returns 0).
//
// Key layout:
//
//	<prefix>tables                          set of table names
//	<prefix>t:<table>:<partition>:<row>     hash of properties
//
// An entity with no properties still needs a hash, so every entity carries
// the reserved field "\x00e".
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/sakif/resume-builder/internal/apperror"
	"github.com/sakif/resume-builder/internal/repository"
)

// markerField keeps empty entities present. It cannot collide with a real
// property name sent by the service layer.
const markerField = "\x00e"

// compile-time check that *Table implements repository.Table
var _ repository.Table = (*Table)(nil)

// Store wraps a go-redis client and hands out table handles.
type Store struct {
	rdb    *goredis.Client
	prefix string
}

// New connects using a redis:// or rediss:// URL and verifies the
// connection with PING.
func New(ctx context.Context, rawURL, prefix string) (*Store, error) {
	opts, err := goredis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parsing connection string: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis: pinging %s: %w", opts.Addr, err)
	}

	return &Store{rdb: rdb, prefix: prefix}, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Table returns a handle for the named table.
func (s *Store) Table(name string) *Table {
	return &Table{store: s, name: name}
}

// Table is a handle on one logical table.
type Table struct {
	store *Store
	name  string
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

func (t *Table) tablesKey() string {
	return t.store.prefix + "tables"
}

// entityKey escapes ':' in the keys so "a:b"/"c" and "a"/"b:c" never share
// a hash.
func (t *Table) entityKey(partitionKey, rowKey string) string {
	esc := strings.NewReplacer(`\`, `\\`, ":", `\:`)
	return fmt.Sprintf("%st:%s:%s:%s", t.store.prefix, t.name, esc.Replace(partitionKey), esc.Replace(rowKey))
}

// CreateTable adds the table to the registry set. It returns
// apperror.ErrConflict if the table was already registered.
func (t *Table) CreateTable(ctx context.Context) error {
	if err := repository.ValidateTableName(t.name); err != nil {
		return err
	}

	added, err := t.store.rdb.SAdd(ctx, t.tablesKey(), t.name).Result()
	if err != nil {
		return fmt.Errorf("redis: creating table %s: %w", t.name, err)
	}
	if added == 0 {
		return apperror.Conflict("table", t.name)
	}
	return nil
}

// UpsertEntity replaces the hash inside MULTI/EXEC: DEL followed by HSET, so
// readers never observe a half-written entity.
func (t *Table) UpsertEntity(ctx context.Context, e repository.Entity) error {
	if err := repository.ValidateEntity(e); err != nil {
		return err
	}
	if _, reserved := e.Properties[markerField]; reserved {
		return apperror.ValidationFailed("properties", "property name is reserved")
	}

	registered, err := t.store.rdb.SIsMember(ctx, t.tablesKey(), t.name).Result()
	if err != nil {
		return fmt.Errorf("redis: checking table %s: %w", t.name, err)
	}
	if !registered {
		return apperror.NotFound("table", t.name)
	}

	fields := make([]any, 0, 2*len(e.Properties)+2)
	fields = append(fields, markerField, "1")
	for name, value := range e.Properties {
		fields = append(fields, name, value)
	}

	key := t.entityKey(e.PartitionKey, e.RowKey)
	_, err = t.store.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: upserting entity %s: %w", repository.EntityID(e.PartitionKey, e.RowKey), err)
	}
	return nil
}

// GetEntity loads the entity's hash.
// Returns apperror.ErrNotFound if the hash does not exist.
func (t *Table) GetEntity(ctx context.Context, partitionKey, rowKey string) (*repository.Entity, error) {
	id := repository.EntityID(partitionKey, rowKey)

	fields, err := t.store.rdb.HGetAll(ctx, t.entityKey(partitionKey, rowKey)).Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("redis: getting entity %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, apperror.NotFound("entity", id)
	}

	delete(fields, markerField)
	return &repository.Entity{
		PartitionKey: partitionKey,
		RowKey:       rowKey,
		Properties:   fields,
	}, nil
}
