// Package repository declares the table-store port the service layer talks
// to, plus the rules every implementation enforces.
//
// TABLE STORE MODEL:
// A table holds entities addressed by (PartitionKey, RowKey). An entity is a
// flat bag of named string properties. Upserts replace the whole entity: any
// property not in the new value is gone afterwards. Every property value must
// be shorter than MaxPropertySize bytes.
//
// Implementations live in subpackages (sqlite, redis) and report:
//   - apperror.ErrConflict    from CreateTable when the table already exists
//   - apperror.ErrNotFound    from GetEntity when no entity has that key
//   - apperror.ErrValidation  from UpsertEntity when a property is too large
package repository

import (
	"context"
	"fmt"
	"regexp"

	"github.com/sakif/resume-builder/internal/apperror"
)

// MaxPropertySize is the per-property ceiling in bytes. Table stores accept
// values strictly below it. It mirrors the hosted table service's 64 KiB string limit, which
// is counted in UTF-16 and so admits 32 Ki single-unit characters.
const MaxPropertySize = 32 * 1024

// tableNamePattern follows the hosted table service's naming rules:
// alphanumeric, starting with a letter, 3 to 63 characters.
var tableNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]{2,62}$`)

// Entity is one record in a table.
type Entity struct {
	PartitionKey string
	RowKey       string
	Properties   map[string]string
}

// Table is a handle on one named table.
type Table interface {
	// CreateTable provisions the table. It returns an error wrapping
	// apperror.ErrConflict if the table already exists.
	CreateTable(ctx context.Context) error

	// UpsertEntity inserts the entity or replaces an existing one with the
	// same keys.
	UpsertEntity(ctx context.Context, entity Entity) error

	// GetEntity loads one entity. It returns an error wrapping
	// apperror.ErrNotFound if none exists.
	GetEntity(ctx context.Context, partitionKey, rowKey string) (*Entity, error)
}

// ValidateEntity checks keys and property sizes. Stores call it before
// writing so an oversized entity is rejected without a partial write.
func ValidateEntity(e Entity) error {
	if e.PartitionKey == "" {
		return apperror.ValidationFailed("partitionKey", "partition key is required")
	}
	if e.RowKey == "" {
		return apperror.ValidationFailed("rowKey", "row key is required")
	}
	for name, value := range e.Properties {
		if name == "" {
			return apperror.ValidationFailed("properties", "property name is required")
		}
		if len(value) >= MaxPropertySize {
			return apperror.ValidationFailed(name,
				fmt.Sprintf("property %s is %d bytes, must be under %d", name, len(value), MaxPropertySize))
		}
	}
	return nil
}

// ValidateTableName rejects names the hosted table service would refuse, so a
// deployment that works locally keeps working there.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return apperror.ValidationFailed("table",
			fmt.Sprintf("table name %q must be 3-63 alphanumeric characters starting with a letter", name))
	}
	return nil
}

// EntityID formats the keys for error messages and logs.
func EntityID(partitionKey, rowKey string) string {
	return partitionKey + "/" + rowKey
}
