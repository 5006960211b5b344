// Package repository provides the tabular stores the pipeline reads from and
// writes to.
//
// Rows travel as JSON objects so one contract covers the hosted PostgREST
// API and direct SQL connections alike.
package repository

import (
	"context"
	"encoding/json"
)

// Store is a paginated query and upsert service over named collections.
type Store interface {
	// Select returns at most count rows of collection starting at offset.
	Select(ctx context.Context, collection string, offset, count int) ([]json.RawMessage, error)

	// Upsert writes rows in one batch. Rows whose conflictKey matches an
	// existing row replace it; the rest are inserted.
	Upsert(ctx context.Context, collection string, rows []json.RawMessage, conflictKey string) error

	// Close releases the underlying connection.
	Close() error
}
