package store

import (
	"context"
	"database/sql"
)

// Slot is a single durable location holding the serialized task collection.
// Versions let concurrent writers from independent processes detect each
// other instead of silently overwriting.
type Slot interface {
	// Load returns the stored bytes and their version. An empty slot
	// returns nil data and version 0.
	Load(ctx context.Context) ([]byte, int64, error)

	// Save replaces the stored bytes if the slot is still at
	// expectedVersion and returns the new version. Otherwise it returns
	// ErrVersionConflict and leaves the slot untouched.
	Save(ctx context.Context, data []byte, expectedVersion int64) (int64, error)
}

// DBTX is an interface that abstracts the database access layer.
// It is implemented by both *sql.DB and *sql.Tx, allowing SQL slots to
// work with either a database connection or a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
