package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/phrazzld/autobuild/internal/store"
)

// Slot stores the task collection in one row of task_slots.
type Slot struct {
	db  store.DBTX
	key string
}

// NewSlot creates a Slot for the row identified by key.
func NewSlot(db store.DBTX, key string) *Slot {
	return &Slot{db: db, key: key}
}

// Load implements store.Slot.
func (s *Slot) Load(ctx context.Context) ([]byte, int64, error) {
	var (
		data    string
		version int64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT data, version FROM task_slots WHERE slot_key = ?`,
		s.key,
	).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, store.NewStoreError("slot", "load", "failed to load task slot", err)
	}

	return []byte(data), version, nil
}

// Save implements store.Slot.
func (s *Slot) Save(ctx context.Context, data []byte, expectedVersion int64) (int64, error) {
	var (
		version int64
		err     error
	)

	if expectedVersion == 0 {
		err = s.db.QueryRowContext(ctx, `
			INSERT INTO task_slots (slot_key, data, version)
			VALUES (?, ?, 1)
			ON CONFLICT (slot_key) DO NOTHING
			RETURNING version
		`, s.key, string(data)).Scan(&version)
	} else {
		err = s.db.QueryRowContext(ctx, `
			UPDATE task_slots
			SET data = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
			WHERE slot_key = ? AND version = ?
			RETURNING version
		`, string(data), s.key, expectedVersion).Scan(&version)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return 0, store.ErrVersionConflict
	}
	if err != nil {
		return 0, store.NewStoreError("slot", "save", "failed to save task slot", err)
	}

	return version, nil
}

// version returns the current slot version without reading the data.
func (s *Slot) version(ctx context.Context) (int64, error) {
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM task_slots WHERE slot_key = ?`,
		s.key,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return version, err
}
