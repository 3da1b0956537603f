package sqlite

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/store"
)

// Guard records applied artifacts in the applied_artifacts table.
type Guard struct {
	db store.DBTX
}

// NewGuard creates a Guard.
func NewGuard(db store.DBTX) *Guard {
	return &Guard{db: db}
}

// HasBeenApplied implements task.Guard.
func (g *Guard) HasBeenApplied(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := g.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM applied_artifacts WHERE task_id = ?)`,
		id.String(),
	).Scan(&exists)
	if err != nil {
		return false, store.NewStoreError("marker", "check", "failed to check marker", err)
	}
	return exists, nil
}

// MarkApplied implements task.Guard.
func (g *Guard) MarkApplied(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := g.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO applied_artifacts (task_id) VALUES (?)`,
		id.String(),
	)
	if err != nil {
		return false, store.NewStoreError("marker", "create", "failed to create marker", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, store.NewStoreError("marker", "create", "failed to get rows affected", err)
	}
	return rows == 1, nil
}

// Unmark implements task.Guard.
func (g *Guard) Unmark(ctx context.Context, id uuid.UUID) error {
	_, err := g.db.ExecContext(ctx, `DELETE FROM applied_artifacts WHERE task_id = ?`, id.String())
	if err != nil {
		return store.NewStoreError("marker", "remove", "failed to remove marker", err)
	}
	return nil
}
