package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/store"
)

// Guard records applied artifacts as marker files in a directory. Marker
// creation uses O_EXCL, so exactly one of several concurrent claimers
// succeeds even across processes.
type Guard struct {
	dir string
	// stamp writes the marker contents.
	stamp func(f *os.File) error
}

// NewGuard creates a Guard storing markers in dir.
func NewGuard(dir string) (*Guard, error) {
	if dir == "" {
		return nil, errors.New("marker directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create marker directory: %w", err)
	}
	return &Guard{dir: dir, stamp: writeTimestamp}, nil
}

func writeTimestamp(f *os.File) error {
	_, err := f.WriteString(time.Now().UTC().Format(time.RFC3339) + "\n")
	return err
}

func (g *Guard) markerPath(id uuid.UUID) string {
	return filepath.Join(g.dir, id.String()+".applied")
}

// HasBeenApplied implements task.Guard.
func (g *Guard) HasBeenApplied(_ context.Context, id uuid.UUID) (bool, error) {
	_, err := os.Stat(g.markerPath(id))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, store.NewStoreError("marker", "check", "failed to stat marker", err)
	}
}

// MarkApplied implements task.Guard. A marker that cannot be written
// completely is removed again, leaving the task unclaimed.
func (g *Guard) MarkApplied(_ context.Context, id uuid.UUID) (bool, error) {
	path := g.markerPath(id)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, store.NewStoreError("marker", "create", "failed to create marker", err)
	}

	err = g.stamp(f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
		return false, store.NewStoreError("marker", "create", "failed to write marker", err)
	}
	return true, nil
}

// Unmark implements task.Guard.
func (g *Guard) Unmark(_ context.Context, id uuid.UUID) error {
	err := os.Remove(g.markerPath(id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return store.NewStoreError("marker", "remove", "failed to remove marker", err)
	}
	return nil
}
