package task

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Guard records which task artifacts have been applied so that each is
// applied at most once, even across processes sharing a backend.
type Guard interface {
	// HasBeenApplied reports whether a marker exists for id.
	HasBeenApplied(ctx context.Context, id uuid.UUID) (bool, error)

	// MarkApplied atomically creates the marker for id. It returns false
	// when the marker already existed, meaning another caller won the claim.
	MarkApplied(ctx context.Context, id uuid.UUID) (bool, error)

	// Unmark removes the marker for id so the artifact can be applied again.
	Unmark(ctx context.Context, id uuid.UUID) error
}

// MemoryGuard is a process-local Guard.
type MemoryGuard struct {
	mu      sync.Mutex
	applied map[uuid.UUID]struct{}
}

// NewMemoryGuard creates an empty MemoryGuard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{applied: make(map[uuid.UUID]struct{})}
}

// HasBeenApplied implements Guard.
func (g *MemoryGuard) HasBeenApplied(_ context.Context, id uuid.UUID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.applied[id]
	return ok, nil
}

// MarkApplied implements Guard.
func (g *MemoryGuard) MarkApplied(_ context.Context, id uuid.UUID) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.applied[id]; ok {
		return false, nil
	}
	g.applied[id] = struct{}{}
	return true, nil
}

// Unmark implements Guard.
func (g *MemoryGuard) Unmark(_ context.Context, id uuid.UUID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.applied, id)
	return nil
}
