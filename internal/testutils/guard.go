package testutils

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunGuardContract exercises the behaviour every Guard backend must share.
// Backend packages call it from their own tests.
func RunGuardContract(t *testing.T, newGuard func(t *testing.T) task.Guard) {
	t.Helper()

	t.Run("claim once", func(t *testing.T) {
		g := newGuard(t)
		ctx := context.Background()
		id := uuid.New()

		applied, err := g.HasBeenApplied(ctx, id)
		require.NoError(t, err)
		assert.False(t, applied)

		claimed, err := g.MarkApplied(ctx, id)
		require.NoError(t, err)
		assert.True(t, claimed)

		claimed, err = g.MarkApplied(ctx, id)
		require.NoError(t, err)
		assert.False(t, claimed)

		applied, err = g.HasBeenApplied(ctx, id)
		require.NoError(t, err)
		assert.True(t, applied)
	})

	t.Run("unmark allows a new claim", func(t *testing.T) {
		g := newGuard(t)
		ctx := context.Background()
		id := uuid.New()

		_, err := g.MarkApplied(ctx, id)
		require.NoError(t, err)
		require.NoError(t, g.Unmark(ctx, id))

		applied, err := g.HasBeenApplied(ctx, id)
		require.NoError(t, err)
		assert.False(t, applied)

		claimed, err := g.MarkApplied(ctx, id)
		require.NoError(t, err)
		assert.True(t, claimed)

		// unmarking an unknown id is not an error
		assert.NoError(t, g.Unmark(ctx, uuid.New()))
	})

	t.Run("concurrent claims have one winner", func(t *testing.T) {
		g := newGuard(t)
		ctx := context.Background()
		id := uuid.New()

		const callers = 16
		results := make(chan bool, callers)
		var wg sync.WaitGroup
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				claimed, err := g.MarkApplied(ctx, id)
				assert.NoError(t, err)
				results <- claimed
			}()
		}
		wg.Wait()
		close(results)

		winners := 0
		for claimed := range results {
			if claimed {
				winners++
			}
		}
		assert.Equal(t, 1, winners)
	})
}
