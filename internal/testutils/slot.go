package testutils

import (
	"context"
	"sync"
	"testing"

	"github.com/phrazzld/autobuild/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSlotContract exercises the behaviour every Slot backend must share.
// newSlot must return an empty slot; calling it twice within one test must
// return two handles on the same underlying slot.
func RunSlotContract(t *testing.T, newSlot func(t *testing.T) (store.Slot, store.Slot)) {
	t.Helper()

	t.Run("empty slot", func(t *testing.T) {
		slot, _ := newSlot(t)

		data, version, err := slot.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, data)
		assert.Zero(t, version)
	})

	t.Run("save then load", func(t *testing.T) {
		slot, other := newSlot(t)
		ctx := context.Background()

		v1, err := slot.Save(ctx, []byte(`[{"a":1}]`), 0)
		require.NoError(t, err)
		assert.NotZero(t, v1)

		data, version, err := other.Load(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, `[{"a":1}]`, string(data))
		assert.Equal(t, v1, version)

		v2, err := other.Save(ctx, []byte(`[]`), version)
		require.NoError(t, err)
		assert.NotEqual(t, v1, v2)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		slot, other := newSlot(t)
		ctx := context.Background()

		v1, err := slot.Save(ctx, []byte(`[1]`), 0)
		require.NoError(t, err)
		_, err = other.Save(ctx, []byte(`[2]`), v1)
		require.NoError(t, err)

		_, err = slot.Save(ctx, []byte(`[3]`), v1)
		assert.ErrorIs(t, err, store.ErrVersionConflict)

		_, err = slot.Save(ctx, []byte(`[3]`), 0)
		assert.ErrorIs(t, err, store.ErrVersionConflict)

		data, _, err := slot.Load(ctx)
		require.NoError(t, err)
		assert.JSONEq(t, `[2]`, string(data))
	})

	t.Run("concurrent writers have one winner", func(t *testing.T) {
		slot, other := newSlot(t)
		ctx := context.Background()

		base, err := slot.Save(ctx, []byte(`[]`), 0)
		require.NoError(t, err)

		const writers = 8
		var wg sync.WaitGroup
		wins := make(chan struct{}, writers)
		for i := 0; i < writers; i++ {
			target := slot
			if i%2 == 1 {
				target = other
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := target.Save(ctx, []byte(`[0]`), base); err == nil {
					wins <- struct{}{}
				} else {
					assert.ErrorIs(t, err, store.ErrVersionConflict)
				}
			}()
		}
		wg.Wait()
		close(wins)

		assert.Len(t, wins, 1)
	})
}
