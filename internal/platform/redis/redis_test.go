package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/store"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "autobuild:slot:tasks", slotKey("tasks"))
	assert.Equal(t, "autobuild:slot-changed:tasks", changeChannel("tasks"))
	assert.Equal(t, "autobuild:applied:abc", markerKey("abc"))
}

func TestUnreachableServer(t *testing.T) {
	t.Parallel()

	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = client.Close() }()

	ctx := context.Background()

	assert.Error(t, Ping(ctx, client))

	_, _, err := NewSlot(client, "tasks").Load(ctx)
	var storeErr *store.StoreError
	require.True(t, errors.As(err, &storeErr))
	assert.Equal(t, "load", storeErr.Operation)

	_, err = NewSlot(client, "tasks").Save(ctx, []byte(`[]`), 0)
	assert.NotErrorIs(t, err, store.ErrVersionConflict)
	assert.Error(t, err)

	won, err := NewGuard(client).MarkApplied(ctx, uuid.New())
	assert.Error(t, err)
	assert.False(t, won)
}
