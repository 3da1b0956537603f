//go:build integration

package etcd

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/autobuild/internal/ciutil"
	"github.com/phrazzld/autobuild/internal/platform/logger"
	"github.com/phrazzld/autobuild/internal/store"
	"github.com/phrazzld/autobuild/internal/task"
	"github.com/phrazzld/autobuild/internal/testutils"
	"github.com/stretchr/testify/require"
	clientv3 "go.etcd.io/etcd/client/v3"
)

func newIntegrationClient(t *testing.T) *clientv3.Client {
	t.Helper()

	endpoints := testutils.IntegrationEnv(t, ciutil.EnvTestEtcdEndpoint, ciutil.EnvEtcdEndpoints)
	client, err := NewClient(strings.Split(endpoints, ","), 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIntegration_SlotContract(t *testing.T) {
	client := newIntegrationClient(t)

	testutils.RunSlotContract(t, func(t *testing.T) (store.Slot, store.Slot) {
		key := "test-" + uuid.NewString()
		t.Cleanup(func() { _, _ = client.Delete(context.Background(), slotKey(key)) })
		return NewSlot(client, key), NewSlot(client, key)
	})
}

func TestIntegration_GuardContract(t *testing.T) {
	client := newIntegrationClient(t)

	testutils.RunGuardContract(t, func(t *testing.T) task.Guard {
		return NewGuard(client)
	})
}

func TestIntegration_WatcherSignalsWrites(t *testing.T) {
	client := newIntegrationClient(t)
	_, log := logger.NewTestLogger(t)
	key := "watch-" + uuid.NewString()
	t.Cleanup(func() { _, _ = client.Delete(context.Background(), slotKey(key)) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := NewWatcher(client, key, log).Watch(ctx)
	require.NoError(t, err)

	_, err = NewSlot(client, key).Save(ctx, []byte(`[]`), 0)
	require.NoError(t, err)

	select {
	case <-changes:
	case <-time.After(5 * time.Second):
		t.Fatal("expected a watch event")
	}
}
