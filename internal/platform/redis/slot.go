package redis

import (
	"context"
	"errors"
	"strconv"

	"github.com/phrazzld/autobuild/internal/store"
	"github.com/redis/go-redis/v9"
)

// saveScript replaces the slot data when the stored version matches
// ARGV[2], then publishes ARGV[4] on ARGV[3]. It returns the new version,
// or -1 on a version mismatch.
var saveScript = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], 'version') or '0')
if current ~= tonumber(ARGV[2]) then
	return -1
end
local nextVersion = current + 1
redis.call('HSET', KEYS[1], 'data', ARGV[1], 'version', nextVersion)
redis.call('PUBLISH', ARGV[3], ARGV[4])
return nextVersion
`)

// Slot stores the task collection in a Redis hash.
type Slot struct {
	client redis.UniversalClient
	key    string
}

// NewSlot creates a Slot named key.
func NewSlot(client redis.UniversalClient, key string) *Slot {
	return &Slot{client: client, key: key}
}

// Load implements store.Slot.
func (s *Slot) Load(ctx context.Context) ([]byte, int64, error) {
	values, err := s.client.HGetAll(ctx, slotKey(s.key)).Result()
	if err != nil {
		return nil, 0, store.NewStoreError("slot", "load", "redis hgetall", err)
	}
	if len(values) == 0 {
		return nil, 0, nil
	}

	version, err := strconv.ParseInt(values["version"], 10, 64)
	if err != nil {
		return nil, 0, store.NewStoreError("slot", "load", "invalid slot version", errors.Join(store.ErrCorruptData, err))
	}
	return []byte(values["data"]), version, nil
}

// Save implements store.Slot.
func (s *Slot) Save(ctx context.Context, data []byte, expectedVersion int64) (int64, error) {
	version, err := saveScript.Run(ctx, s.client,
		[]string{slotKey(s.key)},
		string(data), expectedVersion, changeChannel(s.key), s.key,
	).Int64()
	if err != nil {
		return 0, store.NewStoreError("slot", "save", "redis save script", err)
	}
	if version < 0 {
		return 0, store.ErrVersionConflict
	}
	return version, nil
}
