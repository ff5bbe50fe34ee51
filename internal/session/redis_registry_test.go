package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Arseniidemydov/Relo-Radar-Dialer/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements redis.RedisServiceInterface on a plain map
type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string)}
}

func (f *fakeRedis) GenerateKey(keyType redis.KeyType, identifier string) string {
	return fmt.Sprintf("%s:%s", string(keyType), identifier)
}

func (f *fakeRedis) GetValue(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.values[key]
	if !ok {
		return "", redis.ErrKeyNotExist
	}
	return val, nil
}

func (f *fakeRedis) SetValue(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func (f *fakeRedis) DelValue(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

func TestRedisRegistryRoundTrip(t *testing.T) {
	ctx := context.Background()
	reg := NewRedisRegistry(newFakeRedis())

	require.NoError(t, reg.Upsert(ctx, "L1", "CA1", StateInitiated, 1))
	require.NoError(t, reg.Upsert(ctx, "L1", "CA1", StateAnswered, 2))

	sess, err := reg.Get(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, "CA1", sess.CallLegID)
	assert.Equal(t, StateAnswered, sess.State)

	require.NoError(t, reg.Remove(ctx, "L1"))
	_, err = reg.Get(ctx, "L1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisRegistryDropsStaleSameLegEvent(t *testing.T) {
	ctx := context.Background()
	reg := NewRedisRegistry(newFakeRedis())

	require.NoError(t, reg.Upsert(ctx, "L1", "CA1", StateAnswered, 5))
	require.NoError(t, reg.Upsert(ctx, "L1", "CA1", StateRinging, 3))

	sess, err := reg.Get(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, StateAnswered, sess.State)
}

func TestRedisRegistryRemoveLeg(t *testing.T) {
	ctx := context.Background()
	reg := NewRedisRegistry(newFakeRedis())

	require.NoError(t, reg.Upsert(ctx, "L1", "CA1", StateAnswered, 1))

	removed, err := reg.RemoveLeg(ctx, "L1", "CA-stale")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = reg.RemoveLeg(ctx, "L1", "CA1")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = reg.RemoveLeg(ctx, "L1", "CA1")
	require.NoError(t, err)
	assert.False(t, removed, "second removal must be a no-op")
}
