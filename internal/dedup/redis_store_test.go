package dedup

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, mr, func() {
		client.Close()
		mr.Close()
	}
}

func TestRedisStoreSaveAndLoad(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	store := NewRedisStore(client, "test:sent")

	set, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())

	require.NoError(t, store.Save(ctx, NewSet("a|hi", "b|hi")))
	require.NoError(t, store.Save(ctx, NewSet("b|hi", "c|hi")))

	set, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a|hi", "b|hi", "c|hi"}, set.Keys())

	members, err := mr.Members("test:sent")
	require.NoError(t, err)
	assert.Len(t, members, 3)
}

func TestRedisStoreSaveEmptyIsNoop(t *testing.T) {
	client, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	store := NewRedisStore(client, "")
	require.NoError(t, store.Save(context.Background(), NewSet()))
	assert.False(t, mr.Exists("smsgateway:sent"))
}

func TestRedisStoreLoadError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	store := NewRedisStore(client, "test:sent")
	_, err = store.Load(context.Background())
	assert.Error(t, err)
}
