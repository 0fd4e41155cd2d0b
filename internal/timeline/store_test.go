package timeline

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsiec/mediatime/internal/logger"
	"github.com/zsiec/mediatime/pkg/mediatime"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *redis.Client, *RedisStore) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, client, NewRedisStore(client, "test:timeline:", ttl, logger.NewNullLogger())
}

// testStoreContract exercises the behaviour every Store shares.
func testStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete missing", func(t *testing.T) {
		assert.ErrorIs(t, store.Delete(ctx, "missing"), ErrNotFound)
	})

	t.Run("empty stream id", func(t *testing.T) {
		assert.ErrorIs(t, store.Put(ctx, New("")), ErrInvalidStreamID)
	})

	t.Run("put get round trip", func(t *testing.T) {
		tl := New("b-stream")
		tl.Position = mediatime.New(1001, 30000)
		tl.Duration = mediatime.PositiveInfinity()
		tl.ClockRate = 90000
		require.NoError(t, tl.AddBuffered(mediatime.Range{Start: mediatime.Zero(), End: mediatime.FromDouble(2.5)}))
		require.NoError(t, store.Put(ctx, tl))

		got, err := store.Get(ctx, "b-stream")
		require.NoError(t, err)
		assert.Equal(t, tl.Position, got.Position)
		assert.True(t, got.Duration.IsPositiveInfinite())
		assert.Equal(t, uint32(90000), got.ClockRate)
		assertRanges(t, tl.Buffered, got.Buffered)
	})

	t.Run("put replaces", func(t *testing.T) {
		tl := New("b-stream")
		tl.Position = mediatime.New(5, 1)
		require.NoError(t, store.Put(ctx, tl))

		got, err := store.Get(ctx, "b-stream")
		require.NoError(t, err)
		assert.Equal(t, mediatime.New(5, 1), got.Position)
		assert.Empty(t, got.Buffered)
	})

	t.Run("returned timelines are copies", func(t *testing.T) {
		got, err := store.Get(ctx, "b-stream")
		require.NoError(t, err)
		got.Position = mediatime.New(99, 1)

		again, err := store.Get(ctx, "b-stream")
		require.NoError(t, err)
		assert.Equal(t, mediatime.New(5, 1), again.Position)
	})

	t.Run("list sorted", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, New("c-stream")))
		require.NoError(t, store.Put(ctx, New("a-stream")))

		list, err := store.List(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(list))
		for _, tl := range list {
			ids = append(ids, tl.StreamID)
		}
		assert.Equal(t, []string{"a-stream", "b-stream", "c-stream"}, ids)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "c-stream"))
		_, err := store.Get(ctx, "c-stream")
		assert.ErrorIs(t, err, ErrNotFound)

		list, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})
}

func TestMemoryStore(t *testing.T) {
	testStoreContract(t, NewMemoryStore(time.Hour, time.Minute))
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(20*time.Millisecond, time.Hour)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, New("short")))

	_, err := store.Get(ctx, "short")
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	_, err = store.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryStoreNoExpiry(t *testing.T) {
	store := NewMemoryStore(0, 0)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, New("forever")))
	assert.Equal(t, 1, store.Len())

	_, err := store.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestRedisStore(t *testing.T) {
	_, _, store := setupTestRedis(t, time.Hour)
	testStoreContract(t, store)
}

func TestRedisStoreKeys(t *testing.T) {
	mr, client, store := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, New("cam-1")))

	assert.True(t, mr.Exists("test:timeline:tl:cam-1"))
	assert.Equal(t, time.Minute, mr.TTL("test:timeline:tl:cam-1"))

	members, err := client.SMembers(ctx, "test:timeline:index").Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"cam-1"}, members)

	require.NoError(t, store.Delete(ctx, "cam-1"))
	assert.False(t, mr.Exists("test:timeline:tl:cam-1"))
	members, err = client.SMembers(ctx, "test:timeline:index").Result()
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestRedisStoreReservedLookingIDs(t *testing.T) {
	_, _, store := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	for _, id := range []string{"cam-1", "active", "index", "tl:cam-1"} {
		require.NoError(t, store.Put(ctx, New(id)), id)
	}

	list, err := store.List(ctx)
	require.NoError(t, err)
	ids := make([]string, 0, len(list))
	for _, tl := range list {
		ids = append(ids, tl.StreamID)
	}
	assert.Equal(t, []string{"active", "cam-1", "index", "tl:cam-1"}, ids)

	got, err := store.Get(ctx, "index")
	require.NoError(t, err)
	assert.Equal(t, "index", got.StreamID)
}

func TestRedisStoreListDropsExpired(t *testing.T) {
	mr, client, store := setupTestRedis(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, New("old")))
	require.NoError(t, store.Put(ctx, New("new")))

	mr.FastForward(30 * time.Second)
	require.NoError(t, store.Put(ctx, New("new")))
	mr.FastForward(45 * time.Second)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].StreamID)

	isMember, err := client.SIsMember(ctx, "test:timeline:index", "old").Result()
	require.NoError(t, err)
	assert.False(t, isMember)
}

func TestRedisStoreCorruptEntry(t *testing.T) {
	mr, _, store := setupTestRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, New("good")))
	require.NoError(t, mr.Set("test:timeline:tl:bad", "{not json"))
	_, err := mr.SAdd("test:timeline:index", "bad")
	require.NoError(t, err)

	_, err = store.Get(ctx, "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "good", list[0].StreamID)
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, _, store := setupTestRedis(t, time.Minute)
	mr.Close()
	ctx := context.Background()

	assert.Error(t, store.Put(ctx, New("cam-1")))
	_, err := store.Get(ctx, "cam-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	_, err = store.List(ctx)
	assert.Error(t, err)
}
