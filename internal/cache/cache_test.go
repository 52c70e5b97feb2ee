package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bilgisen/newsenrich/internal/config"
	"github.com/go-playground/assert/v2"
)

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := NewRedisClient(&config.Config{
		RedisURL:    "redis://" + mr.Addr() + "/0",
		RedisPrefix: "test:",
		CacheTTL:    time.Hour,
	})
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "tech")
	assert.Equal(t, true, errors.Is(err, ErrMiss))

	assert.Equal(t, nil, s.Set(ctx, "tech", []byte(`{"items":[]}`)))
	got, err := s.Get(ctx, "tech")
	assert.Equal(t, nil, err)
	assert.Equal(t, `{"items":[]}`, string(got))

	assert.Equal(t, nil, s.Set(ctx, "tech", []byte(`{"items":[1]}`)))
	got, _ = s.Get(ctx, "tech")
	assert.Equal(t, `{"items":[1]}`, string(got))

	assert.Equal(t, nil, s.Delete(ctx, "tech"))
	_, err = s.Get(ctx, "tech")
	assert.Equal(t, true, errors.Is(err, ErrMiss))

	// deleting a missing key is not an error
	assert.Equal(t, nil, s.Delete(ctx, "tech"))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	value := []byte("abc")
	s.Set(context.Background(), "k", value)
	value[0] = 'x'

	got, _ := s.Get(context.Background(), "k")
	assert.Equal(t, "abc", string(got))
}

func TestRedisStore(t *testing.T) {
	client, _ := newTestRedis(t)
	exerciseStore(t, client)
}

func TestRedisStoreUsesPrefixAndTTL(t *testing.T) {
	client, mr := newTestRedis(t)

	assert.Equal(t, nil, client.Set(context.Background(), "world", []byte("v")))

	assert.Equal(t, true, mr.Exists("test:feed:world"))
	assert.Equal(t, time.Hour, mr.TTL("test:feed:world"))
}

func TestRedisClear(t *testing.T) {
	client, mr := newTestRedis(t)
	ctx := context.Background()
	client.Set(ctx, "a", []byte("1"))
	client.Set(ctx, "b", []byte("2"))
	mr.Set("other:key", "keep")

	assert.Equal(t, nil, client.Clear(ctx))

	assert.Equal(t, false, mr.Exists("test:feed:a"))
	assert.Equal(t, false, mr.Exists("test:feed:b"))
	assert.Equal(t, true, mr.Exists("other:key"))
}

func TestNewRedisClientFailsWhenUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisClient(&config.Config{RedisURL: "redis://" + addr + "/0"})
	assert.NotEqual(t, nil, err)
}
