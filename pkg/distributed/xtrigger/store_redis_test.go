package xtrigger

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s, err := NewRedisStore(client)
	require.NoError(t, err)
	return s, mr
}

func TestNewRedisStore(t *testing.T) {
	t.Run("nil client", func(t *testing.T) {
		s, err := NewRedisStore(nil)
		assert.Nil(t, s)
		assert.ErrorIs(t, err, ErrNilClient)
	})

	t.Run("client accessor", func(t *testing.T) {
		s, _ := setupRedisStore(t)
		assert.NotNil(t, s.Client())
	})
}

func TestRedisStore_SortedSetLayout(t *testing.T) {
	s, mr := setupRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, "redis-scheduler.scheduler", "job", 1_700_000_000_000))

	score, err := mr.ZScore("redis-scheduler.scheduler", "job")
	require.NoError(t, err)
	assert.InDelta(t, 1_700_000_000_000, score, 0)

	require.NoError(t, s.Clear(ctx, "redis-scheduler.scheduler"))
	assert.False(t, mr.Exists("redis-scheduler.scheduler"))
}

func TestRedisStore_ServerErrors(t *testing.T) {
	s, mr := setupRedisStore(t)
	ctx := context.Background()

	mr.SetError("LOADING Redis is loading the dataset in memory")
	t.Cleanup(func() { mr.SetError("") })

	assert.Error(t, s.Add(ctx, "k", "a", 1))
	assert.Error(t, s.Remove(ctx, "k", "a"))
	assert.Error(t, s.Clear(ctx, "k"))
	_, err := s.ClaimDue(ctx, "k", 1)
	assert.Error(t, err)
	_, err = s.Entries(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, s.Ping(ctx))

	mr.SetError("")
	assert.NoError(t, s.Ping(ctx))
}

func TestRedisStore_ServerDown(t *testing.T) {
	s, mr := setupRedisStore(t)
	ctx := context.Background()
	mr.Close()

	_, err := s.ClaimDue(ctx, "k", 1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, redis.TxFailedErr))
}
