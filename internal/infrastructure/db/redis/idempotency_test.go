package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStore_Reserve(t *testing.T) {
	ctx := context.Background()
	ttl := time.Hour
	key := "idem:u1:abc"

	t.Run("first request reserves the key", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewIdempotencyStore(client, ttl)

		mock.ExpectSetNX(key, pendingMarker, ttl).SetVal(true)

		genID, reserved, err := store.Reserve(ctx, "u1", "abc")
		require.NoError(t, err)
		assert.True(t, reserved)
		assert.Empty(t, genID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("completed key replays the generation", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewIdempotencyStore(client, ttl)

		mock.ExpectSetNX(key, pendingMarker, ttl).SetVal(false)
		mock.ExpectGet(key).SetVal("gen-1")

		genID, reserved, err := store.Reserve(ctx, "u1", "abc")
		require.NoError(t, err)
		assert.False(t, reserved)
		assert.Equal(t, "gen-1", genID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("key still pending", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewIdempotencyStore(client, ttl)

		mock.ExpectSetNX(key, pendingMarker, ttl).SetVal(false)
		mock.ExpectGet(key).SetVal(pendingMarker)

		genID, reserved, err := store.Reserve(ctx, "u1", "abc")
		require.NoError(t, err)
		assert.False(t, reserved)
		assert.Empty(t, genID)
	})

	t.Run("redis unavailable", func(t *testing.T) {
		client, mock := redismock.NewClientMock()
		store := NewIdempotencyStore(client, ttl)

		mock.ExpectSetNX(key, pendingMarker, ttl).SetErr(errors.New("connection refused"))

		_, _, err := store.Reserve(ctx, "u1", "abc")
		assert.Error(t, err)
	})
}

func TestIdempotencyStore_CompleteAndRelease(t *testing.T) {
	ctx := context.Background()
	client, mock := redismock.NewClientMock()
	store := NewIdempotencyStore(client, time.Hour)

	mock.ExpectSet("idem:u1:abc", "gen-1", time.Hour).SetVal("OK")
	mock.ExpectDel("idem:u1:xyz").SetVal(1)

	require.NoError(t, store.Complete(ctx, "u1", "abc", "gen-1"))
	require.NoError(t, store.Release(ctx, "u1", "xyz"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
