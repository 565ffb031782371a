package cache

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyCache_NilClientAlwaysMisses(t *testing.T) {
	c := New(nil)
	_, ok := c.Get(context.Background(), uuid.New())
	assert.False(t, ok)
}

func TestIdempotencyCache_SetThenGet(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb)
	key := uuid.New()
	entryID := uuid.New()

	mock.ExpectSet(keyFor(key), entryID.String(), ttl).SetVal("OK")
	c.Set(context.Background(), key, entryID)

	mock.ExpectGet(keyFor(key)).SetVal(entryID.String())
	got, ok := c.Get(context.Background(), key)
	require.True(t, ok)
	assert.Equal(t, entryID, got)
}

func TestIdempotencyCache_MissDegradesCleanly(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb)
	key := uuid.New()

	mock.ExpectGet(keyFor(key)).RedisNil()
	_, ok := c.Get(context.Background(), key)
	assert.False(t, ok)
}
