package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/ledgerx/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.LedgerEntry{}))
	return New(db), db
}

func seedUser(t *testing.T, db *gorm.DB) uuid.UUID {
	id := uuid.New()
	require.NoError(t, db.Create(&model.User{ID: id, Email: id.String() + "@example.com"}).Error)
	return id
}

func TestStore_DeriveBalance_UnknownUserIsZero(t *testing.T) {
	store, _ := newTestStore(t)
	bal, err := store.DeriveBalance(context.Background(), nil, uuid.New(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), bal)
}

func TestStore_AppendAndDeriveBalance(t *testing.T) {
	store, db := newTestStore(t)
	a := seedUser(t, db)
	b := seedUser(t, db)

	t0 := time.Now().Add(-time.Hour)
	require.NoError(t, store.Append(context.Background(), db, &model.LedgerEntry{
		IdempotencyKey: uuid.New(), Destination: a, Amount: 10000, CreatedAt: t0,
	}))
	t1 := t0.Add(time.Minute)
	require.NoError(t, store.Append(context.Background(), db, &model.LedgerEntry{
		IdempotencyKey: uuid.New(), Source: &a, Destination: b, Amount: 3000, CreatedAt: t1,
	}))

	balA, err := store.DeriveBalance(context.Background(), nil, a, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(7000), balA)

	balB, err := store.DeriveBalance(context.Background(), nil, b, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3000), balB)

	// B4: before the first entry, balance is zero.
	early, err := store.DeriveBalance(context.Background(), nil, a, t0.Add(-time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(0), early)

	// Historical snapshot between the two entries.
	mid, err := store.DeriveBalance(context.Background(), nil, a, t0)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), mid)
}

func TestStore_FindByIdempotencyKey(t *testing.T) {
	store, db := newTestStore(t)
	a := seedUser(t, db)
	key := uuid.New()

	miss, err := store.FindByIdempotencyKey(context.Background(), nil, key)
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, store.Append(context.Background(), db, &model.LedgerEntry{
		IdempotencyKey: key, Destination: a, Amount: 500, CreatedAt: time.Now(),
	}))

	hit, err := store.FindByIdempotencyKey(context.Background(), nil, key)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, key, hit.IdempotencyKey)
}

func TestStore_AcquireUserLock(t *testing.T) {
	store, db := newTestStore(t)
	a := seedUser(t, db)

	// Known user: succeeds without error, on both the plain connection and
	// inside an open transaction (the coordinator's actual call pattern).
	// On SQLite this must not attempt SELECT ... FOR UPDATE, which is not
	// part of its grammar.
	require.NoError(t, store.AcquireUserLock(context.Background(), db, a))

	tx := db.Begin()
	require.NoError(t, store.AcquireUserLock(context.Background(), tx, a))
	require.NoError(t, tx.Commit().Error)

	// Unknown user: not an error, per the store's contract.
	require.NoError(t, store.AcquireUserLock(context.Background(), db, uuid.New()))
}

func TestStore_FindByID(t *testing.T) {
	store, db := newTestStore(t)
	a := seedUser(t, db)
	entry := &model.LedgerEntry{
		ID: uuid.New(), IdempotencyKey: uuid.New(), Destination: a, Amount: 250, CreatedAt: time.Now(),
	}
	require.NoError(t, store.Append(context.Background(), db, entry))

	miss, err := store.FindByID(context.Background(), nil, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, miss)

	hit, err := store.FindByID(context.Background(), nil, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, hit)
	assert.Equal(t, entry.IdempotencyKey, hit.IdempotencyKey)
}

func TestStore_ListHistory(t *testing.T) {
	store, db := newTestStore(t)
	a := seedUser(t, db)
	b := seedUser(t, db)

	require.NoError(t, store.Append(context.Background(), db, &model.LedgerEntry{
		IdempotencyKey: uuid.New(), Destination: a, Amount: 100, CreatedAt: time.Now().Add(-2 * time.Minute),
	}))
	require.NoError(t, store.Append(context.Background(), db, &model.LedgerEntry{
		IdempotencyKey: uuid.New(), Source: &a, Destination: b, Amount: 40, CreatedAt: time.Now().Add(-time.Minute),
	}))

	hist, err := store.ListHistory(context.Background(), a)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.True(t, hist[0].CreatedAt.After(hist[1].CreatedAt) || hist[0].CreatedAt.Equal(hist[1].CreatedAt))
}
