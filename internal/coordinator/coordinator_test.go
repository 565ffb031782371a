package coordinator

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/ledgerx/internal/ledgerx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type recordingLocker struct {
	locked []uuid.UUID
}

func (r *recordingLocker) AcquireUserLock(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error {
	r.locked = append(r.locked, userID)
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	return db
}

func newTestCoordinator(t *testing.T, retryBudget int, backoff time.Duration) *Coordinator {
	log, _ := zap.NewDevelopment()
	return NewWithIsolation(newTestDB(t), retryBudget, backoff, sql.LevelDefault, log.Sugar())
}

func TestCoordinator_LocksInAscendingOrder(t *testing.T) {
	c := newTestCoordinator(t, 10, time.Millisecond)
	locker := &recordingLocker{}

	a, b := uuid.New(), uuid.New()
	first, second := a, b
	if second.String() < first.String() {
		first, second = second, first
	}

	unordered := []uuid.UUID{b, a}
	if first == b {
		unordered = []uuid.UUID{a, b}
	}

	err := c.Do(context.Background(), locker, unordered, func(tx *gorm.DB) error { return nil })
	require.NoError(t, err)
	require.Len(t, locker.locked, 2)
	assert.Equal(t, first, locker.locked[0])
	assert.Equal(t, second, locker.locked[1])
}

func TestCoordinator_DedupesUsers(t *testing.T) {
	c := newTestCoordinator(t, 10, time.Millisecond)
	locker := &recordingLocker{}
	u := uuid.New()

	err := c.Do(context.Background(), locker, []uuid.UUID{u, u}, func(tx *gorm.DB) error { return nil })
	require.NoError(t, err)
	assert.Len(t, locker.locked, 1)
}

func TestCoordinator_RetriesConflictThenSucceeds(t *testing.T) {
	c := newTestCoordinator(t, 10, time.Millisecond)
	locker := &recordingLocker{}
	attempts := 0

	err := c.Do(context.Background(), locker, []uuid.UUID{uuid.New()}, func(tx *gorm.DB) error {
		attempts++
		if attempts < 3 {
			return ledgerx.New("test", ledgerx.KindConflict, errors.New("serialization_failure"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestCoordinator_ExhaustsRetryBudget(t *testing.T) {
	c := newTestCoordinator(t, 2, time.Millisecond)
	locker := &recordingLocker{}
	attempts := 0

	err := c.Do(context.Background(), locker, []uuid.UUID{uuid.New()}, func(tx *gorm.DB) error {
		attempts++
		return ledgerx.New("test", ledgerx.KindConflict, errors.New("serialization_failure"))
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts) // initial attempt + 2 retries
	var le *ledgerx.Error
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ledgerx.KindConflict, le.Kind)
}

func TestCoordinator_NonRetryableErrorPropagatesImmediately(t *testing.T) {
	c := newTestCoordinator(t, 10, time.Millisecond)
	locker := &recordingLocker{}
	attempts := 0

	err := c.Do(context.Background(), locker, []uuid.UUID{uuid.New()}, func(tx *gorm.DB) error {
		attempts++
		return ledgerx.New("test", ledgerx.KindInsufficientFunds, nil)
	})
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestCoordinator_CancellationStopsRetries(t *testing.T) {
	c := newTestCoordinator(t, 10, 50*time.Millisecond)
	locker := &recordingLocker{}
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := c.Do(ctx, locker, []uuid.UUID{uuid.New()}, func(tx *gorm.DB) error {
		attempts++
		if attempts == 1 {
			cancel()
		}
		return ledgerx.New("test", ledgerx.KindConflict, errors.New("serialization_failure"))
	})
	require.Error(t, err)
	var le *ledgerx.Error
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ledgerx.KindCanceled, le.Kind)
}
