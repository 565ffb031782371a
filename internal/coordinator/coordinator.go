// Package coordinator wraps a unit of work in a serializable transaction
// with deterministic lock ordering and bounded exponential-backoff retry.
package coordinator

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/ledgerx/internal/ledgerx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LockAcquirer takes an exclusive row lock on a user anchor within tx.
// Implemented by ledger.Store; kept as an interface here so this package
// has no import-time dependency on the ledger package.
type LockAcquirer interface {
	AcquireUserLock(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error
}

// Coordinator runs units of work at serializable isolation with ascending
// user-id lock ordering as the sole deadlock-avoidance mechanism.
type Coordinator struct {
	db             *gorm.DB
	retryBudget    int
	initialBackoff time.Duration
	isolation      sql.IsolationLevel
	log            *zap.SugaredLogger
}

// New builds a Coordinator at serializable isolation, the level required
// in production. retryBudget is the number of additional attempts beyond
// the first; initialBackoff is the starting sleep, doubled after each
// retryable conflict.
func New(db *gorm.DB, retryBudget int, initialBackoff time.Duration, log *zap.SugaredLogger) *Coordinator {
	return NewWithIsolation(db, retryBudget, initialBackoff, sql.LevelSerializable, log)
}

// NewWithIsolation builds a Coordinator at an explicit isolation level.
// Production code should always use New; this exists for test doubles
// (e.g. SQLite, which rejects an explicit serializable request) that
// cannot honor the serializable requirement but still need to exercise
// the lock-ordering and retry machinery.
func NewWithIsolation(db *gorm.DB, retryBudget int, initialBackoff time.Duration, isolation sql.IsolationLevel, log *zap.SugaredLogger) *Coordinator {
	return &Coordinator{db: db, retryBudget: retryBudget, initialBackoff: initialBackoff, isolation: isolation, log: log}
}

// RetryBudget returns R, the number of additional attempts configured.
func (c *Coordinator) RetryBudget() int { return c.retryBudget }

// Do executes fn inside a serializable transaction after locking users in
// ascending id order. On a retryable conflict it re-runs fn from scratch,
// sleeping with exponential backoff between attempts, up to retryBudget
// additional times. Cancellation between or during attempts aborts the
// retry loop and rolls back any in-flight transaction.
func (c *Coordinator) Do(ctx context.Context, locker LockAcquirer, users []uuid.UUID, fn func(tx *gorm.DB) error) error {
	ordered := orderedUnique(users)
	backoff := c.initialBackoff
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return ledgerx.New("coordinator.Do", ledgerx.KindCanceled, err)
		}

		err := c.runOnce(ctx, locker, ordered, fn)
		if err == nil {
			return nil
		}
		if !ledgerx.IsRetryableConflict(err) {
			return err
		}
		lastErr = err
		if attempt >= c.retryBudget {
			break
		}
		c.log.Debugw("retrying after conflict", "attempt", attempt+1, "backoff", backoff, "err", err)
		select {
		case <-ctx.Done():
			return ledgerx.New("coordinator.Do", ledgerx.KindCanceled, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return ledgerx.New("coordinator.Do", ledgerx.KindConflict, lastErr)
}

func (c *Coordinator) runOnce(ctx context.Context, locker LockAcquirer, users []uuid.UUID, fn func(tx *gorm.DB) error) (err error) {
	tx := c.db.WithContext(ctx).Begin(&sql.TxOptions{Isolation: c.isolation})
	if tx.Error != nil {
		return ledgerx.Classify("coordinator.begin", tx.Error)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, u := range users {
		if lockErr := locker.AcquireUserLock(ctx, tx, u); lockErr != nil {
			return ledgerx.Classify("coordinator.lock", lockErr)
		}
	}

	if fnErr := fn(tx); fnErr != nil {
		return fnErr
	}

	if commitErr := tx.Commit().Error; commitErr != nil {
		return ledgerx.Classify("coordinator.commit", commitErr)
	}
	return nil
}

// orderedUnique sorts user ids ascending lexicographically on their
// string form and drops duplicates — the sole deadlock-prevention rule.
func orderedUnique(users []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(users))
	out := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
