// Package executor implements the stateless operation orchestrator
// exposing execute_transfer, execute_deposit, balance_now and balance_at.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/ledgerx/internal/audit"
	"github.com/richardliu001/ledgerx/internal/cache"
	"github.com/richardliu001/ledgerx/internal/coordinator"
	"github.com/richardliu001/ledgerx/internal/ledger"
	"github.com/richardliu001/ledgerx/internal/ledgerx"
	"github.com/richardliu001/ledgerx/internal/model"
	"github.com/richardliu001/ledgerx/internal/outbox"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Executor glues the Ledger Store, the Concurrency Coordinator and the
// Failure Audit Sink into the operations callers invoke.
type Executor struct {
	store *ledger.Store
	coord *coordinator.Coordinator
	sink  *audit.Sink
	idem  *cache.IdempotencyCache
	log   *zap.SugaredLogger
}

// New builds an Executor. idem may be nil to disable the short-circuit
// cache entirely (the store's unique index is always the source of truth).
func New(store *ledger.Store, coord *coordinator.Coordinator, sink *audit.Sink, idem *cache.IdempotencyCache, log *zap.SugaredLogger) *Executor {
	return &Executor{store: store, coord: coord, sink: sink, idem: idem, log: log}
}

// ExecuteTransfer moves amount from source to destination, or returns the
// entry a prior call with the same idempotencyKey already produced.
func (e *Executor) ExecuteTransfer(ctx context.Context, idempotencyKey, source, destination uuid.UUID, amount int64) (*model.LedgerEntry, error) {
	const op = "executor.ExecuteTransfer"

	if entry, err, done := e.probe(ctx, op, idempotencyKey); done {
		return entry, err
	}

	var result *model.LedgerEntry
	err := e.coord.Do(ctx, e.store, []uuid.UUID{source, destination}, func(tx *gorm.DB) error {
		existing, ferr := e.store.FindByIdempotencyKey(ctx, tx, idempotencyKey)
		if ferr != nil {
			return ledgerx.Classify(op, ferr)
		}
		if existing != nil {
			result = existing
			return nil
		}

		now := time.Now().UTC()
		balance, derr := e.store.DeriveBalance(ctx, tx, source, now)
		if derr != nil {
			return ledgerx.Classify(op, derr)
		}
		if balance < amount {
			return ledgerx.New(op, ledgerx.KindInsufficientFunds, nil)
		}

		entry := &model.LedgerEntry{
			ID:             uuid.New(),
			IdempotencyKey: idempotencyKey,
			Source:         &source,
			Destination:    destination,
			Amount:         amount,
			CreatedAt:      now,
		}
		if aerr := e.store.Append(ctx, tx, entry); aerr != nil {
			if ledgerx.IsUniqueViolation(aerr) {
				winner, werr := e.store.FindByIdempotencyKey(ctx, tx, idempotencyKey)
				if werr != nil {
					return ledgerx.Classify(op, werr)
				}
				if winner != nil {
					result = winner
					return nil
				}
			}
			return ledgerx.Classify(op, aerr)
		}
		if oerr := outbox.Write(ctx, tx, entry); oerr != nil {
			return ledgerx.Classify(op, oerr)
		}
		result = entry
		return nil
	})

	return e.finish(ctx, op, idempotencyKey, &source, destination, amount, result, err)
}

// ExecuteDeposit injects amount into destination's balance. Source is
// absent (entry.Source == nil). Locking reduces to destination only;
// serializable isolation and the idempotency protocol are unchanged.
func (e *Executor) ExecuteDeposit(ctx context.Context, idempotencyKey, destination uuid.UUID, amount int64) (*model.LedgerEntry, error) {
	const op = "executor.ExecuteDeposit"

	if entry, err, done := e.probe(ctx, op, idempotencyKey); done {
		return entry, err
	}

	var result *model.LedgerEntry
	err := e.coord.Do(ctx, e.store, []uuid.UUID{destination}, func(tx *gorm.DB) error {
		existing, ferr := e.store.FindByIdempotencyKey(ctx, tx, idempotencyKey)
		if ferr != nil {
			return ledgerx.Classify(op, ferr)
		}
		if existing != nil {
			result = existing
			return nil
		}

		entry := &model.LedgerEntry{
			ID:             uuid.New(),
			IdempotencyKey: idempotencyKey,
			Source:         nil,
			Destination:    destination,
			Amount:         amount,
			CreatedAt:      time.Now().UTC(),
		}
		if aerr := e.store.Append(ctx, tx, entry); aerr != nil {
			if ledgerx.IsUniqueViolation(aerr) {
				winner, werr := e.store.FindByIdempotencyKey(ctx, tx, idempotencyKey)
				if werr != nil {
					return ledgerx.Classify(op, werr)
				}
				if winner != nil {
					result = winner
					return nil
				}
			}
			return ledgerx.Classify(op, aerr)
		}
		if oerr := outbox.Write(ctx, tx, entry); oerr != nil {
			return ledgerx.Classify(op, oerr)
		}
		result = entry
		return nil
	})

	return e.finish(ctx, op, idempotencyKey, nil, destination, amount, result, err)
}

// probe is the idempotency probe run outside any transaction. A cache
// hit or store hit both short-circuit the write.
func (e *Executor) probe(ctx context.Context, op string, key uuid.UUID) (*model.LedgerEntry, error, bool) {
	if e.idem != nil {
		if entryID, ok := e.idem.Get(ctx, key); ok {
			if entry, err := e.store.FindByID(ctx, nil, entryID); err == nil && entry != nil {
				return entry, nil, true
			}
		}
	}
	entry, err := e.store.FindByIdempotencyKey(ctx, nil, key)
	if err != nil {
		return nil, ledgerx.Classify(op, err), true
	}
	if entry != nil {
		return entry, nil, true
	}
	return nil, nil, false
}

// finish applies the audit-on-exhaustion rule and warms the idempotency
// cache on success.
func (e *Executor) finish(ctx context.Context, op string, key uuid.UUID, source *uuid.UUID, destination uuid.UUID, amount int64, result *model.LedgerEntry, err error) (*model.LedgerEntry, error) {
	if err != nil {
		var le *ledgerx.Error
		if errors.As(err, &le) && le.Kind == ledgerx.KindConflict {
			e.sink.Record(context.Background(), audit.Attempt{
				IdempotencyKey: key,
				Source:         source,
				Destination:    destination,
				Amount:         amount,
				Kind:           le.Kind,
				Cause:          le.Err,
				RetryCount:     e.coord.RetryBudget(),
			})
		}
		return nil, err
	}
	if e.idem != nil && result != nil {
		e.idem.Set(ctx, key, result.ID)
	}
	return result, nil
}

// BalanceNow derives the current balance of userID, outside any
// transaction. Unknown users yield 0.
func (e *Executor) BalanceNow(ctx context.Context, userID uuid.UUID) (int64, error) {
	bal, err := e.store.DeriveBalance(ctx, nil, userID, time.Now().UTC())
	if err != nil {
		return 0, ledgerx.Classify("executor.BalanceNow", err)
	}
	return bal, nil
}

// BalanceAt derives userID's balance as of at. A future at returns the
// current balance; a t before any entry returns 0.
func (e *Executor) BalanceAt(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	bal, err := e.store.DeriveBalance(ctx, nil, userID, at)
	if err != nil {
		return 0, ledgerx.Classify("executor.BalanceAt", err)
	}
	return bal, nil
}

// ListHistory returns every entry touching userID, most recent first.
func (e *Executor) ListHistory(ctx context.Context, userID uuid.UUID) ([]model.LedgerEntry, error) {
	entries, err := e.store.ListHistory(ctx, userID)
	if err != nil {
		return nil, ledgerx.Classify("executor.ListHistory", err)
	}
	return entries, nil
}
