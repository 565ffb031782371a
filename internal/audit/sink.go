// Package audit implements the failure audit sink: a best-effort,
// append-only writer for transfers/deposits that exhausted the
// Coordinator's retry budget. It never runs inside the main transaction
// and never surfaces its own errors to the caller.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/richardliu001/ledgerx/internal/ledgerx"
	"github.com/richardliu001/ledgerx/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Attempt describes a write that failed after the retry budget was spent.
type Attempt struct {
	IdempotencyKey uuid.UUID
	Source         *uuid.UUID
	Destination    uuid.UUID
	Amount         int64
	Kind           ledgerx.Kind
	Cause          error
	RetryCount     int
}

// Sink writes Attempts to the ledger_audit.failed_transactions table.
type Sink struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// New builds a Sink over an already-migrated database handle.
func New(db *gorm.DB, log *zap.SugaredLogger) *Sink {
	return &Sink{db: db, log: log}
}

// Record writes a into the audit table. It runs after the caller's main
// transaction has already ended, on its own connection, and swallows any
// internal error after logging it — an audit-write failure must never
// mask the original error already being returned to the caller.
func (s *Sink) Record(ctx context.Context, a Attempt) {
	detail := ""
	if a.Cause != nil {
		detail = a.Cause.Error()
	}
	row := model.FailedAttempt{
		IdempotencyKey: a.IdempotencyKey,
		Source:         a.Source,
		Destination:    a.Destination,
		Amount:         a.Amount,
		ErrorKind:      string(a.Kind),
		ErrorDetail:    detail,
		RetryCount:     a.RetryCount,
		FailedAt:       time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.log.Warnw("failed to record failed attempt", "idempotency_key", a.IdempotencyKey, "err", err)
	}
}
