package ledgerx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATEs this package cares about.
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateCheckViolation       = "23514"
)

// Classify wraps a raw store/driver error into the appropriate *Error
// Kind. An error that is already a *Error passes through unchanged, so
// classification is safe to apply defensively at any layer boundary.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerializationFailure, sqlStateDeadlockDetected:
			return New(op, KindConflict, err)
		case sqlStateForeignKeyViolation, sqlStateCheckViolation, sqlStateUniqueViolation:
			return New(op, KindValidation, err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return New(op, KindCanceled, err)
	}
	return New(op, KindInternal, err)
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505) — the signal that a concurrent request won
// the race to append the same idempotency key.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateUniqueViolation
	}
	return false
}

// IsRetryableConflict reports whether err is (or wraps) a KindConflict
// *Error — the only class the Coordinator re-runs a unit of work for.
func IsRetryableConflict(err error) bool {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind == KindConflict
	}
	return false
}
