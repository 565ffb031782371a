// Package ledgerx defines the error vocabulary shared by the ledger store,
// the concurrency coordinator and the transaction executor.
package ledgerx

import "fmt"

// Kind classifies a terminal (or, for Conflict, retry-exhausted) error
// returned to the caller of an execute_* or balance_* operation.
type Kind string

const (
	// KindInsufficientFunds: derived source balance < requested amount.
	// Terminal, not retried, not audited — an expected business outcome.
	KindInsufficientFunds Kind = "insufficient_funds"
	// KindConflict: serialization/deadlock retries exhausted. Audited.
	KindConflict Kind = "conflict"
	// KindValidation: the store rejected a value (e.g. unknown user FK).
	KindValidation Kind = "validation_failure"
	// KindCanceled: the caller's context was cancelled. Not audited.
	KindCanceled Kind = "canceled"
	// KindInternal: anything else. Not audited; only retry-exhausted
	// conflicts reach the audit sink.
	KindInternal Kind = "internal"
)

// Error is the single error type every core operation returns.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a bare *Error (no wrapped cause) of the same
// Kind, so errors.Is(err, ledgerx.InsufficientFunds()) and the other
// sentinel constructors below match by Kind regardless of Op or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Err != nil {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error of the given kind for operation op.
func New(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// sentinel returns a bare *Error usable with errors.Is(err, ledgerx.InsufficientFunds()).
func sentinel(kind Kind) *Error { return &Error{Kind: kind} }

// InsufficientFunds, Conflict, Validation, Canceled and Internal build
// comparison targets for errors.Is without pinning an Op or cause.
func InsufficientFunds() error { return sentinel(KindInsufficientFunds) }
func Conflict() error          { return sentinel(KindConflict) }
func Validation() error        { return sentinel(KindValidation) }
func Canceled() error          { return sentinel(KindCanceled) }
func Internal() error          { return sentinel(KindInternal) }
