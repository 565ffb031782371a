package model

import (
	"time"

	"github.com/google/uuid"
)

// FailedAttempt is an append-only audit of transfers/deposits that could
// not be committed after the retry budget was spent. Written only by the
// Executor on retry exhaustion; never consulted on the hot path. It lives
// in the ledger_audit schema, outside the operational tables' namespace.
type FailedAttempt struct {
	ID             uint64     `gorm:"primaryKey;autoIncrement"`
	IdempotencyKey uuid.UUID  `gorm:"type:uuid;not null;index"`
	Source         *uuid.UUID `gorm:"type:uuid"`
	Destination    uuid.UUID  `gorm:"type:uuid;not null"`
	Amount         int64      `gorm:"not null"`
	ErrorKind      string     `gorm:"size:32;not null"`
	ErrorDetail    string     `gorm:"type:text;not null"`
	RetryCount     int        `gorm:"not null"`
	FailedAt       time.Time  `gorm:"not null"`
	ResolvedAt     *time.Time
}

func (FailedAttempt) TableName() string { return "ledger_audit.failed_transactions" }
