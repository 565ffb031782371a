package model

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntry is one immutable record of value movement. Source is nil
// for deposits (value entering the system); destination is always set.
// Entries are never updated or deleted once committed.
type LedgerEntry struct {
	ID             uuid.UUID  `gorm:"primaryKey;type:uuid"`
	IdempotencyKey uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_idempotency_key"`
	Source         *uuid.UUID `gorm:"type:uuid;index:idx_ledger_source_created,priority:1"`
	Destination    uuid.UUID  `gorm:"type:uuid;not null;index:idx_ledger_destination_created,priority:1"`
	Amount         int64      `gorm:"not null;check:amount > 0"`
	CreatedAt      time.Time  `gorm:"not null;index:idx_ledger_source_created,priority:2;index:idx_ledger_destination_created,priority:2"`

	// Belongs-to associations, present only so migration declares the
	// source/destination foreign keys to users; never loaded or serialized.
	SourceUser      *User `gorm:"foreignKey:Source;references:ID" json:"-"`
	DestinationUser *User `gorm:"foreignKey:Destination;references:ID" json:"-"`
}

func (LedgerEntry) TableName() string { return "transactions" }

// IsDeposit reports whether the entry injects value rather than moving it
// between two existing users.
func (e LedgerEntry) IsDeposit() bool { return e.Source == nil }
