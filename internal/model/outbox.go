package model

import (
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is a best-effort, at-least-once notification of a committed
// LedgerEntry. It is written in the same transaction as the entry it
// describes and relayed to Kafka out-of-band by cmd/relay; nothing in the
// core ever reads it back. If inserting it fails, the entry's transaction
// fails with it.
type OutboxEvent struct {
	ID          uint64    `gorm:"primaryKey"`
	Aggregate   string    `gorm:"size:64;not null"`
	AggregateID uuid.UUID `gorm:"type:uuid;not null"`
	EventType   string    `gorm:"size:64;not null"`
	Payload     string    `gorm:"type:jsonb;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	Processed   bool      `gorm:"not null;default:false;index"`
	ProcessedAt *time.Time
}

func (OutboxEvent) TableName() string { return "event_outbox" }
