// Package outbox implements a best-effort notification path: a row
// written in the same transaction as a committed LedgerEntry, relayed to
// Kafka by cmd/relay. The relay runs out-of-band and cannot affect the
// outcome of a write; a failed Write, however, fails the enclosing
// transaction, so the LedgerEntry is not committed either.
package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/richardliu001/ledgerx/internal/model"
	"github.com/segmentio/kafka-go"
	"gorm.io/gorm"
)

// Write appends an OutboxEvent for entry inside tx, the same transaction
// the LedgerEntry itself was appended in.
func Write(ctx context.Context, tx *gorm.DB, entry *model.LedgerEntry) error {
	eventType := "Transfer"
	if entry.IsDeposit() {
		eventType = "Deposit"
	}
	payload, err := json.Marshal(map[string]interface{}{
		"entry_id":    entry.ID,
		"source":      entry.Source,
		"destination": entry.Destination,
		"amount":      entry.Amount,
		"created_at":  entry.CreatedAt,
	})
	if err != nil {
		return err
	}
	evt := &model.OutboxEvent{
		Aggregate:   "LedgerEntry",
		AggregateID: entry.ID,
		EventType:   eventType,
		Payload:     string(payload),
	}
	return tx.WithContext(ctx).Create(evt).Error
}

// Relay polls unprocessed events and publishes them to Kafka.
type Relay struct {
	db     *gorm.DB
	writer *kafka.Writer
}

// NewRelay builds a Relay over db and a Kafka writer.
func NewRelay(db *gorm.DB, w *kafka.Writer) *Relay {
	return &Relay{db: db, writer: w}
}

// Poll fetches up to limit unprocessed events, oldest first.
func (r *Relay) Poll(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Order("created_at").
		Limit(limit).
		Find(&evts).Error
	return evts, err
}

// Publish writes evt to Kafka.
func (r *Relay) Publish(ctx context.Context, evt model.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(evt.AggregateID.String()),
		Value: []byte(evt.Payload),
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}

// MarkProcessed flips the processed flag for id.
func (r *Relay) MarkProcessed(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.OutboxEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
}
