package main

import (
	"context"
	"fmt"
	"time"

	"github.com/richardliu001/ledgerx/internal/config"
	"github.com/richardliu001/ledgerx/internal/logger"
	"github.com/richardliu001/ledgerx/internal/outbox"

	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// cmd/relay is the out-of-band outbox poller: it never touches the core
// engine and cannot affect the outcome of a write, only notify
// downstream consumers of commits that already happened.
func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}

	relay := outbox.NewRelay(gdb, kw)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	log.Info("ledgerx-relay started")
	for range ticker.C {
		ctx := context.Background()
		events, err := relay.Poll(ctx, 100)
		if err != nil {
			log.Errorf("poll outbox: %v", err)
			continue
		}
		for _, evt := range events {
			if err := relay.Publish(ctx, evt); err != nil {
				log.Errorf("publish id=%d: %v", evt.ID, err)
				continue
			}
			if err := relay.MarkProcessed(ctx, evt.ID); err != nil {
				log.Errorf("mark processed id=%d: %v", evt.ID, err)
			} else {
				log.Infof("event %d relayed", evt.ID)
			}
		}
	}
}
