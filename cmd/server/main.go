package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/richardliu001/ledgerx/internal/audit"
	"github.com/richardliu001/ledgerx/internal/cache"
	"github.com/richardliu001/ledgerx/internal/config"
	"github.com/richardliu001/ledgerx/internal/coordinator"
	"github.com/richardliu001/ledgerx/internal/executor"
	"github.com/richardliu001/ledgerx/internal/ledger"
	"github.com/richardliu001/ledgerx/internal/logger"
	"github.com/richardliu001/ledgerx/internal/model"
	httptransport "github.com/richardliu001/ledgerx/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. load config
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("unwrap sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Postgres.MaxOpenConn)
	sqlDB.SetMaxIdleConns(cfg.Postgres.MaxIdleConn)

	if err := gdb.Exec("CREATE SCHEMA IF NOT EXISTS " + cfg.Ledger.AuditSchemaName).Error; err != nil {
		log.Fatalf("create audit schema: %v", err)
	}
	if err := gdb.AutoMigrate(&model.User{}, &model.LedgerEntry{}, &model.FailedAttempt{}, &model.OutboxEvent{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis (idempotency short-circuit only; never a balance cache)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warnf("redis unavailable, idempotency short-circuit disabled: %v", err)
		rdb = nil
	}

	// 5. core: ledger store, coordinator, audit sink, executor
	store := ledger.New(gdb)
	coord := coordinator.New(gdb, cfg.Ledger.RetryBudget, cfg.Ledger.InitialBackoff, log)
	sink := audit.New(gdb, log)
	idemCache := cache.New(rdb)
	exec := executor.New(store, coord, sink, idemCache, log)

	// 6. gin router
	router := httptransport.NewRouter(exec, cfg.RateLimit, log)

	// 7. serve
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("ledgerx listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
