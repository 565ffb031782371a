package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Ledger    LedgerConfig    `yaml:"ledger"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PostgresConfig struct {
	DSN         string `yaml:"dsn"`
	MaxOpenConn int    `yaml:"max_open_conn"`
	MaxIdleConn int    `yaml:"max_idle_conn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// LedgerConfig holds the core engine's environment-configurable knobs:
// retry budget, initial backoff and the fixed unit scale.
type LedgerConfig struct {
	RetryBudget     int           `yaml:"retry_budget"`
	InitialBackoff  time.Duration `yaml:"initial_backoff"`
	UnitScale       string        `yaml:"unit_scale"`
	AuditSchemaName string        `yaml:"audit_schema_name"`
}

// Default returns the reference deployment's knob values: pool sized
// 10..100 connections, R=10 additional retries, 10ms initial backoff
// doubling, cents as the minor unit.
func Default() Config {
	return Config{
		Server:   ServerConfig{Port: 8080},
		Postgres: PostgresConfig{MaxOpenConn: 100, MaxIdleConn: 10},
		RateLimit: RateLimitConfig{
			RPS:   50,
			Burst: 100,
		},
		Ledger: LedgerConfig{
			RetryBudget:     10,
			InitialBackoff:  10 * time.Millisecond,
			UnitScale:       "cents",
			AuditSchemaName: "ledger_audit",
		},
	}
}

// Load reads a YAML config file over the defaults and applies environment
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if dsn := os.Getenv("LEDGERX_POSTGRES_DSN"); dsn != "" {
		cfg.Postgres.DSN = dsn
	}
	return &cfg, nil
}
