package app

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"

	BrokerNone     = "none"
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
)

// Config описывает настройки запуска storefront.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	ProcessingDelay      time.Duration
	ErrorDisplayWindow   time.Duration
	SessionIdleTTL       time.Duration
	SessionSweepInterval time.Duration

	EventsBroker  string
	KafkaBrokers  string
	KafkaClientID string
	RabbitMQURL   string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска на памяти без брокера.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,

		ProcessingDelay:      1500 * time.Millisecond,
		ErrorDisplayWindow:   3 * time.Second,
		SessionIdleTTL:       30 * time.Minute,
		SessionSweepInterval: time.Minute,

		EventsBroker:  BrokerNone,
		KafkaClientID: "storefront",

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,

		ShutdownTimeout: 5 * time.Second,
	}
}

// KafkaBrokerList разбирает список брокеров через запятую.
func (c Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	var errs []error

	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http addr is required"))
	}

	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			errs = append(errs, errors.New("postgres dsn is required for postgres storage driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported storage driver: %q", c.StorageDriver))
	}

	switch c.EventsBroker {
	case BrokerNone:
	case BrokerKafka:
		if len(c.KafkaBrokerList()) == 0 {
			errs = append(errs, errors.New("kafka brokers are required for kafka events broker"))
		}
	case BrokerRabbitMQ:
		if strings.TrimSpace(c.RabbitMQURL) == "" {
			errs = append(errs, errors.New("rabbitmq url is required for rabbitmq events broker"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported events broker: %q", c.EventsBroker))
	}

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"processing delay", c.ProcessingDelay},
		{"error display window", c.ErrorDisplayWindow},
		{"session idle ttl", c.SessionIdleTTL},
		{"session sweep interval", c.SessionSweepInterval},
		{"outbox poll interval", c.OutboxPollInterval},
		{"shutdown timeout", c.ShutdownTimeout},
	} {
		if d.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0", d.name))
		}
	}
	if c.OutboxBatchSize <= 0 {
		errs = append(errs, errors.New("outbox batch size must be > 0"))
	}
	if c.OutboxMaxAttempts <= 0 {
		errs = append(errs, errors.New("outbox max attempts must be > 0"))
	}
	if c.OutboxRetryDelay < 0 {
		errs = append(errs, errors.New("outbox retry delay must be >= 0"))
	}

	return errors.Join(errs...)
}
