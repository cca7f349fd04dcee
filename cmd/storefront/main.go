package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	envHTTPAddr             = "STOREFRONT_HTTP_ADDR"
	envGRPCAddr             = "STOREFRONT_GRPC_ADDR"
	envMetricsAddr          = "STOREFRONT_METRICS_ADDR"
	envStorageDriver        = "STOREFRONT_STORAGE_DRIVER"
	envPostgresDSN          = "STOREFRONT_POSTGRES_DSN"
	envPostgresAutoMigrate  = "STOREFRONT_POSTGRES_AUTO_MIGRATE"
	envProcessingDelay      = "STOREFRONT_PROCESSING_DELAY"
	envErrorDisplayWindow   = "STOREFRONT_ERROR_DISPLAY_WINDOW"
	envSessionIdleTTL       = "STOREFRONT_SESSION_IDLE_TTL"
	envSessionSweepInterval = "STOREFRONT_SESSION_SWEEP_INTERVAL"
	envEventsBroker         = "STOREFRONT_EVENTS_BROKER"
	envKafkaBrokers         = "KAFKA_BROKERS"
	envKafkaClientID        = "KAFKA_CLIENT_ID"
	envRabbitMQURL          = "RABBITMQ_URL"
	envOutboxPollInterval   = "STOREFRONT_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize      = "STOREFRONT_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts    = "STOREFRONT_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay     = "STOREFRONT_OUTBOX_RETRY_DELAY"
	envShutdownTimeout      = "STOREFRONT_SHUTDOWN_TIMEOUT"
	envLogLevel             = "STOREFRONT_LOG_LEVEL"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	if raw, ok := lookup(envLogLevel); ok && strings.TrimSpace(raw) != "" {
		level, err := log.ParseLevel(strings.TrimSpace(raw))
		if err != nil {
			log.WithError(err).Warn("invalid log level, using info")
			return
		}
		log.SetLevel(level)
	}
}

// readConfigFromEnv накладывает переменные окружения на конфигурацию по умолчанию.
// Некорректные значения не роняют запуск: остаётся дефолт, а в warnings попадает причина.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, raw string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, raw, err))
	}

	setString := func(key string, dst *string, normalize func(string) string) {
		raw, ok := lookup(key)
		if !ok {
			return
		}
		if value := normalize(raw); value != "" {
			*dst = value
		}
	}
	setBool := func(key string, dst *bool) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		value, err := parseBool(raw)
		if err != nil {
			warn(key, raw, err)
			return
		}
		*dst = value
	}
	setInt := func(key string, dst *int, validate func(int) bool, msg string) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		value, err := parseInt(raw, validate, msg)
		if err != nil {
			warn(key, raw, err)
			return
		}
		*dst = value
	}
	setDuration := func(key string, dst *time.Duration, validate func(time.Duration) bool, msg string) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		value, err := parseDuration(raw, validate, msg)
		if err != nil {
			warn(key, raw, err)
			return
		}
		*dst = value
	}

	positive := func(v time.Duration) bool { return v > 0 }
	nonNegative := func(v time.Duration) bool { return v >= 0 }
	positiveInt := func(v int) bool { return v > 0 }
	lower := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

	setString(envHTTPAddr, &cfg.HTTPAddr, strings.TrimSpace)
	setString(envGRPCAddr, &cfg.GRPCAddr, strings.TrimSpace)
	setString(envMetricsAddr, &cfg.MetricsAddr, strings.TrimSpace)
	setString(envStorageDriver, &cfg.StorageDriver, lower)
	setString(envPostgresDSN, &cfg.PostgresDSN, strings.TrimSpace)
	setBool(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)

	setDuration(envProcessingDelay, &cfg.ProcessingDelay, positive, "must be > 0")
	setDuration(envErrorDisplayWindow, &cfg.ErrorDisplayWindow, positive, "must be > 0")
	setDuration(envSessionIdleTTL, &cfg.SessionIdleTTL, positive, "must be > 0")
	setDuration(envSessionSweepInterval, &cfg.SessionSweepInterval, positive, "must be > 0")

	setString(envEventsBroker, &cfg.EventsBroker, lower)
	setString(envKafkaBrokers, &cfg.KafkaBrokers, strings.TrimSpace)
	setString(envKafkaClientID, &cfg.KafkaClientID, strings.TrimSpace)
	setString(envRabbitMQURL, &cfg.RabbitMQURL, strings.TrimSpace)

	setDuration(envOutboxPollInterval, &cfg.OutboxPollInterval, positive, "must be > 0")
	setInt(envOutboxBatchSize, &cfg.OutboxBatchSize, positiveInt, "must be > 0")
	setInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positiveInt, "must be > 0")
	setDuration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegative, "must be >= 0")
	setDuration(envShutdownTimeout, &cfg.ShutdownTimeout, positive, "must be > 0")

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, validate func(int) bool, msg string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if validate != nil && !validate(value) {
		return 0, errors.New(msg)
	}
	return value, nil
}

func parseDuration(raw string, validate func(time.Duration) bool, msg string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if validate != nil && !validate(value) {
		return 0, errors.New(msg)
	}
	return value, nil
}

func main() {
	showVersion := flag.Bool("version", false, "вывести версию сборки и выйти")
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	setupLogger(os.LookupEnv)
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range warnings {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"version":        version.GetVersion(),
		"http_addr":      cfg.HTTPAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"storage_driver": cfg.StorageDriver,
		"events_broker":  cfg.EventsBroker,
	}).Info("запускаем storefront")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("storefront остановлен")
}
