package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

// runtimeDependencies — хранилища, выбранные конфигурацией.
type runtimeDependencies struct {
	store          domain.KeyValueStore
	outboxRepo     domain.OutboxRepository
	timelineRepo   domain.TimelineRepository
	storageChecker healthcheck.Checker
	closeFn        func() error
}

func (d runtimeDependencies) close(logger *log.Entry) {
	if d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
	}
}

// initRuntimeDependencies открывает хранилище и, для postgres, применяет миграции.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (runtimeDependencies, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		logger.Info("storage: memory")
		return runtimeDependencies{
			store:        memory.NewKeyValueStore(),
			outboxRepo:   memory.NewOutboxRepository(),
			timelineRepo: memory.NewTimelineRepository(),
		}, nil

	case StorageDriverPostgres:
		if cfg.PostgresDSN == "" {
			return runtimeDependencies{}, fmt.Errorf("postgres dsn is required")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return runtimeDependencies{}, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return runtimeDependencies{}, fmt.Errorf("migrate postgres: %w", err)
			}
			state, err := store.MigrationStatus(ctx)
			if err == nil {
				logger.WithFields(log.Fields{
					"version": state.Version,
					"applied": state.Applied,
				}).Info("postgres migrations applied")
			}
		}
		logger.Info("storage: postgres")

		return runtimeDependencies{
			store:          postgres.NewKeyValueStore(store),
			outboxRepo:     postgres.NewOutboxRepository(store),
			timelineRepo:   postgres.NewTimelineRepository(store),
			storageChecker: healthcheck.NewCriticalChecker("postgres", store.Ping),
			closeFn:        store.Close,
		}, nil

	default:
		return runtimeDependencies{}, fmt.Errorf("unsupported storage driver: %q", cfg.StorageDriver)
	}
}
