package app

import (
	"context"
	"os"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
)

func TestInitRuntimeDependencies_Memory(t *testing.T) {
	t.Parallel()

	deps, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverMemory,
	}, log.WithField("test", "memory-storage"))
	if err != nil {
		t.Fatalf("initRuntimeDependencies(memory) failed: %v", err)
	}
	if deps.store == nil {
		t.Fatal("store should not be nil for memory storage")
	}
	if deps.outboxRepo == nil {
		t.Fatal("outboxRepo should not be nil for memory storage")
	}
	if deps.timelineRepo == nil {
		t.Fatal("timelineRepo should not be nil for memory storage")
	}
	if deps.storageChecker != nil {
		t.Fatal("memory storage has no readiness checker")
	}
	deps.close(log.WithField("test", "memory-storage"))
}

func TestInitRuntimeDependencies_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: StorageDriverPostgres,
	}, log.WithField("test", "postgres-missing-dsn"))
	if err == nil {
		t.Fatal("expected error when postgres driver is selected without DSN")
	}
}

func TestInitRuntimeDependencies_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	_, err := initRuntimeDependencies(context.Background(), Config{
		StorageDriver: "sqlite",
	}, log.WithField("test", "unsupported-driver"))
	if err == nil {
		t.Fatal("expected error for unsupported storage driver")
	}
}

func TestInitRuntimeDependencies_PostgresSuccess(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("STOREFRONT_POSTGRES_TEST_DSN"))
	if dsn == "" {
		t.Skip("postgres dsn is not available")
	}

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = dsn

	logger := log.WithField("test", "postgres-init")
	deps, err := initRuntimeDependencies(context.Background(), cfg, logger)
	if err != nil {
		t.Skipf("postgres is not available for app integration test: %v", err)
	}
	defer deps.close(logger)

	if deps.store == nil || deps.outboxRepo == nil || deps.timelineRepo == nil {
		t.Fatalf("postgres dependencies must be initialized: %+v", deps)
	}
	if deps.storageChecker == nil {
		t.Fatal("expected non-nil storage checker for postgres")
	}
	if check := deps.storageChecker.Check(context.Background()); check.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy storage checker, got %+v", check)
	}
}
