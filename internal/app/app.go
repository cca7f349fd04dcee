// Package app собирает storefront: хранилище, сессии, HTTP API, gRPC health,
// метрики и фоновые воркеры.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/httpapi"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/service/sweeper"
	"github.com/vladislavdragonenkov/storefront/internal/session"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const grpcServiceName = "storefront"

const healthSyncInterval = 5 * time.Second

// Run запускает сервис и блокируется до отмены ctx или ошибки сервера.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close(logger)

	publishers, err := initEventPublishers(cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("failed to init events broker, order events stay in outbox")
	}
	defer publishers.close(logger)

	registry := prometheus.NewRegistry()
	storefrontMetrics := metrics.NewStorefrontMetricsWithRegisterer(registry)

	sessionDeps := session.Dependencies{
		Catalog:  catalog.Default(),
		Store:    deps.store,
		Timeline: deps.timelineRepo,
		Metrics:  storefrontMetrics,
		Logger:   log.WithField("component", "session"),
	}
	sessionDeps.Outbox = sessionOutbox(cfg, deps.outboxRepo, publishers, logger)
	manager, err := session.NewManager(session.Config{
		ProcessingDelay:    cfg.ProcessingDelay,
		ErrorDisplayWindow: cfg.ErrorDisplayWindow,
	}, sessionDeps)
	if err != nil {
		return err
	}

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.SetSessionCounter(manager)
	if deps.storageChecker != nil {
		healthHandler.RegisterChecker("postgres", deps.storageChecker)
	}
	if publishers.ping != nil {
		healthHandler.RegisterChecker(cfg.EventsBroker, healthcheck.NewOptionalChecker(cfg.EventsBroker, publishers.ping))
	}

	grpcMetrics := promgrpc.NewServerMetrics()
	registry.MustRegister(grpcMetrics)
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	errCh := make(chan error, 3)

	apiHandler := httpapi.NewRouter(httpapi.NewHandler(manager, sessionDeps.Catalog, log.WithField("component", "httpapi")))
	apiSrv, err := serveHTTP(cfg.HTTPAddr, "HTTP API", apiHandler, logger, errCh)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	defer shutdownHTTP(apiSrv, cfg.ShutdownTimeout, logger)

	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, registry}
	metricsSrv, err := serveHTTP(cfg.MetricsAddr, "метрики и health checks", newOpsMux(gatherers, healthHandler), logger, errCh)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}
	defer shutdownHTTP(metricsSrv, cfg.ShutdownTimeout, logger)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	go func() {
		logger.Infof("gRPC сервер слушает %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()

	workersCtx, stopWorkers := context.WithCancel(ctx)
	var workers sync.WaitGroup
	startWorker := func(run func(context.Context)) {
		workers.Add(1)
		go func() {
			defer workers.Done()
			run(workersCtx)
		}()
	}

	startWorker(func(ctx context.Context) {
		syncGRPCHealth(ctx, healthServer, healthHandler)
	})

	sessionSweeper := sweeper.New(manager,
		sweeper.WithLogger(log.WithField("component", "session-sweeper")),
		sweeper.WithInterval(cfg.SessionSweepInterval),
		sweeper.WithIdleTTL(cfg.SessionIdleTTL),
	)
	startWorker(sessionSweeper.Run)

	var outboxWorker *outbox.Worker
	if publishers.enabled() {
		outboxWorker = outbox.NewWorker(deps.outboxRepo, publishers.publisher,
			outbox.WithLogger(log.WithField("component", "outbox-worker")),
			outbox.WithDLQPublisher(publishers.dlq),
			outbox.WithRegisterer(registry),
			outbox.WithPollInterval(cfg.OutboxPollInterval),
			outbox.WithBatchSize(cfg.OutboxBatchSize),
			outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
			outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
		)
		startWorker(outboxWorker.Run)
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем сервис")
		runErr = ctx.Err()
	case err := <-errCh:
		logger.WithError(err).Error("server failed")
		runErr = err
	}

	healthServer.Shutdown()
	shutdownHTTP(apiSrv, cfg.ShutdownTimeout, logger)
	stopGRPC(grpcServer, cfg.ShutdownTimeout, logger)
	stopWorkers()
	workers.Wait()

	if outboxWorker != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		outboxWorker.Drain(drainCtx)
		cancel()
	}
	return runErr
}

// stopGRPC ждёт GracefulStop не дольше timeout, затем останавливает принудительно.
func stopGRPC(server *grpc.Server, timeout time.Duration, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
		server.Stop()
	}
}

// syncGRPCHealth переносит готовность из HTTP-проверок в gRPC health.
func syncGRPCHealth(ctx context.Context, server *health.Server, checks *healthcheck.Handler) {
	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if !checks.Ready(ctx) {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		server.SetServingStatus("", status)
		server.SetServingStatus(grpcServiceName, status)
	}

	update()
	ticker := time.NewTicker(healthSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
