package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
)

const readHeaderTimeout = 5 * time.Second

// newOpsMux собирает служебные эндпоинты: метрики и пробы.
func newOpsMux(gatherer prometheus.Gatherer, healthHandler *healthcheck.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	return mux
}

// serveHTTP слушает addr и обслуживает handler; ошибка Serve отправляется в errCh.
func serveHTTP(addr, name string, handler http.Handler, logger *log.Entry, errCh chan<- error) (*http.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		logger.Infof("%s слушает %s", name, lis.Addr())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return srv, nil
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
