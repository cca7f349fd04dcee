// Package metrics содержит Prometheus-метрики витрины.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Значения метки result для отправок формы оплаты.
const (
	CheckoutAccepted = "accepted"
	CheckoutRejected = "rejected"
	CheckoutInFlight = "in_flight"
)

// StorefrontMetrics содержит метрики корзины и оформления заказов.
// Нулевой указатель допустим: все методы становятся no-op.
type StorefrontMetrics struct {
	cartMutations       *prometheus.CounterVec
	checkoutSubmissions *prometheus.CounterVec
	ordersCreated       prometheus.Counter
	checkoutDuration    prometheus.Histogram
	checkoutsInFlight   prometheus.Gauge
	activeSessions      prometheus.Gauge
	sessionsEvicted     prometheus.Counter
	persistenceFailures *prometheus.CounterVec
	timelineEvents      prometheus.Counter
}

// NewStorefrontMetrics регистрирует метрики в DefaultRegisterer.
func NewStorefrontMetrics() *StorefrontMetrics {
	return NewStorefrontMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewStorefrontMetricsWithRegisterer регистрирует метрики в указанном registerer.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewStorefrontMetricsWithRegisterer(registerer prometheus.Registerer) *StorefrontMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StorefrontMetrics{
		cartMutations: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Total number of cart mutations by operation",
		}, []string{"operation"})),
		checkoutSubmissions: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkout_submissions_total",
			Help: "Total number of checkout form submissions by result",
		}, []string{"result"})),
		ordersCreated: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Total number of orders created",
		})),
		checkoutDuration: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_checkout_processing_seconds",
			Help:    "Time between accepted submission and order creation",
			Buckets: []float64{0.1, 0.5, 1, 1.5, 2, 3, 5, 10},
		})),
		checkoutsInFlight: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_checkouts_in_flight",
			Help: "Number of checkouts currently processing",
		})),
		activeSessions: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_active_sessions",
			Help: "Number of sessions loaded in memory",
		})),
		sessionsEvicted: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_sessions_evicted_total",
			Help: "Total number of idle sessions evicted from memory",
		})),
		persistenceFailures: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_persistence_failures_total",
			Help: "Total number of cart persistence failures by operation",
		}, []string{"operation"})),
		timelineEvents: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_timeline_events_total",
			Help: "Total number of session timeline events recorded",
		})),
	}
}

func register[T prometheus.Collector](registerer prometheus.Registerer, collector T) T {
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(T)
			if !ok {
				panic(fmt.Sprintf("collector already registered with unexpected type %T", alreadyRegistered.ExistingCollector))
			}
			return existing
		}
		panic(fmt.Sprintf("register collector: %v", err))
	}
	return collector
}

// RecordCartMutation увеличивает счётчик мутаций корзины.
func (m *StorefrontMetrics) RecordCartMutation(operation string) {
	if m == nil {
		return
	}
	m.cartMutations.WithLabelValues(operation).Inc()
}

// RecordCheckoutSubmission учитывает отправку формы оплаты с результатом result.
func (m *StorefrontMetrics) RecordCheckoutSubmission(result string) {
	if m == nil {
		return
	}
	m.checkoutSubmissions.WithLabelValues(result).Inc()
	if result == CheckoutAccepted {
		m.checkoutsInFlight.Inc()
	}
}

// RecordOrderCreated фиксирует созданный заказ и время обработки.
func (m *StorefrontMetrics) RecordOrderCreated(processing time.Duration) {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
	m.checkoutsInFlight.Dec()
	m.checkoutDuration.Observe(processing.Seconds())
}

// SetActiveSessions выставляет число загруженных сессий.
func (m *StorefrontMetrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// RecordSessionsEvicted учитывает вытесненные простаивающие сессии.
func (m *StorefrontMetrics) RecordSessionsEvicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsEvicted.Add(float64(n))
}

// RecordPersistenceFailure учитывает сбой чтения или записи слота корзины.
func (m *StorefrontMetrics) RecordPersistenceFailure(operation string) {
	if m == nil {
		return
	}
	m.persistenceFailures.WithLabelValues(operation).Inc()
}

// RecordTimelineEvent увеличивает счётчик событий журнала.
func (m *StorefrontMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}
