// Package outbox публикует события заказов из transactional outbox во внешний брокер.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	defaultPollInterval   = 1 * time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
	maxRetryDelay         = 30 * time.Second
)

// workerMetrics — метрики публикации outbox.
type workerMetrics struct {
	attempts        *prometheus.CounterVec
	pending         prometheus.Gauge
	oldestPendingAt prometheus.Gauge
}

func newWorkerMetrics(registerer prometheus.Registerer) *workerMetrics {
	factory := promauto.With(registerer)
	return &workerMetrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result.",
		}, []string{"result"}),
		pending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox.",
		}),
		oldestPendingAt: factory.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record.",
		}),
	}
}

// DeadLetter — конверт сообщения, которое не удалось опубликовать.
type DeadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	Attempts      int             `json:"attempts"`
	FailedAt      time.Time       `json:"failed_at"`
}

// WorkerOptions задаёт параметры outbox worker.
type WorkerOptions struct {
	Logger         *log.Entry
	DLQPublisher   domain.OutboxPublisher
	Registerer     prometheus.Registerer
	Clock          func() time.Time
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

// Option настраивает Worker.
type Option func(*WorkerOptions)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *WorkerOptions) { opts.Logger = logger }
}

// WithDLQPublisher задаёт publisher для отправки в DLQ после исчерпания попыток.
func WithDLQPublisher(publisher domain.OutboxPublisher) Option {
	return func(opts *WorkerOptions) { opts.DLQPublisher = publisher }
}

// WithRegisterer задаёт registry для метрик воркера (по умолчанию отдельный registry).
func WithRegisterer(registerer prometheus.Registerer) Option {
	return func(opts *WorkerOptions) { opts.Registerer = registerer }
}

// WithClock подменяет источник времени.
func WithClock(clock func() time.Time) Option {
	return func(opts *WorkerOptions) { opts.Clock = clock }
}

// WithPollInterval задаёт частоту опроса outbox.
func WithPollInterval(interval time.Duration) Option {
	return func(opts *WorkerOptions) { opts.PollInterval = interval }
}

// WithBatchSize задаёт размер батча из outbox.
func WithBatchSize(batchSize int) Option {
	return func(opts *WorkerOptions) { opts.BatchSize = batchSize }
}

// WithMaxAttempts задаёт число попыток публикации перед failed/DLQ.
func WithMaxAttempts(maxAttempts int) Option {
	return func(opts *WorkerOptions) { opts.MaxAttempts = maxAttempts }
}

// WithRetryBaseDelay задаёт базовую задержку exponential backoff.
func WithRetryBaseDelay(delay time.Duration) Option {
	return func(opts *WorkerOptions) { opts.RetryBaseDelay = delay }
}

// Worker публикует pending-сообщения из outbox в брокер.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	opts      WorkerOptions
	logger    *log.Entry
	metrics   *workerMetrics
}

// NewWorker создаёт outbox worker.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, options ...Option) *Worker {
	opts := WorkerOptions{
		PollInterval:   defaultPollInterval,
		BatchSize:      defaultBatchSize,
		MaxAttempts:    defaultMaxAttempts,
		RetryBaseDelay: defaultRetryBaseDelay,
	}
	for _, option := range options {
		option(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "outbox-worker")
	}
	if opts.Registerer == nil {
		opts.Registerer = prometheus.NewRegistry()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBaseDelay < 0 {
		opts.RetryBaseDelay = 0
	}

	return &Worker{
		repo:      repo,
		publisher: publisher,
		opts:      opts,
		logger:    opts.Logger,
		metrics:   newWorkerMetrics(opts.Registerer),
	}
}

// Run запускает периодический polling outbox до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	w.ProcessOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.ProcessOnce(ctx)
		}
	}
}

// ProcessOnce выполняет один polling-цикл и возвращает число обработанных сообщений.
func (w *Worker) ProcessOnce(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	defer w.refreshBacklogMetrics()

	events, err := w.repo.PullPending(w.opts.BatchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return 0
	}

	processed := 0
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		w.handle(ctx, event)
		processed++
	}
	return processed
}

// Drain обрабатывает батчи, пока backlog не опустеет или не истечёт ctx.
// Вызывается при остановке сервиса, чтобы не оставлять созданные заказы неопубликованными.
func (w *Worker) Drain(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		return
	}
	for ctx.Err() == nil {
		if w.ProcessOnce(ctx) < w.opts.BatchSize {
			return
		}
	}
}

func (w *Worker) handle(ctx context.Context, event domain.OutboxMessage) {
	fields := log.Fields{
		"outbox_id":    event.ID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID,
	}

	if err := w.publishWithRetry(ctx, event); err != nil {
		if ctx.Err() != nil {
			// Сообщение остаётся pending и будет опубликовано после перезапуска.
			return
		}
		w.logger.WithError(err).WithFields(fields).Error("outbox publish failed after retries")
		w.metrics.attempts.WithLabelValues("failed").Inc()

		if dlqErr := w.publishToDLQ(event, err); dlqErr != nil {
			w.logger.WithError(dlqErr).WithFields(fields).Warn("failed to publish to DLQ")
			w.metrics.attempts.WithLabelValues("dlq_failed").Inc()
		}
		if markErr := w.repo.MarkFailed(event.ID); markErr != nil {
			w.logger.WithError(markErr).WithFields(fields).Warn("failed to mark outbox as failed")
		}
		return
	}

	if err := w.repo.MarkSent(event.ID); err != nil {
		w.logger.WithError(err).WithFields(fields).Warn("failed to mark outbox as sent")
		return
	}
	w.logger.WithFields(fields).Debug("outbox message published")
}

func (w *Worker) publishWithRetry(ctx context.Context, event domain.OutboxMessage) error {
	var lastErr error

	for attempt := 1; attempt <= w.opts.MaxAttempts; attempt++ {
		err := w.publisher.Publish(event)
		if err == nil {
			w.metrics.attempts.WithLabelValues("sent").Inc()
			return nil
		}
		lastErr = err
		w.metrics.attempts.WithLabelValues("retry_error").Inc()

		if attempt == w.opts.MaxAttempts {
			break
		}

		delay := retryBackoff(w.opts.RetryBaseDelay, attempt)
		if delay <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%w after %d attempts: %v", domain.ErrOutboxPublish, w.opts.MaxAttempts, lastErr)
}

func (w *Worker) refreshBacklogMetrics() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	w.metrics.pending.Set(float64(stats.PendingCount))
	if stats.PendingCount == 0 || stats.OldestPendingAt.IsZero() {
		w.metrics.oldestPendingAt.Set(0)
		return
	}
	age := w.opts.Clock().Sub(stats.OldestPendingAt).Seconds()
	w.metrics.oldestPendingAt.Set(max(age, 0))
}

// retryBackoff возвращает base * 2^(attempt-1), но не больше maxRetryDelay.
func retryBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay >= maxRetryDelay/2 {
			return maxRetryDelay
		}
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

func (w *Worker) publishToDLQ(event domain.OutboxMessage, publishErr error) error {
	if w.opts.DLQPublisher == nil {
		return nil
	}

	payload := json.RawMessage(event.Payload)
	if !json.Valid(payload) {
		quoted, _ := json.Marshal(string(event.Payload))
		payload = quoted
	}

	body, err := json.Marshal(DeadLetter{
		OutboxID:      event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		PublishError:  publishErr.Error(),
		Attempts:      w.opts.MaxAttempts,
		FailedAt:      w.opts.Clock().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal dlq payload: %w", err)
	}

	if err := w.opts.DLQPublisher.Publish(domain.OutboxMessage{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       body,
	}); err != nil {
		return fmt.Errorf("publish to dlq: %w", err)
	}
	return nil
}
