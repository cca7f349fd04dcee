// Package sweeper выгружает из памяти сессии, к которым давно не обращались.
package sweeper

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

const (
	defaultInterval  = time.Minute
	defaultIdleTTL   = 30 * time.Minute
	defaultBatchSize = 500
)

// Evictor выгружает неактивные сессии.
type Evictor interface {
	EvictIdle(before time.Time, limit int) (int, error)
}

// Options задаёт параметры воркера выгрузки.
type Options struct {
	Logger    *log.Entry
	Clock     clockwork.Clock
	Interval  time.Duration
	IdleTTL   time.Duration
	BatchSize int
}

// Option настраивает Sweeper.
type Option func(*Options)

// WithLogger задаёт logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) { opts.Logger = logger }
}

// WithClock подменяет часы, в том числе тикер цикла.
func WithClock(clock clockwork.Clock) Option {
	return func(opts *Options) { opts.Clock = clock }
}

// WithInterval задаёт интервал между циклами.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) { opts.Interval = interval }
}

// WithIdleTTL задаёт время простоя, после которого сессия выгружается.
func WithIdleTTL(ttl time.Duration) Option {
	return func(opts *Options) { opts.IdleTTL = ttl }
}

// WithBatchSize задаёт размер порции выгрузки.
func WithBatchSize(batchSize int) Option {
	return func(opts *Options) { opts.BatchSize = batchSize }
}

// Sweeper периодически вызывает Evictor для сессий старше IdleTTL.
type Sweeper struct {
	evictor   Evictor
	logger    *log.Entry
	clock     clockwork.Clock
	interval  time.Duration
	idleTTL   time.Duration
	batchSize int
}

// New создаёт Sweeper.
func New(evictor Evictor, options ...Option) *Sweeper {
	opts := Options{
		Interval:  defaultInterval,
		IdleTTL:   defaultIdleTTL,
		BatchSize: defaultBatchSize,
	}
	for _, option := range options {
		option(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = log.WithField("component", "session-sweeper")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = defaultIdleTTL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	return &Sweeper{
		evictor:   evictor,
		logger:    opts.Logger,
		clock:     opts.Clock,
		interval:  opts.Interval,
		idleTTL:   opts.IdleTTL,
		batchSize: opts.BatchSize,
	}
}

// Run запускает периодическую выгрузку до отмены ctx.
func (s *Sweeper) Run(ctx context.Context) {
	if s.evictor == nil {
		s.logger.Warn("session sweeper is disabled: evictor is nil")
		return
	}

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	evicted, err := s.Sweep(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.WithError(err).Warn("session sweep failed")
		return
	}
	if evicted > 0 {
		s.logger.WithField("evicted", evicted).Info("idle sessions evicted")
	}
}

// Sweep выгружает все сессии, простаивающие дольше IdleTTL, порциями batchSize.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	before := s.clock.Now().Add(-s.idleTTL)

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		evicted, err := s.evictor.EvictIdle(before, s.batchSize)
		if err != nil {
			return total, err
		}
		total += evicted

		if evicted < s.batchSize {
			return total, nil
		}
	}
}
