// Package session связывает каталог, корзину, экраны и оформление заказа
// в состояние одной покупательской сессии.
package session

import (
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
)

const (
	// DefaultProcessingDelay имитирует обработку платежа.
	DefaultProcessingDelay = 1500 * time.Millisecond
	// DefaultErrorDisplayWindow — сколько показывается ошибка проверки или уведомление.
	DefaultErrorDisplayWindow = 3 * time.Second

	persistTimeout = 5 * time.Second
)

// Catalog — источник товаров для сессии.
type Catalog interface {
	Lookup(id string) (domain.Product, error)
	Products() []domain.Product
}

// Config задаёт тайминги сессии.
type Config struct {
	ProcessingDelay    time.Duration
	ErrorDisplayWindow time.Duration
}

// Dependencies — общие для всех сессий зависимости.
// Outbox, Timeline и Metrics необязательны. Clock задаёт время и таймеры
// отложенных переходов; по умолчанию используются настоящие часы.
type Dependencies struct {
	Catalog      Catalog
	Store        domain.KeyValueStore
	Outbox       domain.OutboxRepository
	Timeline     domain.TimelineRepository
	Clock        clockwork.Clock
	OrderNumbers checkout.OrderNumberFunc
	Metrics      *metrics.StorefrontMetrics
	Logger       *log.Entry
}

func (c Config) withDefaults() Config {
	if c.ProcessingDelay <= 0 {
		c.ProcessingDelay = DefaultProcessingDelay
	}
	if c.ErrorDisplayWindow <= 0 {
		c.ErrorDisplayWindow = DefaultErrorDisplayWindow
	}
	return c
}

func (d Dependencies) withDefaults() (Dependencies, error) {
	if d.Catalog == nil {
		return Dependencies{}, errors.New("session: catalog is required")
	}
	if d.Store == nil {
		return Dependencies{}, errors.New("session: key-value store is required")
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.OrderNumbers == nil {
		d.OrderNumbers = checkout.GenerateOrderNumber
	}
	if d.Logger == nil {
		d.Logger = log.New().WithField("component", "session")
	}
	return d, nil
}
