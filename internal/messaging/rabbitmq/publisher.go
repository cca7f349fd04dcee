// Package rabbitmq публикует события заказов storefront в RabbitMQ topic exchange.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	EventsExchange    = "storefront.events"
	DeadLetterKey     = "storefront.dlq"
	defaultPubTimeout = 3 * time.Second
)

// Channel — подмножество *amqp.Channel, нужное паблишеру.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

// Publisher отправляет outbox-сообщения в exchange; в качестве routing key используется тип события.
type Publisher struct {
	ch         Channel
	conn       *amqp.Connection
	exchange   string
	routingKey string
	timeout    time.Duration
	logger     *log.Entry
}

// Dial подключается к брокеру и объявляет exchange событий.
func Dial(url string, logger *log.Entry) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	p, err := NewPublisher(ch, logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisher объявляет durable topic exchange на готовом канале.
func NewPublisher(ch Channel, logger *log.Entry) (*Publisher, error) {
	if ch == nil {
		return nil, errors.New("rabbitmq channel is nil")
	}
	if logger == nil {
		logger = log.WithField("component", "rabbitmq-publisher")
	}
	if err := ch.ExchangeDeclare(EventsExchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare %s: %w", EventsExchange, err)
	}
	return &Publisher{
		ch:       ch,
		exchange: EventsExchange,
		timeout:  defaultPubTimeout,
		logger:   logger,
	}, nil
}

// DeadLetters возвращает паблишер того же канала с фиксированным routing key DLQ.
func (p *Publisher) DeadLetters() *Publisher {
	clone := *p
	clone.routingKey = DeadLetterKey
	return &clone
}

// Publish публикует сообщение как persistent JSON.
func (p *Publisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.ch == nil {
		return errors.New("rabbitmq publisher is not initialized")
	}

	key := p.routingKey
	if key == "" {
		key = event.EventType
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err := p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     event.ID,
		CorrelationId: event.AggregateID,
		Type:          event.EventType,
		Timestamp:     time.Now().UTC(),
		Headers:       amqp.Table{"aggregate_type": event.AggregateType},
		Body:          event.Payload,
	})
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"routing_key": key,
			"outbox_id":   event.ID,
		}).Error("failed to publish to rabbitmq")
		return fmt.Errorf("publish %s: %w", key, err)
	}
	return nil
}

// Ping сообщает, открыт ли канал.
func (p *Publisher) Ping(context.Context) error {
	if p == nil || p.ch == nil || p.ch.IsClosed() {
		return amqp.ErrClosed
	}
	return nil
}

// Close закрывает канал и соединение.
func (p *Publisher) Close() error {
	if p == nil || p.ch == nil {
		return nil
	}
	var errs []error
	if !p.ch.IsClosed() {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

var _ domain.OutboxPublisher = (*Publisher)(nil)
