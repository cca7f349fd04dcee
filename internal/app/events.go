package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/rabbitmq"
)

// eventPublishers — паблишеры событий заказов для outbox worker.
type eventPublishers struct {
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	ping      func(ctx context.Context) error
	closeFn   func() error
}

func (p eventPublishers) enabled() bool { return p.publisher != nil }

func (p eventPublishers) close(logger *log.Entry) {
	if p.closeFn == nil {
		return
	}
	if err := p.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close events broker")
		return
	}
	logger.Info("events broker closed")
}

// sessionOutbox выбирает outbox для сессий. Без работающего паблишера события
// копятся только в postgres: там их доставит следующий запуск. В памяти они
// потерялись бы вместе с процессом, поэтому outbox отключается.
func sessionOutbox(cfg Config, repo domain.OutboxRepository, publishers eventPublishers, logger *log.Entry) domain.OutboxRepository {
	if cfg.EventsBroker == "" || cfg.EventsBroker == BrokerNone {
		return nil
	}
	if publishers.enabled() {
		return repo
	}
	if cfg.StorageDriver == StorageDriverPostgres {
		logger.Warn("events broker unavailable, order events are kept in postgres outbox until restart")
		return repo
	}
	logger.Warn("events broker unavailable, order events are not recorded")
	return nil
}

// initEventPublishers подключается к брокеру событий.
func initEventPublishers(cfg Config, logger *log.Entry) (eventPublishers, error) {
	switch cfg.EventsBroker {
	case "", BrokerNone:
		return eventPublishers{}, nil

	case BrokerKafka:
		brokers := cfg.KafkaBrokerList()
		producer, err := kafka.NewProducer(brokers, cfg.KafkaClientID, logger.WithField("component", "kafka-producer"))
		if err != nil {
			return eventPublishers{}, err
		}
		logger.WithField("brokers", brokers).Info("kafka producer initialized")
		return eventPublishers{
			publisher: kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
			dlq:       kafka.NewDLQPublisher(producer),
			ping:      producer.Ping,
			closeFn:   producer.Close,
		}, nil

	case BrokerRabbitMQ:
		publisher, err := rabbitmq.Dial(cfg.RabbitMQURL, logger.WithField("component", "rabbitmq-publisher"))
		if err != nil {
			return eventPublishers{}, err
		}
		logger.WithField("exchange", rabbitmq.EventsExchange).Info("rabbitmq publisher initialized")
		return eventPublishers{
			publisher: publisher,
			dlq:       publisher.DeadLetters(),
			ping:      publisher.Ping,
			closeFn:   publisher.Close,
		}, nil

	default:
		return eventPublishers{}, fmt.Errorf("unsupported events broker: %q", cfg.EventsBroker)
	}
}
