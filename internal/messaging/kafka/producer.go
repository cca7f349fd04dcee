package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

var errProducerNotInitialized = errors.New("kafka producer is not initialized")

// Producer публикует события storefront в Kafka.
type Producer struct {
	client   sarama.Client
	producer sarama.SyncProducer
	logger   *log.Entry
	now      func() time.Time
}

// newSaramaConfig возвращает конфигурацию идемпотентного sync producer.
func newSaramaConfig(clientID string) *sarama.Config {
	config := sarama.NewConfig()
	if clientID != "" {
		config.ClientID = clientID
	}
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	return config
}

// NewProducer подключается к брокерам и создаёт sync producer.
func NewProducer(brokers []string, clientID string, logger *log.Entry) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers list is empty")
	}
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}

	client, err := sarama.NewClient(brokers, newSaramaConfig(clientID))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &Producer{
		client:   client,
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// newProducerWith собирает Producer вокруг готового SyncProducer (mocks в тестах).
func newProducerWith(producer sarama.SyncProducer, logger *log.Entry) *Producer {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{producer: producer, logger: logger, now: time.Now}
}

// Send отправляет готовое тело сообщения с заголовками.
func (p *Producer) Send(topic, key string, value []byte, headers map[string]string) error {
	if p == nil || p.producer == nil {
		return errProducerNotInitialized
	}

	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Timestamp: p.now(),
	}
	for name, v := range headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(name), Value: []byte(v)})
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic": topic,
			"key":   key,
		}).Error("failed to send message to kafka")
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     topic,
		"key":       key,
		"partition": partition,
		"offset":    offset,
	}).Debug("message sent to kafka")
	return nil
}

// PublishEvent сериализует событие в JSON и отправляет его в topic.
func (p *Producer) PublishEvent(topic, key string, event any) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return p.Send(topic, key, eventData, nil)
}

// Ping обновляет метаданные кластера; используется в health check.
func (p *Producer) Ping(_ context.Context) error {
	if p == nil || p.producer == nil {
		return errProducerNotInitialized
	}
	if p.client == nil {
		return nil
	}
	if len(p.client.Brokers()) == 0 {
		return errors.New("kafka: no brokers available")
	}
	return p.client.RefreshMetadata()
}

// Close закрывает producer
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	if p.client != nil && !p.client.Closed() {
		if err := p.client.Close(); err != nil {
			return fmt.Errorf("failed to close kafka client: %w", err)
		}
	}
	return nil
}
