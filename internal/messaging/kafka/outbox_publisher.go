package kafka

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Envelope — тело сообщения, отправляемого из outbox.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic}
}

// NewDLQPublisher создаёт паблишер в dead letter topic.
func NewDLQPublisher(producer *Producer) *OutboxTopicPublisher {
	return NewOutboxPublisher(producer, TopicDeadLetterQueue)
}

// Publish отправляет сообщение с ключом партиционирования по номеру заказа.
func (p *OutboxTopicPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errors.New("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	payload := json.RawMessage(event.Payload)
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	body, err := json.Marshal(Envelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		PublishedAt:   p.producer.now().UTC(),
	})
	if err != nil {
		return err
	}

	return p.producer.Send(p.topic, key, body, map[string]string{
		HeaderEventType:     event.EventType,
		HeaderAggregateType: event.AggregateType,
		HeaderOutboxID:      event.ID,
		HeaderOriginalTopic: p.topic,
	})
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
