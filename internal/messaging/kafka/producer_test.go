package kafka

import (
	"context"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
)

func testProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	t.Helper()
	mockProducer := mocks.NewSyncProducer(t, nil)
	return newProducerWith(mockProducer, log.WithField("component", "kafka-producer-test")), mockProducer
}

func TestProducer_PublishEvent(t *testing.T) {
	producer, mockProducer := testProducer(t)
	mockProducer.ExpectSendMessageAndSucceed()

	err := producer.PublishEvent(TopicOrderEvents, "ORD-12345678", map[string]string{"order_number": "ORD-12345678"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	producer, mockProducer := testProducer(t)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.PublishEvent(TopicOrderEvents, "ORD-12345678", map[string]string{})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_MarshalError(t *testing.T) {
	producer, mockProducer := testProducer(t)

	if err := producer.PublishEvent(TopicOrderEvents, "k", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_NilSafe(t *testing.T) {
	var producer *Producer
	if err := producer.Send(TopicOrderEvents, "k", nil, nil); err == nil {
		t.Fatal("expected error for nil producer")
	}
	if err := producer.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error for nil producer")
	}
	if err := producer.Close(); err != nil {
		t.Fatalf("close of nil producer must be no-op, got %v", err)
	}
}

func TestNewProducer_EmptyBrokers(t *testing.T) {
	if _, err := NewProducer(nil, "storefront", nil); err == nil {
		t.Fatal("expected error for empty brokers")
	}
}

func TestNewSaramaConfig(t *testing.T) {
	cfg := newSaramaConfig("storefront")
	if !cfg.Producer.Idempotent {
		t.Fatal("producer must be idempotent")
	}
	if cfg.Net.MaxOpenRequests != 1 {
		t.Fatalf("idempotent producer requires MaxOpenRequests=1, got %d", cfg.Net.MaxOpenRequests)
	}
	if cfg.Producer.RequiredAcks != sarama.WaitForAll {
		t.Fatal("expected WaitForAll acks")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config must be valid: %v", err)
	}
}
