package domain

import (
	"context"
	"time"
)

// KeyValueStore — долговременный слот "ключ-значение", разделённый по namespace (сессии).
type KeyValueStore interface {
	// Get возвращает значение или ErrSlotNotFound, если ключ ещё не записан.
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	// Put полностью перезаписывает значение ключа.
	Put(ctx context.Context, namespace, key string, value []byte) error
	// Delete удаляет ключ; отсутствие ключа ошибкой не считается.
	Delete(ctx context.Context, namespace, key string) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла сессии.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(sessionID string) ([]TimelineEvent, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
