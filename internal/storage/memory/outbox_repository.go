package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
	seq        uint64
}

// OutboxRepository — in-memory хранилище transactional outbox.
type OutboxRepository struct {
	mu      sync.RWMutex
	records map[string]*outboxRecord
	seq     uint64
}

// NewOutboxRepository создаёт in-memory реализацию outbox.
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{records: make(map[string]*outboxRecord)}
}

// Enqueue сохраняет событие со статусом `pending` и возвращает его с идентификатором.
func (r *OutboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Payload = append([]byte(nil), msg.Payload...)

	now := time.Now().UTC()
	r.seq++
	r.records[msg.ID] = &outboxRecord{
		msg:       msg,
		status:    outboxStatusPending,
		createdAt: now,
		updatedAt: now,
		seq:       r.seq,
	}
	return msg, nil
}

// PullPending возвращает до limit сообщений `pending` в порядке постановки.
func (r *OutboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	pending := r.pendingLocked()
	if len(pending) > limit {
		pending = pending[:limit]
	}

	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		result = append(result, rec.msg)
	}
	return result, nil
}

// Stats возвращает размер backlog и время самого старого pending-сообщения.
func (r *OutboxRepository) Stats() (domain.OutboxStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := r.pendingLocked()
	stats := domain.OutboxStats{PendingCount: len(pending)}
	if len(pending) > 0 {
		stats.OldestPendingAt = pending[0].createdAt
	}
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *OutboxRepository) MarkSent(id string) error {
	return r.mark(id, outboxStatusSent)
}

// MarkFailed фиксирует окончательную ошибку публикации.
func (r *OutboxRepository) MarkFailed(id string) error {
	return r.mark(id, outboxStatusFailed)
}

// AllPending возвращает копию всех сообщений со статусом `pending` (используется в тестах).
func (r *OutboxRepository) AllPending() []domain.OutboxMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pending := r.pendingLocked()
	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		result = append(result, rec.msg)
	}
	return result
}

func (r *OutboxRepository) mark(id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.records[id]
	if !ok {
		return domain.ErrOutboxPublish
	}
	record.status = status
	record.attemptCnt++
	record.updatedAt = time.Now().UTC()
	return nil
}

func (r *OutboxRepository) pendingLocked() []*outboxRecord {
	pending := make([]*outboxRecord, 0, len(r.records))
	for _, rec := range r.records {
		if rec.status == outboxStatusPending {
			pending = append(pending, rec)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })
	return pending
}

var _ domain.OutboxRepository = (*OutboxRepository)(nil)
