package memory

import (
	"sort"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// timelineRepositoryInMemory хранит события сессий в памяти (для разработки/тестов).
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{events: make(map[string][]domain.TimelineEvent)}
}

// Append добавляет событие в журнал сессии.
func (r *timelineRepositoryInMemory) Append(event domain.TimelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := append(r.events[event.SessionID], event)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Occurred.Before(events[j].Occurred)
	})
	r.events[event.SessionID] = events

	return nil
}

// List возвращает события сессии в хронологическом порядке.
func (r *timelineRepositoryInMemory) List(sessionID string) ([]domain.TimelineEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := r.events[sessionID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
