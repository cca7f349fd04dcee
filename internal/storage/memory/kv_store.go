package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// kvStoreInMemory — key-value слоты сессий в памяти процесса.
type kvStoreInMemory struct {
	mu    sync.RWMutex
	slots map[string]map[string][]byte
}

// NewKeyValueStore возвращает in-memory хранилище для локальной разработки и тестов.
func NewKeyValueStore() domain.KeyValueStore {
	return &kvStoreInMemory{slots: make(map[string]map[string][]byte)}
}

// Get возвращает копию значения или ErrSlotNotFound.
func (s *kvStoreInMemory) Get(_ context.Context, namespace, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.slots[namespace][key]
	if !ok {
		return nil, domain.ErrSlotNotFound
	}
	return append([]byte(nil), value...), nil
}

// Put сохраняет копию значения, перезаписывая предыдущее.
func (s *kvStoreInMemory) Put(_ context.Context, namespace, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.slots[namespace]
	if !ok {
		ns = make(map[string][]byte)
		s.slots[namespace] = ns
	}
	ns[key] = append([]byte(nil), value...)
	return nil
}

// Delete удаляет ключ; пустой namespace тоже удаляется.
func (s *kvStoreInMemory) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.slots[namespace]
	if !ok {
		return nil
	}
	delete(ns, key)
	if len(ns) == 0 {
		delete(s.slots, namespace)
	}
	return nil
}

var _ domain.KeyValueStore = (*kvStoreInMemory)(nil)
