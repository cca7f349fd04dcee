package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Manager хранит загруженные сессии. Сессия создаётся при первом обращении
// и восстанавливает корзину из хранилища.
type Manager struct {
	mu       sync.Mutex
	cfg      Config
	deps     Dependencies
	sessions map[string]*Session
}

// NewManager проверяет зависимости и возвращает пустой реестр сессий.
func NewManager(cfg Config, deps Dependencies) (*Manager, error) {
	deps, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Manager{
		cfg:      cfg.withDefaults(),
		deps:     deps,
		sessions: make(map[string]*Session),
	}, nil
}

// Get возвращает сессию id, загружая её при необходимости.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, errors.New("session id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[id]; ok {
		return s, nil
	}

	s, err := Open(ctx, id, m.cfg, m.deps)
	if err != nil {
		return nil, err
	}
	m.sessions[id] = s
	m.deps.Metrics.SetActiveSessions(len(m.sessions))
	return s, nil
}

// Lookup возвращает уже загруженную сессию или ErrSessionNotFound.
func (m *Manager) Lookup(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Len возвращает число загруженных сессий.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// EvictIdle выгружает до limit сессий, неактивных с момента before.
// Сессии с идущим оформлением заказа не выгружаются. Корзины остаются в хранилище.
func (m *Manager) EvictIdle(before time.Time, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		if limit > 0 && evicted >= limit {
			break
		}
		if !s.LastSeen().Before(before) || s.Processing() {
			continue
		}
		delete(m.sessions, id)
		evicted++
	}

	m.deps.Metrics.RecordSessionsEvicted(evicted)
	m.deps.Metrics.SetActiveSessions(len(m.sessions))
	return evicted, nil
}
