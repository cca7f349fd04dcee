// Package health отдаёт liveness/readiness пробы storefront.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

const defaultCheckTimeout = 2 * time.Second

// Status представляет статус компонента
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check — результат проверки одного компонента.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response представляет ответ health check
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Sessions      int              `json:"active_sessions"`
}

// Checker проверяет здоровье компонента.
type Checker interface {
	Check(ctx context.Context) Check
}

// SessionCounter сообщает число сессий в памяти.
type SessionCounter interface {
	Len() int
}

// Handler агрегирует проверки компонентов.
type Handler struct {
	mu        sync.RWMutex
	checkers  map[string]Checker
	sessions  SessionCounter
	version   string
	timeout   time.Duration
	startTime time.Time
	now       func() time.Time
}

// NewHandler создаёт health handler.
func NewHandler(version string) *Handler {
	return &Handler{
		checkers:  make(map[string]Checker),
		version:   version,
		timeout:   defaultCheckTimeout,
		startTime: time.Now(),
		now:       time.Now,
	}
}

// RegisterChecker регистрирует проверку компонента.
func (h *Handler) RegisterChecker(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

// SetSessionCounter подключает счётчик активных сессий к ответу /healthz.
func (h *Handler) SetSessionCounter(counter SessionCounter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions = counter
}

// SetCheckTimeout ограничивает время одной проверки.
func (h *Handler) SetCheckTimeout(timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timeout = timeout
}

// Evaluate выполняет все проверки и возвращает общий статус.
// Любая unhealthy-проверка делает сервис unhealthy, degraded понижает healthy до degraded.
func (h *Handler) Evaluate(ctx context.Context) (Status, map[string]Check) {
	h.mu.RLock()
	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	checkers := make(map[string]Checker, len(h.checkers))
	for k, v := range h.checkers {
		checkers[k] = v
	}
	timeout := h.timeout
	h.mu.RUnlock()
	sort.Strings(names)

	checks := make(map[string]Check, len(names))
	overall := StatusHealthy
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, timeout)
		check := checkers[name].Check(checkCtx)
		cancel()

		if check.Name == "" {
			check.Name = name
		}
		checks[name] = check

		switch check.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	return overall, checks
}

// Ready сообщает, может ли сервис обслуживать запросы.
func (h *Handler) Ready(ctx context.Context) bool {
	status, _ := h.Evaluate(ctx)
	return status != StatusUnhealthy
}

// ServeHTTP отдаёт подробный JSON со статусами проверок.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status, checks := h.Evaluate(r.Context())

	h.mu.RLock()
	sessions := h.sessions
	h.mu.RUnlock()

	response := Response{
		Status:        status,
		Timestamp:     h.now().UTC(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(h.now().Sub(h.startTime).Seconds()),
	}
	if sessions != nil {
		response.Sessions = sessions.Len()
	}

	statusCode := http.StatusOK
	if status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// LivenessHandler простой liveness probe (всегда возвращает 200)
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ReadinessHandler возвращает 503, пока хотя бы одна критичная проверка не проходит.
func (h *Handler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	if !h.Ready(r.Context()) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// FuncChecker выполняет проверку через функцию.
// Ошибка некритичного компонента (брокер) даёт degraded, ошибка хранилища даёт unhealthy.
type FuncChecker struct {
	name     string
	critical bool
	checkFn  func(ctx context.Context) error
}

// NewCriticalChecker создаёт проверку компонента, без которого сервис не готов.
func NewCriticalChecker(name string, checkFn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, critical: true, checkFn: checkFn}
}

// NewOptionalChecker создаёт проверку компонента, отказ которого только понижает статус.
func NewOptionalChecker(name string, checkFn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, checkFn: checkFn}
}

// Check выполняет проверку
func (c *FuncChecker) Check(ctx context.Context) Check {
	start := time.Now()
	err := c.checkFn(ctx)
	duration := time.Since(start)

	if err == nil {
		return Check{Name: c.name, Status: StatusHealthy, DurationMs: duration.Milliseconds()}
	}

	status := StatusDegraded
	if c.critical {
		status = StatusUnhealthy
	}
	return Check{
		Name:       c.name,
		Status:     status,
		Message:    err.Error(),
		DurationMs: duration.Milliseconds(),
	}
}
