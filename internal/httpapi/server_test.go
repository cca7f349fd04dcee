package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/session"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

var frozenStart = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

// testServer: витрина поверх памяти с фейковыми часами.
type testServer struct {
	handler http.Handler
	store   domain.KeyValueStore
	clock   *clockwork.FakeClock
}

func newTestServer(t testing.TB) *testServer {
	t.Helper()

	logger := log.New()
	logger.SetOutput(io.Discard)

	ts := &testServer{
		store: memory.NewKeyValueStore(),
		clock: clockwork.NewFakeClockAt(frozenStart),
	}
	manager, err := session.NewManager(session.Config{}, session.Dependencies{
		Catalog:  catalog.Default(),
		Store:    ts.store,
		Timeline: memory.NewTimelineRepository(),
		Outbox:   memory.NewOutboxRepository(),
		Clock:    ts.clock,
		Logger:   logger.WithField("component", "session"),
	})
	require.NoError(t, err)

	ts.handler = NewRouter(NewHandler(manager, catalog.Default(), logger.WithField("component", "httpapi")))
	return ts
}

func (ts *testServer) do(method, path, sessionID string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, _ := json.Marshal(b)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// advanceUntil сдвигает часы и ждёт, пока состояние сессии не удовлетворит until.
// Отложенные переходы выполняются в горутинах таймеров.
func (ts *testServer) advanceUntil(d time.Duration, sessionID string, until func(sessionResponse) bool) bool {
	ts.clock.Advance(d)
	deadline := time.Now().Add(time.Second)
	for {
		var resp sessionResponse
		rec := ts.do(http.MethodGet, "/api/session", sessionID, nil)
		if json.Unmarshal(rec.Body.Bytes(), &resp) == nil && until(resp) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

func (ts *testServer) persisted(sessionID string) (string, error) {
	data, err := ts.store.Get(context.Background(), sessionID, cart.StorageKey)
	return string(data), err
}

func decodeSession(t testing.TB, rec *httptest.ResponseRecorder) sessionResponse {
	t.Helper()
	var resp sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func decodeError(t testing.TB, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}
