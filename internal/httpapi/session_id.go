package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// SessionHeader — заголовок с идентификатором сессии.
	SessionHeader = "X-Session-ID"
	// SessionCookie — cookie с идентификатором сессии для браузера.
	SessionCookie = "sf_session"

	maxSessionIDLength = 128
	sessionCookieTTL   = 30 * 24 * time.Hour
)

type sessionIDKey struct{}

// WithSessionID определяет сессию по заголовку или cookie; новой сессии выдаётся UUID.
// Идентификатор возвращается клиенту в заголовке и cookie.
func WithSessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := sessionIDFromRequest(r)
		if id == "" {
			id = uuid.NewString()
		}

		w.Header().Set(SessionHeader, id)
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   int(sessionCookieTTL.Seconds()),
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionIDKey{}, id)))
	})
}

func sessionIDFromRequest(r *http.Request) string {
	if id := r.Header.Get(SessionHeader); validSessionID(id) {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil && validSessionID(c.Value) {
		return c.Value
	}
	return ""
}

func validSessionID(id string) bool {
	if id == "" || len(id) > maxSessionIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// SessionIDFromContext возвращает идентификатор сессии запроса.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}
