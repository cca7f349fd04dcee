package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

// NewRouter собирает маршруты API.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.ListProducts)

		r.Group(func(r chi.Router) {
			r.Use(WithSessionID)

			r.Get("/session", h.GetSession)
			r.Get("/session/timeline", h.Timeline)

			r.Route("/cart", func(r chi.Router) {
				r.Delete("/", h.ClearCart)
				r.Post("/items", h.AddItem)
				r.Patch("/items/{index}", h.UpdateItem)
				r.Delete("/items/{index}", h.RemoveItem)
				r.Put("/skus/{sku}", h.SetQuantity)
				r.Delete("/skus/{sku}", h.RemoveProduct)
			})

			r.Post("/view/cart", h.OpenCart)
			r.Post("/view/checkout", h.ProceedToCheckout)
			r.Post("/view/back", h.BackToCart)

			r.Post("/checkout", h.SubmitCheckout)
			r.Post("/orders/new", h.StartNewOrder)
		})
	})

	return r
}

// requestLogger пишет access-лог через logrus.
func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.WithFields(log.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  middleware.GetReqID(r.Context()),
			}).Debug("http request")
		})
	}
}
