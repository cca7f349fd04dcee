// Package httpapi реализует HTTP интерфейс витрины.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

const maxBodyBytes = 1 << 20

// Sessions выдаёт сессию по идентификатору.
type Sessions interface {
	Get(ctx context.Context, id string) (*session.Session, error)
}

// Handler обслуживает /api.
type Handler struct {
	sessions Sessions
	catalog  session.Catalog
	logger   *log.Entry
}

// NewHandler создаёт обработчики API.
func NewHandler(sessions Sessions, catalog session.Catalog, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "httpapi")
	}
	return &Handler{sessions: sessions, catalog: catalog, logger: logger}
}

// Health отвечает на liveness без проверки зависимостей.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) ListProducts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toProducts(h.catalog.Products()))
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, http.StatusOK, func(s *session.Session) (session.Snapshot, error) {
		return s.Snapshot(), nil
	})
}

type addItemRequest struct {
	SKU      string `json:"sku"`
	Quantity *int   `json:"quantity"`
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.SKU == "" {
		h.writeError(w, badRequest("sku is required", "sku"))
		return
	}
	h.withSession(w, r, http.StatusCreated, func(s *session.Session) (session.Snapshot, error) {
		if req.Quantity != nil {
			return s.AddQuantity(r.Context(), req.SKU, *req.Quantity)
		}
		return s.AddToCart(r.Context(), req.SKU)
	})
}

type updateItemRequest struct {
	Delta *int `json:"delta"`
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req updateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Delta == nil {
		h.writeError(w, badRequest("delta is required", "delta"))
		return
	}
	h.withSession(w, r, http.StatusOK, func(s *session.Session) (session.Snapshot, error) {
		return s.UpdateQuantity(r.Context(), index, *req.Delta)
	})
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	index, err := indexParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.withSession(w, r, http.StatusOK, func(s *session.Session) (session.Snapshot, error) {
		return s.RemoveItem(r.Context(), index)
	})
}

type setQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	if req.Quantity == nil {
		h.writeError(w, badRequest("quantity is required", "quantity"))
		return
	}
	sku := chi.URLParam(r, "sku")
	h.withSession(w, r, http.StatusOK, func(s *session.Session) (session.Snapshot, error) {
		return s.SetQuantity(r.Context(), sku, *req.Quantity)
	})
}

func (h *Handler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if _, err := s.RemoveProduct(r.Context(), chi.URLParam(r, "sku")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, http.StatusOK, func(s *session.Session) (session.Snapshot, error) {
		return s.ClearCart(r.Context())
	})
}

func (h *Handler) OpenCart(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, http.StatusOK, func(s *session.Session) (session.Snapshot, error) {
		return s.OpenCart()
	})
}

func (h *Handler) ProceedToCheckout(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, http.StatusOK, func(s *session.Session) (session.Snapshot, error) {
		return s.ProceedToCheckout()
	})
}

func (h *Handler) BackToCart(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, http.StatusOK, func(s *session.Session) (session.Snapshot, error) {
		return s.BackToCart()
	})
}

type submitCheckoutRequest struct {
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
}

// SubmitCheckout отвечает 202: заказ создаётся после задержки обработки.
func (h *Handler) SubmitCheckout(w http.ResponseWriter, r *http.Request) {
	var req submitCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		h.writeError(w, err)
		return
	}
	h.withSession(w, r, http.StatusAccepted, func(s *session.Session) (session.Snapshot, error) {
		return s.SubmitCheckout(checkout.Form{CardNumber: req.CardNumber, Expiry: req.Expiry})
	})
}

func (h *Handler) StartNewOrder(w http.ResponseWriter, r *http.Request) {
	h.withSession(w, r, http.StatusOK, func(s *session.Session) (session.Snapshot, error) {
		return s.StartNewOrder(r.Context())
	})
}

func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	events, err := s.Timeline()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimeline(s.ID(), events))
}

func (h *Handler) withSession(w http.ResponseWriter, r *http.Request, status int, fn func(*session.Session) (session.Snapshot, error)) {
	s, err := h.session(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	snap, err := fn(s)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, status, toSession(snap))
}

func (h *Handler) session(r *http.Request) (*session.Session, error) {
	id := SessionIDFromContext(r.Context())
	if id == "" {
		return nil, badRequest("session id is missing", SessionHeader)
	}
	return h.sessions.Get(r.Context(), id)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	apiErr := classify(err)
	if apiErr.status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed")
	}
	writeJSON(w, apiErr.status, errorResponse{Error: apiErr.body})
}

func indexParam(r *http.Request) (int, error) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, badRequest("index must be an integer", "index")
	}
	return index, nil
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty", "")
		}
		return badRequest("request body is not valid JSON", "")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var _ Sessions = (*session.Manager)(nil)
