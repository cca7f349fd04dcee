package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/cart"
	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
	"github.com/vladislavdragonenkov/storefront/internal/view"
)

// Snapshot — согласованный срез состояния сессии.
type Snapshot struct {
	SessionID string
	View      view.View
	Cart      domain.Cart
	ItemCount int
	Summary   pricing.Summary
	Checkout  CheckoutSnapshot
	Order     *domain.Order
	// Notice — временное уведомление (например, попытка открыть пустую корзину).
	Notice error
	// OpenedAt — момент открытия сессии, UpdatedAt — последнего изменения корзины (нулевое, если его не было).
	OpenedAt  time.Time
	UpdatedAt time.Time
}

// CheckoutSnapshot описывает форму оплаты.
type CheckoutSnapshot struct {
	State checkout.State
	Error error
	Form  checkout.Form
}

// Session — состояние одного покупателя. Все события обрабатываются по одному.
type Session struct {
	mu   sync.Mutex
	id   string
	cfg  Config
	deps Dependencies
	log  *log.Entry

	cart    domain.Cart
	view    view.Controller
	machine *checkout.Machine

	notice    error
	noticeGen uint64

	submittedAt   time.Time
	submittedCart domain.Cart
	submittedSum  decimal.Decimal

	openedAt  time.Time
	updatedAt time.Time
	lastSeen  time.Time
}

// Open создаёт сессию и восстанавливает корзину из слота хранилища.
// Отсутствующая или повреждённая корзина заменяется пустой, ошибка хранилища возвращается.
func Open(ctx context.Context, id string, cfg Config, deps Dependencies) (*Session, error) {
	if id == "" {
		return nil, errors.New("session id is required")
	}
	deps, err := deps.withDefaults()
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:      id,
		cfg:     cfg.withDefaults(),
		deps:    deps,
		log:     deps.Logger.WithField("session_id", id),
		machine: checkout.NewMachine(),
	}
	s.openedAt = deps.Clock.Now()
	s.lastSeen = s.openedAt

	loaded, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.cart = loaded
	return s, nil
}

func (s *Session) load(ctx context.Context) (domain.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	data, err := s.deps.Store.Get(ctx, s.id, cart.StorageKey)
	if errors.Is(err, domain.ErrSlotNotFound) {
		return cart.Clear(), nil
	}
	if err != nil {
		s.deps.Metrics.RecordPersistenceFailure("read")
		return domain.Cart{}, fmt.Errorf("load cart: %w", err)
	}

	restored, err := cart.Unmarshal(data)
	if err != nil {
		s.deps.Metrics.RecordPersistenceFailure("read")
		s.log.WithError(err).Warn("stored cart is unreadable, starting with empty cart")
		return cart.Clear(), nil
	}
	return restored, nil
}

// ID возвращает идентификатор сессии.
func (s *Session) ID() string { return s.id }

// LastSeen возвращает время последнего обращения к сессии.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Processing сообщает, идёт ли оформление заказа.
func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.State() == checkout.StateProcessing
}

// Snapshot возвращает текущее состояние.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.snapshot()
}

// Products возвращает каталог товаров.
func (s *Session) Products() []domain.Product {
	return s.deps.Catalog.Products()
}

// AddToCart добавляет товар или увеличивает его количество на 1.
func (s *Session) AddToCart(ctx context.Context, productID string) (Snapshot, error) {
	return s.mutate(ctx, "add", func(c domain.Cart) (domain.Cart, timelineEntry, error) {
		next, err := cart.AddFromCatalog(c, s.deps.Catalog, productID)
		return next, timelineEntry{domain.TimelineItemAdded, productID}, err
	})
}

// AddQuantity добавляет quantity единиц товара (1..MaxLineQuantity за вызов).
func (s *Session) AddQuantity(ctx context.Context, productID string, quantity int) (Snapshot, error) {
	return s.mutate(ctx, "add", func(c domain.Cart) (domain.Cart, timelineEntry, error) {
		p, err := s.deps.Catalog.Lookup(productID)
		if err != nil {
			return c, timelineEntry{}, err
		}
		next, err := cart.AddQuantity(c, p, quantity)
		return next, timelineEntry{domain.TimelineItemAdded, productID + "=" + strconv.Itoa(quantity)}, err
	})
}

// UpdateQuantity изменяет количество позиции index на delta; неположительный итог удаляет позицию.
func (s *Session) UpdateQuantity(ctx context.Context, index, delta int) (Snapshot, error) {
	return s.mutate(ctx, "update_quantity", func(c domain.Cart) (domain.Cart, timelineEntry, error) {
		next, removed, err := cart.UpdateQuantity(c, index, delta)
		if err != nil {
			return c, timelineEntry{}, err
		}
		sku := c.Items[index].ProductID
		if removed {
			return next, timelineEntry{domain.TimelineItemRemoved, sku}, nil
		}
		return next, timelineEntry{domain.TimelineQuantityChanged, sku + "=" + strconv.Itoa(next.Items[index].Quantity)}, nil
	})
}

// RemoveItem удаляет позицию index.
func (s *Session) RemoveItem(ctx context.Context, index int) (Snapshot, error) {
	return s.mutate(ctx, "remove", func(c domain.Cart) (domain.Cart, timelineEntry, error) {
		next, err := cart.Remove(c, index)
		if err != nil {
			return c, timelineEntry{}, err
		}
		return next, timelineEntry{domain.TimelineItemRemoved, c.Items[index].ProductID}, nil
	})
}

// SetQuantity заменяет количество позиции с SKU productID.
func (s *Session) SetQuantity(ctx context.Context, productID string, quantity int) (Snapshot, error) {
	return s.mutate(ctx, "set_quantity", func(c domain.Cart) (domain.Cart, timelineEntry, error) {
		next, err := cart.SetQuantity(c, productID, quantity)
		return next, timelineEntry{domain.TimelineQuantityChanged, productID + "=" + strconv.Itoa(quantity)}, err
	})
}

// RemoveProduct удаляет позицию по SKU.
func (s *Session) RemoveProduct(ctx context.Context, productID string) (Snapshot, error) {
	return s.mutate(ctx, "remove", func(c domain.Cart) (domain.Cart, timelineEntry, error) {
		next, err := cart.RemoveProduct(c, productID)
		return next, timelineEntry{domain.TimelineItemRemoved, productID}, err
	})
}

// ClearCart очищает корзину.
func (s *Session) ClearCart(ctx context.Context) (Snapshot, error) {
	return s.mutate(ctx, "clear", func(domain.Cart) (domain.Cart, timelineEntry, error) {
		return cart.Clear(), timelineEntry{domain.TimelineCartCleared, "manual"}, nil
	})
}

type timelineEntry struct {
	eventType string
	reason    string
}

// mutate применяет операцию к корзине, сохраняет результат и только после
// успешной записи заменяет состояние в памяти.
func (s *Session) mutate(ctx context.Context, operation string, op func(domain.Cart) (domain.Cart, timelineEntry, error)) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.machine.State() == checkout.StateProcessing {
		return s.snapshot(), domain.ErrCheckoutInFlight
	}

	next, entry, err := op(s.cart)
	if err != nil {
		return s.snapshot(), err
	}
	if err := s.persist(ctx, next); err != nil {
		return s.snapshot(), err
	}

	wasEmpty := s.cart.IsEmpty()
	s.cart = next
	s.updatedAt = s.lastSeen
	s.deps.Metrics.RecordCartMutation(operation)
	s.appendTimeline(entry.eventType, entry.reason)

	if !wasEmpty && next.IsEmpty() && s.view.CartEmptied() {
		s.log.Debug("cart emptied, back to catalog")
	}
	return s.snapshot(), nil
}

func (s *Session) persist(ctx context.Context, c domain.Cart) error {
	data, err := cart.Marshal(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	if err := s.deps.Store.Put(ctx, s.id, cart.StorageKey, data); err != nil {
		s.deps.Metrics.RecordPersistenceFailure("write")
		s.log.WithError(err).Error("persist cart failed")
		return fmt.Errorf("persist cart: %w", err)
	}
	return nil
}

// OpenCart переходит на экран корзины. Для пустой корзины показывает уведомление.
func (s *Session) OpenCart() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	err := s.view.OpenCart(s.cart.IsEmpty())
	if errors.Is(err, domain.ErrCartEmpty) {
		s.showNotice(err)
	}
	return s.snapshot(), err
}

// ProceedToCheckout переходит из корзины к форме оплаты.
func (s *Session) ProceedToCheckout() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	return s.snapshot(), s.view.ProceedToCheckout(s.cart.IsEmpty())
}

// BackToCart возвращает с формы оплаты в корзину.
func (s *Session) BackToCart() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.machine.State() == checkout.StateProcessing {
		return s.snapshot(), domain.ErrCheckoutInFlight
	}
	return s.snapshot(), s.view.BackToCart()
}

// SubmitCheckout проверяет форму оплаты. При успехе заказ создаётся через ProcessingDelay.
// При отказе ошибка показывается ErrorDisplayWindow, значения формы сохраняются.
func (s *Session) SubmitCheckout(form checkout.Form) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.machine.State() == checkout.StateProcessing {
		s.deps.Metrics.RecordCheckoutSubmission(metrics.CheckoutInFlight)
		return s.snapshot(), domain.ErrCheckoutInFlight
	}
	if s.view.Current() != view.Checkout {
		return s.snapshot(), fmt.Errorf("%w: submit from %s", domain.ErrInvalidTransition, s.view.Current())
	}
	if s.cart.IsEmpty() {
		return s.snapshot(), domain.ErrCartEmpty
	}

	now := s.deps.Clock.Now()
	generation, err := s.machine.Submit(form, now)
	if err != nil {
		if domain.IsValidationError(err) {
			s.deps.Metrics.RecordCheckoutSubmission(metrics.CheckoutRejected)
			s.appendTimeline(domain.TimelineCheckoutDenied, err.Error())
			s.deps.Clock.AfterFunc(s.cfg.ErrorDisplayWindow, func() {
				s.mu.Lock()
				defer s.mu.Unlock()
				s.machine.ClearRejection(generation)
			})
		}
		return s.snapshot(), err
	}

	s.deps.Metrics.RecordCheckoutSubmission(metrics.CheckoutAccepted)
	s.submittedAt = now
	s.submittedCart = s.cart.Clone()
	s.submittedSum = pricing.Round(pricing.ComputeSummary(s.cart).Total)
	s.appendTimeline(domain.TimelineCheckoutStarted, checkout.MaskCardNumber(form.CardNumber))
	s.log.WithField("total", s.submittedSum.StringFixed(2)).Info("checkout accepted, processing")

	s.deps.Clock.AfterFunc(s.cfg.ProcessingDelay, s.completeCheckout)
	return s.snapshot(), nil
}

// completeCheckout завершает обработку: создаёт заказ, очищает корзину и показывает подтверждение.
// Обработка не отменяется, поэтому ошибки записи только логируются.
func (s *Session) completeCheckout() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.deps.Clock.Now()
	order := domain.Order{
		OrderNumber: s.deps.OrderNumbers(),
		Total:       s.submittedSum,
		ItemCount:   s.submittedCart.ItemCount(),
		CreatedAt:   now,
	}
	if err := s.machine.Complete(order); err != nil {
		s.log.WithError(err).Error("complete checkout in unexpected state")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	cleared := cart.Clear()
	if err := s.persist(ctx, cleared); err != nil {
		s.log.WithError(err).WithField("order_number", order.OrderNumber).Warn("clear persisted cart after order failed")
	}
	s.cart = cleared
	s.updatedAt = now

	if err := s.view.ConfirmOrder(); err != nil {
		s.log.WithError(err).Warn("confirmation view transition failed")
	}

	s.enqueueOrderPlaced(order)
	s.appendTimeline(domain.TimelineOrderCreated, order.OrderNumber)
	s.deps.Metrics.RecordOrderCreated(now.Sub(s.submittedAt))
	s.log.WithFields(log.Fields{
		"order_number": order.OrderNumber,
		"total":        order.Total.StringFixed(2),
	}).Info("order created")

	s.submittedCart = domain.Cart{}
}

// StartNewOrder закрывает подтверждение, очищает корзину и возвращает в каталог.
func (s *Session) StartNewOrder(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if s.view.Current() != view.Confirmation {
		return s.snapshot(), fmt.Errorf("%w: new order from %s", domain.ErrInvalidTransition, s.view.Current())
	}
	if !s.cart.IsEmpty() {
		cleared := cart.Clear()
		if err := s.persist(ctx, cleared); err != nil {
			return s.snapshot(), err
		}
		s.cart = cleared
		s.updatedAt = s.lastSeen
		s.appendTimeline(domain.TimelineCartCleared, "new order")
	}
	if err := s.view.StartNewOrder(); err != nil {
		return s.snapshot(), err
	}
	s.machine.Reset()
	return s.snapshot(), nil
}

// Timeline возвращает журнал событий сессии.
func (s *Session) Timeline() ([]domain.TimelineEvent, error) {
	if s.deps.Timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return s.deps.Timeline.List(s.id)
}

func (s *Session) showNotice(err error) {
	s.noticeGen++
	generation := s.noticeGen
	s.notice = err
	s.deps.Clock.AfterFunc(s.cfg.ErrorDisplayWindow, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.noticeGen == generation {
			s.notice = nil
		}
	})
}

func (s *Session) enqueueOrderPlaced(order domain.Order) {
	if s.deps.Outbox == nil {
		return
	}

	event := domain.OrderPlacedEvent{
		OrderNumber: order.OrderNumber,
		SessionID:   s.id,
		Total:       order.Total.StringFixed(2),
		ItemCount:   order.ItemCount,
		Items:       make([]domain.OrderPlacedItem, 0, len(s.submittedCart.Items)),
		PlacedAt:    order.CreatedAt.UTC(),
	}
	for _, item := range s.submittedCart.Items {
		event.Items = append(event.Items, domain.OrderPlacedItem{
			SKU:       item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Quantity:  item.Quantity,
		})
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.log.WithError(err).Error("marshal order.placed failed")
		return
	}
	if _, err := s.deps.Outbox.Enqueue(domain.OutboxMessage{
		AggregateType: domain.AggregateOrder,
		AggregateID:   order.OrderNumber,
		EventType:     domain.EventOrderPlaced,
		Payload:       payload,
	}); err != nil {
		s.log.WithError(err).WithField("order_number", order.OrderNumber).Error("enqueue order.placed failed")
	}
}

func (s *Session) appendTimeline(eventType, reason string) {
	if s.deps.Timeline == nil {
		return
	}
	event := domain.TimelineEvent{
		SessionID: s.id,
		Type:      eventType,
		Reason:    reason,
		Occurred:  s.deps.Clock.Now().UTC(),
	}
	if err := s.deps.Timeline.Append(event); err != nil {
		s.log.WithError(err).WithField("event", eventType).Warn("append timeline event failed")
		return
	}
	s.deps.Metrics.RecordTimelineEvent()
}

func (s *Session) touch() {
	s.lastSeen = s.deps.Clock.Now()
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		SessionID: s.id,
		View:      s.view.Current(),
		Cart:      s.cart.Clone(),
		ItemCount: s.cart.ItemCount(),
		Summary:   pricing.ComputeSummary(s.cart),
		Checkout: CheckoutSnapshot{
			State: s.machine.State(),
			Error: s.machine.Rejection(),
			Form:  s.machine.Form(),
		},
		Notice:    s.notice,
		OpenedAt:  s.openedAt,
		UpdatedAt: s.updatedAt,
	}
	if order := s.machine.Order(); order != nil {
		o := *order
		snap.Order = &o
	}
	return snap
}
