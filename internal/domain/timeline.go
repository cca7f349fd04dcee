package domain

import "time"

// Типы событий журнала сессии.
const (
	TimelineItemAdded       = "ItemAdded"
	TimelineQuantityChanged = "QuantityChanged"
	TimelineItemRemoved     = "ItemRemoved"
	TimelineCartCleared     = "CartCleared"
	TimelineCheckoutStarted = "CheckoutStarted"
	TimelineCheckoutDenied  = "CheckoutRejected"
	TimelineOrderCreated    = "OrderCreated"
)

// TimelineEvent описывает событие в жизни сессии покупателя.
type TimelineEvent struct {
	SessionID string
	Type      string
	Reason    string
	Occurred  time.Time
}
