package domain

import "time"

// EventOrderPlaced — тип события создания заказа в outbox.
const EventOrderPlaced = "order.placed"

// AggregateOrder — тип агрегата для событий заказа.
const AggregateOrder = "order"

// OrderPlacedEvent — полезная нагрузка события order.placed.
// Денежные суммы передаются строками с двумя знаками после точки.
type OrderPlacedEvent struct {
	OrderNumber string            `json:"order_number"`
	SessionID   string            `json:"session_id"`
	Total       string            `json:"total"`
	ItemCount   int               `json:"item_count"`
	Items       []OrderPlacedItem `json:"items"`
	PlacedAt    time.Time         `json:"placed_at"`
}

type OrderPlacedItem struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}
