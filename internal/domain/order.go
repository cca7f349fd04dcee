package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderNumberPrefix — литеральный префикс номера заказа.
const OrderNumberPrefix = "ORD-"

// Order создаётся только при успешном оформлении и живёт до перехода к новому заказу.
type Order struct {
	OrderNumber string
	Total       decimal.Decimal
	ItemCount   int
	CreatedAt   time.Time
}
