package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/pricing"
	"github.com/vladislavdragonenkov/storefront/internal/session"
)

type productResponse struct {
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	DisplayPrice string `json:"display_price"`
}

type productsResponse struct {
	Products []productResponse `json:"products"`
}

type itemResponse struct {
	Index     int    `json:"index"`
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

type amountsResponse struct {
	Subtotal string `json:"subtotal"`
	Tax      string `json:"tax"`
	Total    string `json:"total"`
}

// summaryResponse: верхние поля для показа, Amounts содержит десятичные значения.
type summaryResponse struct {
	Subtotal string          `json:"subtotal"`
	Tax      string          `json:"tax"`
	Total    string          `json:"total"`
	Amounts  amountsResponse `json:"amounts"`
}

type formResponse struct {
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
}

type checkoutResponse struct {
	State string       `json:"state"`
	Error *errorBody   `json:"error"`
	Form  formResponse `json:"form"`
}

type orderResponse struct {
	OrderNumber  string    `json:"order_number"`
	Total        string    `json:"total"`
	DisplayTotal string    `json:"display_total"`
	ItemCount    int       `json:"item_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type sessionResponse struct {
	SessionID string           `json:"session_id"`
	View      string           `json:"view"`
	CartCount int              `json:"cart_count"`
	Items     []itemResponse   `json:"items"`
	Summary   summaryResponse  `json:"summary"`
	Checkout  checkoutResponse `json:"checkout"`
	Order     *orderResponse   `json:"order,omitempty"`
	Notice    *errorBody       `json:"notice,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
}

type timelineEventResponse struct {
	Type       string    `json:"type"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type timelineResponse struct {
	SessionID string                  `json:"session_id"`
	Events    []timelineEventResponse `json:"events"`
}

func toProducts(products []domain.Product) productsResponse {
	resp := productsResponse{Products: make([]productResponse, 0, len(products))}
	for _, p := range products {
		resp.Products = append(resp.Products, productResponse{
			SKU:          p.ID,
			Name:         p.Name,
			Price:        p.UnitPrice.StringFixed(2),
			DisplayPrice: pricing.FormatMoney(p.UnitPrice),
		})
	}
	return resp
}

func toSession(snap session.Snapshot) sessionResponse {
	rounded := snap.Summary.Rounded()
	display := snap.Summary.Display()

	resp := sessionResponse{
		SessionID: snap.SessionID,
		View:      snap.View.String(),
		CartCount: snap.ItemCount,
		Items:     make([]itemResponse, 0, snap.Cart.Len()),
		Summary: summaryResponse{
			Subtotal: display.Subtotal,
			Tax:      display.Tax,
			Total:    display.Total,
			Amounts: amountsResponse{
				Subtotal: rounded.Subtotal.StringFixed(2),
				Tax:      rounded.Tax.StringFixed(2),
				Total:    rounded.Total.StringFixed(2),
			},
		},
		Checkout: checkoutResponse{
			State: snap.Checkout.State.String(),
			Error: describe(snap.Checkout.Error),
			Form: formResponse{
				CardNumber: checkout.MaskCardNumber(snap.Checkout.Form.CardNumber),
				Expiry:     snap.Checkout.Form.Expiry,
			},
		},
		Notice:    describe(snap.Notice),
		CreatedAt: snap.OpenedAt.UTC(),
	}
	if !snap.UpdatedAt.IsZero() {
		updated := snap.UpdatedAt.UTC()
		resp.UpdatedAt = &updated
	}

	for i, item := range snap.Cart.Items {
		resp.Items = append(resp.Items, itemResponse{
			Index:     i,
			SKU:       item.ProductID,
			Name:      item.Name,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal().StringFixed(2),
		})
	}

	if snap.Order != nil {
		resp.Order = &orderResponse{
			OrderNumber:  snap.Order.OrderNumber,
			Total:        snap.Order.Total.StringFixed(2),
			DisplayTotal: pricing.FormatMoney(snap.Order.Total),
			ItemCount:    snap.Order.ItemCount,
			CreatedAt:    snap.Order.CreatedAt.UTC(),
		}
	}
	return resp
}

func toTimeline(sessionID string, events []domain.TimelineEvent) timelineResponse {
	resp := timelineResponse{SessionID: sessionID, Events: make([]timelineEventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, timelineEventResponse{
			Type:       e.Type,
			Reason:     e.Reason,
			OccurredAt: e.Occurred.UTC(),
		})
	}
	return resp
}
