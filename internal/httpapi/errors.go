package httpapi

import (
	"errors"
	"net/http"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Коды ошибок API.
const (
	CodeProductNotFound       = "PRODUCT_NOT_FOUND"
	CodeLineItemNotFound      = "LINE_ITEM_NOT_FOUND"
	CodeInvalidQuantity       = "INVALID_QUANTITY"
	CodeQuantityLimitExceeded = "QUANTITY_LIMIT_EXCEEDED"
	CodeInvalidCardLength     = "INVALID_CARD_LENGTH"
	CodeCardExpired           = "CARD_EXPIRED"
	CodeInvalidExpiry         = "INVALID_EXPIRY"
	CodeCartEmpty             = "CART_EMPTY"
	CodeInvalidTransition     = "INVALID_TRANSITION"
	CodeCheckoutInFlight      = "CHECKOUT_IN_FLIGHT"
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeInternal              = "INTERNAL"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// apiError — ошибка с HTTP статусом.
type apiError struct {
	status int
	body   errorBody
}

func (e *apiError) Error() string { return e.body.Message }

func badRequest(message, field string) *apiError {
	return &apiError{status: http.StatusBadRequest, body: errorBody{Code: CodeInvalidRequest, Message: message, Field: field}}
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
	field   string
}

var errorMappings = []errorMapping{
	{domain.ErrProductNotFound, http.StatusNotFound, CodeProductNotFound, "Product not found", "sku"},
	{domain.ErrLineItemNotFound, http.StatusNotFound, CodeLineItemNotFound, "Cart item not found", ""},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, CodeInvalidQuantity, "Quantity must be positive", "quantity"},
	{domain.ErrQuantityLimitExceeded, http.StatusBadRequest, CodeQuantityLimitExceeded, "Maximum quantity is 99", "quantity"},
	{domain.ErrInvalidCardLength, http.StatusUnprocessableEntity, CodeInvalidCardLength, "Card number must be 16 digits", "card_number"},
	{domain.ErrCardExpired, http.StatusUnprocessableEntity, CodeCardExpired, "Card has expired", "expiry"},
	{domain.ErrInvalidExpiry, http.StatusUnprocessableEntity, CodeInvalidExpiry, "Expiry must be in MM/YY format", "expiry"},
	{domain.ErrCartEmpty, http.StatusConflict, CodeCartEmpty, "Your cart is empty", ""},
	{domain.ErrCheckoutInFlight, http.StatusConflict, CodeCheckoutInFlight, "Order is being processed", ""},
	{domain.ErrInvalidTransition, http.StatusConflict, CodeInvalidTransition, "Action is not available on this screen", ""},
}

// classify переводит доменную ошибку в статус и тело ответа.
func classify(err error) *apiError {
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return &apiError{status: m.status, body: errorBody{Code: m.code, Message: m.message, Field: m.field}}
		}
	}
	return &apiError{status: http.StatusInternalServerError, body: errorBody{Code: CodeInternal, Message: "Internal server error"}}
}

// describe возвращает тело ошибки без статуса, для полей состояния.
func describe(err error) *errorBody {
	if err == nil {
		return nil
	}
	body := classify(err).body
	return &body
}
