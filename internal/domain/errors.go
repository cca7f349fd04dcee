package domain

import "errors"

var (
	// ErrProductNotFound возвращается при поиске товара, которого нет в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrLineItemNotFound — позиция с указанным индексом или SKU отсутствует в корзине.
	ErrLineItemNotFound = errors.New("line item not found")
	// ErrInvalidQuantity — запрошенное количество не положительное.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrQuantityLimitExceeded — запрошенное количество больше MaxLineQuantity.
	ErrQuantityLimitExceeded = errors.New("maximum quantity is 99")
	ErrCartEmpty             = errors.New("cart is empty")

	// ErrInvalidCardLength — номер карты без пробелов не состоит ровно из 16 символов.
	ErrInvalidCardLength = errors.New("card number must be 16 digits")
	// ErrCardExpired — срок действия карты истёк относительно текущего месяца.
	ErrCardExpired = errors.New("card has expired")
	// ErrInvalidExpiry — срок действия не удалось разобрать как MM/YY.
	ErrInvalidExpiry = errors.New("expiry must be in MM/YY format")

	// ErrCheckoutInFlight — оформление заказа уже выполняется в этой сессии.
	ErrCheckoutInFlight = errors.New("checkout is already processing")
	// ErrInvalidTransition — переход между экранами не разрешён из текущего состояния.
	ErrInvalidTransition = errors.New("view transition is not allowed")

	// ErrPersistenceRead — сохранённая корзина повреждена; восстанавливаемся пустой корзиной.
	ErrPersistenceRead = errors.New("stored cart is unreadable")
	// ErrSlotNotFound возвращается key-value хранилищем, если ключ ещё не записан.
	ErrSlotNotFound    = errors.New("key-value slot not found")
	ErrSessionNotFound = errors.New("session not found")

	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsValidationError сообщает, относится ли ошибка к пользовательскому вводу на шаге оплаты.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidCardLength) ||
		errors.Is(err, ErrCardExpired) ||
		errors.Is(err, ErrInvalidExpiry)
}

// IsNotFound объединяет ошибки отсутствующих товаров и позиций.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrLineItemNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}
