package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// StorageKey — фиксированный ключ слота корзины внутри namespace сессии.
const StorageKey = "cart"

type storedItem struct {
	SKU      string      `json:"sku"`
	Name     string      `json:"name"`
	Price    json.Number `json:"price"`
	Quantity int         `json:"quantity"`
}

// Marshal сериализует корзину в JSON-массив {sku, name, price, quantity}.
// Пустая корзина записывается как [].
func Marshal(c domain.Cart) ([]byte, error) {
	items := make([]storedItem, 0, len(c.Items))
	for _, li := range c.Items {
		items = append(items, storedItem{
			SKU:      li.ProductID,
			Name:     li.Name,
			Price:    json.Number(li.UnitPrice.String()),
			Quantity: li.Quantity,
		})
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal cart: %w", err)
	}
	return data, nil
}

// Unmarshal восстанавливает корзину. Любое нарушение формата или инвариантов
// возвращается как ErrPersistenceRead.
func Unmarshal(data []byte) (domain.Cart, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var items []storedItem
	if err := dec.Decode(&items); err != nil {
		return domain.Cart{}, fmt.Errorf("%w: %v", domain.ErrPersistenceRead, err)
	}
	if items == nil {
		return domain.Cart{}, fmt.Errorf("%w: expected JSON array", domain.ErrPersistenceRead)
	}

	out := domain.Cart{Items: make([]domain.LineItem, 0, len(items))}
	for i, it := range items {
		if strings.TrimSpace(it.SKU) == "" {
			return domain.Cart{}, fmt.Errorf("%w: item %d has empty sku", domain.ErrPersistenceRead, i)
		}
		if it.Quantity < 1 {
			return domain.Cart{}, fmt.Errorf("%w: item %d has quantity %d", domain.ErrPersistenceRead, i, it.Quantity)
		}
		if out.IndexOf(it.SKU) >= 0 {
			return domain.Cart{}, fmt.Errorf("%w: duplicate sku %s", domain.ErrPersistenceRead, it.SKU)
		}
		price, err := decimal.NewFromString(it.Price.String())
		if err != nil || price.IsNegative() {
			return domain.Cart{}, fmt.Errorf("%w: item %d has invalid price %q", domain.ErrPersistenceRead, i, it.Price)
		}
		out.Items = append(out.Items, domain.LineItem{
			ProductID: it.SKU,
			Name:      it.Name,
			UnitPrice: price,
			Quantity:  it.Quantity,
		})
	}
	return out, nil
}
