package domain

import "github.com/shopspring/decimal"

// MaxLineQuantity ограничивает количество при явной установке через SetQuantity.
// Пошаговое изменение (UpdateQuantity) верхней границы не имеет.
const MaxLineQuantity = 99

// LineItem — одна позиция корзины.
type LineItem struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	// Quantity всегда >= 1, пока позиция находится в корзине.
	Quantity int
}

// LineTotal возвращает UnitPrice * Quantity без округления.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart — упорядоченный список позиций; порядок совпадает с порядком первого добавления.
type Cart struct {
	Items []LineItem
}

// Len возвращает количество позиций.
func (c Cart) Len() int { return len(c.Items) }

// IsEmpty сообщает, пуста ли корзина.
func (c Cart) IsEmpty() bool { return len(c.Items) == 0 }

// ItemCount суммирует количества всех позиций (счётчик на иконке корзины).
func (c Cart) ItemCount() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

// IndexOf возвращает индекс позиции с productID или -1.
func (c Cart) IndexOf(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone возвращает копию корзины, не разделяющую backing array с исходной.
func (c Cart) Clone() Cart {
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}
