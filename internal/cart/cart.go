// Package cart реализует чистые операции над корзиной.
//
// Все функции возвращают новую корзину и не изменяют аргумент: вызывающий код
// может откатить мутацию, просто оставив старое значение.
package cart

import (
	"fmt"
	"math"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// ProductLookup находит товар каталога по SKU.
type ProductLookup interface {
	Lookup(id string) (domain.Product, error)
}

// Add увеличивает количество существующей позиции на 1 или добавляет новую в конец.
func Add(c domain.Cart, p domain.Product) domain.Cart {
	next := c.Clone()
	if i := next.IndexOf(p.ID); i >= 0 {
		next.Items[i].Quantity++
		return next
	}
	next.Items = append(next.Items, domain.LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		Quantity:  1,
	})
	return next
}

// AddQuantity добавляет quantity единиц товара: к существующей позиции
// количество прибавляется, иначе позиция добавляется в конец.
// За один вызов можно добавить от 1 до MaxLineQuantity единиц.
func AddQuantity(c domain.Cart, p domain.Product, quantity int) (domain.Cart, error) {
	if quantity <= 0 {
		return c, domain.ErrInvalidQuantity
	}
	if quantity > domain.MaxLineQuantity {
		return c, domain.ErrQuantityLimitExceeded
	}
	if overflows(c, quantity) {
		return c, fmt.Errorf("%w: adding %d overflows item count", domain.ErrInvalidQuantity, quantity)
	}

	next := Add(c, p)
	next.Items[next.IndexOf(p.ID)].Quantity += quantity - 1
	return next, nil
}

// AddFromCatalog ищет товар в каталоге и добавляет его в корзину.
func AddFromCatalog(c domain.Cart, catalog ProductLookup, productID string) (domain.Cart, error) {
	p, err := catalog.Lookup(productID)
	if err != nil {
		return c, err
	}
	return Add(c, p), nil
}

// UpdateQuantity прибавляет delta к количеству позиции index.
// Если результат не положителен, позиция удаляется, removed == true.
// Верхней границы нет, но delta, переполняющая int, отклоняется с ErrInvalidQuantity.
func UpdateQuantity(c domain.Cart, index, delta int) (next domain.Cart, removed bool, err error) {
	if err := checkIndex(c, index); err != nil {
		return c, false, err
	}
	if overflows(c, delta) {
		return c, false, fmt.Errorf("%w: delta %d overflows item count", domain.ErrInvalidQuantity, delta)
	}

	quantity := c.Items[index].Quantity + delta
	if quantity <= 0 {
		next, err = Remove(c, index)
		return next, true, err
	}

	next = c.Clone()
	next.Items[index].Quantity = quantity
	return next, false, nil
}

// Remove удаляет позицию index без условий.
func Remove(c domain.Cart, index int) (domain.Cart, error) {
	if err := checkIndex(c, index); err != nil {
		return c, err
	}
	items := make([]domain.LineItem, 0, len(c.Items)-1)
	items = append(items, c.Items[:index]...)
	items = append(items, c.Items[index+1:]...)
	return domain.Cart{Items: items}, nil
}

// SetQuantity заменяет количество позиции с указанным SKU.
func SetQuantity(c domain.Cart, productID string, quantity int) (domain.Cart, error) {
	if quantity <= 0 {
		return c, domain.ErrInvalidQuantity
	}
	if quantity > domain.MaxLineQuantity {
		return c, domain.ErrQuantityLimitExceeded
	}
	i := c.IndexOf(productID)
	if i < 0 {
		return c, fmt.Errorf("%w: %s", domain.ErrLineItemNotFound, productID)
	}
	next := c.Clone()
	next.Items[i].Quantity = quantity
	return next, nil
}

// RemoveProduct удаляет позицию по SKU.
func RemoveProduct(c domain.Cart, productID string) (domain.Cart, error) {
	i := c.IndexOf(productID)
	if i < 0 {
		return c, fmt.Errorf("%w: %s", domain.ErrLineItemNotFound, productID)
	}
	return Remove(c, i)
}

// Clear возвращает пустую корзину.
func Clear() domain.Cart {
	return domain.Cart{Items: []domain.LineItem{}}
}

// overflows: общий счётчик корзины ограничивает и каждую позицию, поэтому
// достаточно проверить его.
func overflows(c domain.Cart, delta int) bool {
	return delta > 0 && c.ItemCount() > math.MaxInt-delta
}

func checkIndex(c domain.Cart, index int) error {
	if index < 0 || index >= len(c.Items) {
		return fmt.Errorf("%w: index %d", domain.ErrLineItemNotFound, index)
	}
	return nil
}
