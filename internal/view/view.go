// Package view описывает четыре взаимоисключающих экрана витрины и переходы между ними.
package view

import (
	"fmt"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// View — текущий экран.
type View int

const (
	// Catalog: начальный экран со списком товаров.
	Catalog View = iota
	Cart
	Checkout
	// Confirmation показывает созданный заказ.
	Confirmation
)

func (v View) String() string {
	switch v {
	case Catalog:
		return "catalog"
	case Cart:
		return "cart"
	case Checkout:
		return "checkout"
	case Confirmation:
		return "confirmation"
	default:
		return "unknown"
	}
}

// Controller хранит текущий экран. Нулевое значение находится на Catalog.
type Controller struct {
	current View
}

// Current возвращает текущий экран.
func (c *Controller) Current() View { return c.current }

// OpenCart: Catalog -> Cart. С пустой корзиной экран не меняется, возвращается ErrCartEmpty.
func (c *Controller) OpenCart(cartEmpty bool) error {
	if c.current != Catalog {
		return c.invalid(Cart)
	}
	if cartEmpty {
		return domain.ErrCartEmpty
	}
	c.current = Cart
	return nil
}

// ProceedToCheckout: Cart -> Checkout.
func (c *Controller) ProceedToCheckout(cartEmpty bool) error {
	if c.current != Cart {
		return c.invalid(Checkout)
	}
	if cartEmpty {
		return domain.ErrCartEmpty
	}
	c.current = Checkout
	return nil
}

// BackToCart: Checkout -> Cart.
func (c *Controller) BackToCart() error {
	if c.current != Checkout {
		return c.invalid(Cart)
	}
	c.current = Cart
	return nil
}

// ConfirmOrder: Checkout -> Confirmation после создания заказа.
func (c *Controller) ConfirmOrder() error {
	if c.current != Checkout {
		return c.invalid(Confirmation)
	}
	c.current = Confirmation
	return nil
}

// StartNewOrder: Confirmation -> Catalog.
func (c *Controller) StartNewOrder() error {
	if c.current != Confirmation {
		return c.invalid(Catalog)
	}
	c.current = Catalog
	return nil
}

// CartEmptied возвращает на Catalog, если корзина опустела на экране корзины
// или оплаты. Возвращает true, если экран изменился.
func (c *Controller) CartEmptied() bool {
	if c.current != Cart && c.current != Checkout {
		return false
	}
	c.current = Catalog
	return true
}

func (c *Controller) invalid(to View) error {
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, c.current, to)
}
