package domain

import "github.com/shopspring/decimal"

// Product описывает товар каталога. Значения задаются при старте и не меняются.
type Product struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
}
