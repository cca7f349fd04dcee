package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func item(id, price string, qty int) domain.LineItem {
	return domain.LineItem{ProductID: id, Name: id, UnitPrice: decimal.RequireFromString(price), Quantity: qty}
}

func TestComputeSummary_SingleLaptop(t *testing.T) {
	s := ComputeSummary(domain.Cart{Items: []domain.LineItem{item("laptop-001", "1299.99", 1)}})

	assert.True(t, s.Subtotal.Equal(decimal.RequireFromString("1299.99")))
	assert.True(t, s.Tax.Equal(decimal.RequireFromString("129.999")))
	assert.True(t, s.Total.Equal(decimal.RequireFromString("1429.989")))

	d := s.Display()
	assert.Equal(t, "$1,299.99", d.Subtotal)
	assert.Equal(t, "$130.00", d.Tax)
	assert.Equal(t, "$1,429.99", d.Total)
}

func TestComputeSummary_EmptyCart(t *testing.T) {
	s := ComputeSummary(domain.Cart{})

	assert.True(t, s.Total.IsZero())
	assert.Equal(t, "$0.00", s.Display().Total)
}

func TestComputeSummary_NoFloatDrift(t *testing.T) {
	c := domain.Cart{Items: []domain.LineItem{item("cable", "0.10", 1)}}
	for i := 0; i < 29; i++ {
		c.Items[0].Quantity++
	}

	s := ComputeSummary(c)
	assert.True(t, s.Subtotal.Equal(decimal.RequireFromString("3.00")), s.Subtotal.String())
	assert.True(t, s.Tax.Equal(decimal.RequireFromString("0.30")), s.Tax.String())
}

func TestComputeSummary_LinearUnderDoubling(t *testing.T) {
	carts := []domain.Cart{
		{Items: []domain.LineItem{item("a", "1299.99", 1)}},
		{Items: []domain.LineItem{item("a", "19.99", 3), item("b", "0.05", 7)}},
		{Items: []domain.LineItem{item("a", "399.99", 2), item("b", "29.99", 5), item("c", "149.99", 1)}},
	}
	tolerance := decimal.RequireFromString("0.01")

	for _, c := range carts {
		doubled := c.Clone()
		for i := range doubled.Items {
			doubled.Items[i].Quantity *= 2
		}

		base := ComputeSummary(c).Rounded()
		twice := ComputeSummary(doubled).Rounded()
		two := decimal.NewFromInt(2)

		assert.True(t, twice.Subtotal.Sub(base.Subtotal.Mul(two)).Abs().LessThanOrEqual(tolerance))
		assert.True(t, twice.Tax.Sub(base.Tax.Mul(two)).Abs().LessThanOrEqual(tolerance))
		assert.True(t, twice.Total.Sub(base.Total.Mul(two)).Abs().LessThanOrEqual(tolerance))
	}
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "0.13", Round(decimal.RequireFromString("0.125")).StringFixed(2))
	assert.Equal(t, "-0.13", Round(decimal.RequireFromString("-0.125")).StringFixed(2))
	assert.Equal(t, "130.00", Round(decimal.RequireFromString("129.999")).StringFixed(2))
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "0", want: "$0.00"},
		{in: "5", want: "$5.00"},
		{in: "19.99", want: "$19.99"},
		{in: "1299.99", want: "$1,299.99"},
		{in: "1234567.891", want: "$1,234,567.89"},
		{in: "-12.5", want: "-$12.50"},
		{in: "999.995", want: "$1,000.00"},
		{in: "100000", want: "$100,000.00"},
		{in: "90071992547409.93", want: "$90,071,992,547,409.93"},
		{in: "123456789012345678901234.565", want: "$123,456,789,012,345,678,901,234.57"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, FormatMoney(decimal.RequireFromString(tt.in)))
		})
	}
}
