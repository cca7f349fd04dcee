// Package pricing рассчитывает стоимость корзины.
package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// TaxRate — фиксированная ставка налога 10%.
var TaxRate = decimal.RequireFromString("0.10")

// Summary хранит точные (неокруглённые) значения.
type Summary struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// DisplaySummary — значения, округлённые до центов и отформатированные для показа.
type DisplaySummary struct {
	Subtotal string
	Tax      string
	Total    string
}

// ComputeSummary считает subtotal = Σ price*qty, tax = subtotal*0.10, total = subtotal+tax.
func ComputeSummary(c domain.Cart) Summary {
	subtotal := decimal.Zero
	for _, item := range c.Items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	tax := subtotal.Mul(TaxRate)
	return Summary{
		Subtotal: subtotal,
		Tax:      tax,
		Total:    subtotal.Add(tax),
	}
}

// Rounded возвращает summary с каждым значением, округлённым до 2 знаков.
func (s Summary) Rounded() Summary {
	return Summary{
		Subtotal: Round(s.Subtotal),
		Tax:      Round(s.Tax),
		Total:    Round(s.Total),
	}
}

// Display форматирует значения как "$1,234.56".
func (s Summary) Display() DisplaySummary {
	return DisplaySummary{
		Subtotal: FormatMoney(s.Subtotal),
		Tax:      FormatMoney(s.Tax),
		Total:    FormatMoney(s.Total),
	}
}

// Round округляет до центов, половину от нуля.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// FormatMoney округляет сумму до центов и форматирует её с разделителем тысяч.
// Строка собирается из десятичного представления, точность не ограничена float64.
func FormatMoney(d decimal.Decimal) string {
	rounded := Round(d)
	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		rounded = rounded.Neg()
	}
	fixed := rounded.StringFixed(2)
	dot := strings.IndexByte(fixed, '.')
	return sign + "$" + groupThousands(fixed[:dot]) + fixed[dot:]
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}

	var b strings.Builder
	b.Grow(len(digits) + len(digits)/3)
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
