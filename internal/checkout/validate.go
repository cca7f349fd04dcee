// Package checkout содержит проверку платёжных данных и автомат оформления заказа.
package checkout

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// CardNumberLength — требуемая длина номера карты без пробелов.
const CardNumberLength = 16

// Expiry — разобранный срок действия карты. Year хранит две цифры.
type Expiry struct {
	Month int
	Year  int
}

// ValidateCard проверяет длину номера и срок действия относительно now.
// Проверяется только длина номера: ни алгоритма Луна, ни определения платёжной системы.
// Годы сравниваются по модулю 100.
func ValidateCard(number, expiry string, now time.Time) error {
	if utf8.RuneCountInString(StripSpaces(number)) != CardNumberLength {
		return domain.ErrInvalidCardLength
	}

	exp, err := ParseExpiry(expiry)
	if err != nil {
		return err
	}

	currentYear := now.Year() % 100
	currentMonth := int(now.Month())
	if exp.Year < currentYear || (exp.Year == currentYear && exp.Month < currentMonth) {
		return domain.ErrCardExpired
	}
	return nil
}

// ParseExpiry разбирает строку вида MM/YY.
func ParseExpiry(raw string) (Expiry, error) {
	mm, yy, ok := strings.Cut(strings.TrimSpace(raw), "/")
	if !ok {
		return Expiry{}, fmt.Errorf("%w: %q", domain.ErrInvalidExpiry, raw)
	}
	mm, yy = strings.TrimSpace(mm), strings.TrimSpace(yy)
	if len(mm) < 1 || len(mm) > 2 || len(yy) != 2 || !isDigits(mm) || !isDigits(yy) {
		return Expiry{}, fmt.Errorf("%w: %q", domain.ErrInvalidExpiry, raw)
	}

	month, _ := strconv.Atoi(mm)
	year, _ := strconv.Atoi(yy)
	if month < 1 || month > 12 {
		return Expiry{}, fmt.Errorf("%w: month %d", domain.ErrInvalidExpiry, month)
	}
	return Expiry{Month: month, Year: year}, nil
}

// StripSpaces удаляет все пробельные символы.
func StripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// MaskCardNumber оставляет только последние четыре символа номера.
func MaskCardNumber(number string) string {
	stripped := []rune(StripSpaces(number))
	if len(stripped) <= 4 {
		return strings.Repeat("*", len(stripped))
	}
	return strings.Repeat("*", len(stripped)-4) + string(stripped[len(stripped)-4:])
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
