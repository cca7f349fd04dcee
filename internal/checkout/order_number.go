package checkout

import (
	"fmt"
	"math/rand/v2"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const (
	orderNumberMin = 10000000
	orderNumberMax = 99999999
)

// OrderNumberFunc выдаёт номер нового заказа.
type OrderNumberFunc func() string

// GenerateOrderNumber возвращает "ORD-" и восьмизначное число, равномерно выбранное из [10000000, 99999999].
func GenerateOrderNumber() string {
	return formatOrderNumber(orderNumberMin + rand.IntN(orderNumberMax-orderNumberMin+1))
}

// OrderNumbersFrom строит генератор поверх заданного источника случайности.
func OrderNumbersFrom(r *rand.Rand) OrderNumberFunc {
	return func() string {
		return formatOrderNumber(orderNumberMin + r.IntN(orderNumberMax-orderNumberMin+1))
	}
}

func formatOrderNumber(n int) string {
	return fmt.Sprintf("%s%08d", domain.OrderNumberPrefix, n)
}
