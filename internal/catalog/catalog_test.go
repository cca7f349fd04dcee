package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	products := c.Products()
	require.NotEmpty(t, products)
	assert.Equal(t, "laptop-001", products[0].ID)

	laptop, err := c.Lookup("laptop-001")
	require.NoError(t, err)
	assert.Equal(t, "Gaming Laptop", laptop.Name)
	assert.True(t, laptop.UnitPrice.Equal(decimal.RequireFromString("1299.99")))
}

func TestLookupUnknown(t *testing.T) {
	_, err := Default().Lookup("nope")
	require.ErrorIs(t, err, domain.ErrProductNotFound)
}

func TestLoadRejectsInvalidEntries(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing sku", yaml: "products:\n  - name: x\n    price: \"1\"\n"},
		{name: "bad price", yaml: "products:\n  - sku: a\n    name: x\n    price: abc\n"},
		{name: "negative price", yaml: "products:\n  - sku: a\n    name: x\n    price: \"-1\"\n"},
		{name: "duplicate", yaml: "products:\n  - sku: a\n    price: \"1\"\n  - sku: a\n    price: \"2\"\n"},
		{name: "not yaml", yaml: "products: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestProductsReturnsCopy(t *testing.T) {
	c := Default()
	list := c.Products()
	list[0].Name = "changed"

	p, err := c.Lookup(list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Gaming Laptop", p.Name)
}
