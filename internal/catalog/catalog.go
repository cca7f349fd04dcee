// Package catalog содержит статический список товаров витрины.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

type fileProduct struct {
	SKU   string `yaml:"sku"`
	Name  string `yaml:"name"`
	Price string `yaml:"price"`
}

type file struct {
	Products []fileProduct `yaml:"products"`
}

// Catalog — неизменяемое отображение SKU -> товар с сохранением порядка объявления.
type Catalog struct {
	products []domain.Product
	index    map[string]int
}

// Load разбирает YAML-описание каталога.
func Load(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	products := make([]domain.Product, 0, len(f.Products))
	for i, p := range f.Products {
		sku := strings.TrimSpace(p.SKU)
		if sku == "" {
			return nil, fmt.Errorf("catalog entry %d: sku is required", i)
		}
		price, err := decimal.NewFromString(strings.TrimSpace(p.Price))
		if err != nil {
			return nil, fmt.Errorf("catalog entry %q: invalid price %q: %w", sku, p.Price, err)
		}
		products = append(products, domain.Product{ID: sku, Name: p.Name, UnitPrice: price})
	}

	return New(products)
}

// New строит каталог из готового списка товаров.
func New(products []domain.Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]domain.Product, 0, len(products)),
		index:    make(map[string]int, len(products)),
	}
	for _, p := range products {
		if p.ID == "" {
			return nil, errors.New("product id is required")
		}
		if p.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("product %q: price must not be negative", p.ID)
		}
		if _, dup := c.index[p.ID]; dup {
			return nil, fmt.Errorf("product %q: duplicate id", p.ID)
		}
		c.index[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	return c, nil
}

// Default возвращает встроенный каталог. Паникует, если встроенный файл повреждён.
func Default() *Catalog {
	c, err := Load(embeddedCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return c
}

// Lookup возвращает товар по SKU или ErrProductNotFound.
func (c *Catalog) Lookup(id string) (domain.Product, error) {
	i, ok := c.index[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, id)
	}
	return c.products[i], nil
}

// Products возвращает копию списка товаров в порядке объявления.
func (c *Catalog) Products() []domain.Product {
	out := make([]domain.Product, len(c.products))
	copy(out, c.products)
	return out
}
