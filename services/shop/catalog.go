package shop

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	errorutils "github.com/folioshop/storefront/libs/errors"
	"github.com/folioshop/storefront/services/shop/model"
)

//go:embed catalog.yaml
var catalogYAML []byte

const rupee = "₹"

// Catalog is the read only list of products on sale.
type Catalog struct {
	products []model.Product
	byID     map[string]int
}

// NewCatalog parses a yaml product list.
func NewCatalog(raw []byte) (*Catalog, error) {
	var products []model.Product
	if err := yaml.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	result := &Catalog{
		products: make([]model.Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}

	for _, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("failed to parse catalog: product without id")
		}

		if _, ok := result.byID[p.ID]; ok {
			return nil, fmt.Errorf("failed to parse catalog: duplicate product %q", p.ID)
		}

		if p.Amount <= 0 {
			return nil, fmt.Errorf("failed to parse catalog: product %q: %w", p.ID, model.ErrInvalidAmount)
		}

		p.PriceDisplay = FormatPrice(p.Amount)

		result.byID[p.ID] = len(result.products)
		result.products = append(result.products, p)
	}

	return result, nil
}

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return NewCatalog(catalogYAML)
}

// List returns a copy of all products in catalog order.
func (c *Catalog) List() []model.Product {
	result := make([]model.Product, len(c.products))
	copy(result, c.products)

	return result
}

// Get returns the product with the given id.
func (c *Catalog) Get(id string) (model.Product, error) {
	idx, ok := c.byID[id]
	if !ok {
		return model.Product{}, fmt.Errorf("%w %q: %w", model.ErrProductNotFound, id, errorutils.ErrNotFound)
	}

	return c.products[idx], nil
}

// FormatPrice renders paise as rupees with Indian digit grouping, e.g. 1199900 as ₹11,999.
// Whole rupee amounts omit the fraction.
func FormatPrice(paise int64) string {
	amount := decimal.New(paise, -2)

	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}

	whole := amount.Truncate(0)
	result := sign + rupee + groupIndian(whole.String())

	if frac := amount.Sub(whole); !frac.IsZero() {
		result += strings.TrimPrefix(frac.StringFixed(2), "0")
	}

	return result
}

// groupIndian groups the last three digits and then every two.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]

	var groups []string
	for len(head) > 2 {
		groups = append([]string{head[len(head)-2:]}, groups...)
		head = head[:len(head)-2]
	}

	groups = append([]string{head}, groups...)

	return strings.Join(groups, ",") + "," + tail
}
