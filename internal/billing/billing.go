// Package billing turns scanned products into bills: price lookup, the
// running cart, tax and totals, currency formatting and e-mail receipts.
package billing

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// DefaultTaxRate is applied when a caller does not pick one.
const DefaultTaxRate = 0.1

var (
	ErrInvalidTaxRate  = errors.New("tax rate must be between 0 and 1")
	ErrNoProducts      = errors.New("bill has no products")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Product is a cart line.
type Product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Image    string  `json:"image,omitempty"`
}

// Total is price times quantity.
func (p Product) Total() float64 {
	return p.Price * float64(p.Quantity)
}

// Bill is a finalized purchase. Total is the pre-tax subtotal.
type Bill struct {
	ID            string    `json:"id"`
	Date          time.Time `json:"date"`
	Products      []Product `json:"products"`
	Total         float64   `json:"total"`
	Tax           float64   `json:"tax"`
	GrandTotal    float64   `json:"grand_total"`
	CustomerEmail string    `json:"customer_email,omitempty"`
}

// Subtotal sums every product line.
func Subtotal(products []Product) float64 {
	var sum float64
	for _, p := range products {
		sum += p.Total()
	}
	return sum
}

// Tax applies rate to subtotal.
func Tax(subtotal, rate float64) float64 {
	return subtotal * rate
}

// GenerateBill prices products at the given tax rate. Amounts are rounded to
// cents and products are copied so later cart edits do not leak in.
func GenerateBill(products []Product, taxRate float64) (*Bill, error) {
	if taxRate < 0 || taxRate > 1 || math.IsNaN(taxRate) {
		return nil, ErrInvalidTaxRate
	}
	if len(products) == 0 {
		return nil, ErrNoProducts
	}
	for _, p := range products {
		if p.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
	}

	subtotal := roundCents(Subtotal(products))
	tax := roundCents(Tax(subtotal, taxRate))

	return &Bill{
		ID:         uuid.NewString(),
		Date:       time.Now().UTC(),
		Products:   append([]Product(nil), products...),
		Total:      subtotal,
		Tax:        tax,
		GrandTotal: roundCents(subtotal + tax),
	}, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
