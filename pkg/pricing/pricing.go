// Package pricing derives a cart's price breakdown from its line items.
// All arithmetic is decimal; results are formatted as fixed 2-decimal
// strings so persisted and displayed values never pick up binary
// floating-point drift.
package pricing

import (
	"github.com/shopspring/decimal"
)

var (
	freeShippingThreshold = decimal.NewFromInt(100)
	flatShippingRate      = decimal.NewFromInt(10)
	taxRate               = decimal.NewFromFloat(0.15)
)

// Line is the price-relevant slice of a cart line.
type Line struct {
	Price decimal.Decimal
	Qty   int
}

// Breakdown holds the four derived price fields as fixed 2-decimal strings.
type Breakdown struct {
	ItemsPrice    string
	ShippingPrice string
	TaxPrice      string
	TotalPrice    string
}

// Calculate computes the price breakdown for the given lines. It is pure
// and total: an empty slice yields a zero subtotal with the flat shipping
// charge. Rounding is half away from zero to 2 decimal places.
//
// Policy: shipping is free above a 100.00 subtotal, otherwise a flat 10.00;
// tax is 15% of the subtotal; total is the sum of the three.
func Calculate(lines []Line) Breakdown {
	items := decimal.Zero
	for _, line := range lines {
		items = items.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Qty))))
	}
	items = items.Round(2)

	shipping := flatShippingRate
	if items.GreaterThan(freeShippingThreshold) {
		shipping = decimal.Zero
	}
	shipping = shipping.Round(2)

	tax := items.Mul(taxRate).Round(2)
	total := items.Add(shipping).Add(tax).Round(2)

	return Breakdown{
		ItemsPrice:    items.StringFixed(2),
		ShippingPrice: shipping.StringFixed(2),
		TaxPrice:      tax.StringFixed(2),
		TotalPrice:    total.StringFixed(2),
	}
}
