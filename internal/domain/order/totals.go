package order

import "github.com/shopspring/decimal"

var (
	taxRate           = decimal.NewFromFloat(0.18)
	freeShippingAbove = decimal.NewFromInt(100)
	flatShipping      = decimal.NewFromInt(5)
)

// Totals is the computed price breakdown of an order.
type Totals struct {
	ItemsPrice    decimal.Decimal
	TaxPrice      decimal.Decimal
	ShippingPrice decimal.Decimal
	TotalPrice    decimal.Decimal
}

// CalculateTotals sums the snapshotted line prices and applies the flat 18%
// tax and the free-shipping-over-100 rule. Tax and total are rounded to two
// decimal places.
func CalculateTotals(items []LineItem) Totals {
	itemsPrice := decimal.Zero
	for _, item := range items {
		itemsPrice = itemsPrice.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	taxPrice := itemsPrice.Mul(taxRate).Round(2)

	shippingPrice := flatShipping
	if itemsPrice.GreaterThan(freeShippingAbove) {
		shippingPrice = decimal.Zero
	}

	totalPrice := itemsPrice.Add(taxPrice).Add(shippingPrice).Round(2)

	return Totals{
		ItemsPrice:    itemsPrice,
		TaxPrice:      taxPrice,
		ShippingPrice: shippingPrice,
		TotalPrice:    totalPrice,
	}
}
