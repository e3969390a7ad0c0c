package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func line(price string, qty int) LineItem {
	return LineItem{ProductID: "p", Name: "n", Price: decimal.RequireFromString(price), Quantity: qty}
}

func TestCalculateTotals_TaxIsEighteenPercentRounded(t *testing.T) {
	totals := CalculateTotals([]LineItem{line("10.00", 1)})

	assert.Equal(t, "10.00", totals.ItemsPrice.StringFixed(2))
	assert.Equal(t, "1.80", totals.TaxPrice.StringFixed(2))
}

func TestCalculateTotals_FlatShippingBelowThreshold(t *testing.T) {
	totals := CalculateTotals([]LineItem{line("99.99", 1)})

	assert.Equal(t, "5.00", totals.ShippingPrice.StringFixed(2))
}

func TestCalculateTotals_ShippingAtExactThresholdIsFlat(t *testing.T) {
	// Free shipping starts strictly above 100.
	totals := CalculateTotals([]LineItem{line("100.00", 1)})

	assert.Equal(t, "5.00", totals.ShippingPrice.StringFixed(2))
}

func TestCalculateTotals_FreeShippingAboveThreshold(t *testing.T) {
	totals := CalculateTotals([]LineItem{line("100.01", 1)})

	assert.True(t, totals.ShippingPrice.IsZero())
}

func TestCalculateTotals_TotalIsSumOfParts(t *testing.T) {
	items := []LineItem{line("19.99", 2), line("5.50", 3)}
	totals := CalculateTotals(items)

	// 56.48 items, 10.17 tax (rounded from 10.1664), 5 shipping.
	assert.Equal(t, "56.48", totals.ItemsPrice.StringFixed(2))
	assert.Equal(t, "10.17", totals.TaxPrice.StringFixed(2))
	assert.Equal(t, "5.00", totals.ShippingPrice.StringFixed(2))
	assert.Equal(t, "71.65", totals.TotalPrice.StringFixed(2))
}

func TestCalculateTotals_QuantityMultipliesPrice(t *testing.T) {
	totals := CalculateTotals([]LineItem{line("3.33", 4)})

	assert.Equal(t, "13.32", totals.ItemsPrice.StringFixed(2))
}
