package model

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookstore-settlement/internal/shared/apperr"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func usdPolicy() TotalsPolicy {
	return TotalsPolicy{
		FreeShippingThreshold: d("100"),
		FlatShippingFee:       d("5"),
		DiscountThreshold:     d("1000000"),
		DiscountRate:          d("0.05"),
		TaxRate:               d("0.10"),
		Precision:             2,
	}
}

func TestCalculateTotals_ThreeFiftyDollarBooks(t *testing.T) {
	lines := []PricedLine{{BookID: uuid.New(), Quantity: 3, UnitPrice: d("50")}}

	got, err := CalculateTotals(lines, usdPolicy())
	require.NoError(t, err)

	assert.True(t, got.SubTotal.Equal(d("150")), "sub %s", got.SubTotal)
	assert.True(t, got.ShippingFee.IsZero())
	assert.True(t, got.Discount.IsZero())
	assert.True(t, got.Tax.Equal(d("15")), "tax %s", got.Tax)
	assert.True(t, got.Total.Equal(d("165")), "total %s", got.Total)
}

func TestCalculateTotals_Tiers(t *testing.T) {
	tests := []struct {
		name     string
		lines    []PricedLine
		policy   func(p *TotalsPolicy)
		shipping string
		discount string
		tax      string
		total    string
	}{
		{
			name:     "below free shipping pays flat fee",
			lines:    []PricedLine{{Quantity: 1, UnitPrice: d("40")}},
			shipping: "5",
			discount: "0",
			tax:      "4.5",
			total:    "49.5",
		},
		{
			name:     "exactly at free shipping threshold",
			lines:    []PricedLine{{Quantity: 2, UnitPrice: d("50")}},
			shipping: "0",
			discount: "0",
			tax:      "10",
			total:    "110",
		},
		{
			name:     "discount tier reached",
			lines:    []PricedLine{{Quantity: 4, UnitPrice: d("50")}},
			policy:   func(p *TotalsPolicy) { p.DiscountThreshold = d("200") },
			shipping: "0",
			discount: "10",
			tax:      "19",
			total:    "209",
		},
		{
			name:     "zero tax rate",
			lines:    []PricedLine{{Quantity: 1, UnitPrice: d("19.99")}, {Quantity: 2, UnitPrice: d("0.01")}},
			policy:   func(p *TotalsPolicy) { p.TaxRate = decimal.Zero },
			shipping: "5",
			discount: "0",
			tax:      "0",
			total:    "25.01",
		},
		{
			name:     "full discount clamps total at zero",
			lines:    []PricedLine{{Quantity: 1, UnitPrice: d("200")}},
			policy:   func(p *TotalsPolicy) { p.DiscountThreshold = d("0"); p.DiscountRate = d("1"); p.TaxRate = decimal.Zero },
			shipping: "0",
			discount: "200",
			tax:      "0",
			total:    "0",
		},
		{
			name:     "discount above subtotal clamps tax and total",
			lines:    []PricedLine{{Quantity: 1, UnitPrice: d("200")}},
			policy:   func(p *TotalsPolicy) { p.DiscountThreshold = d("0"); p.DiscountRate = d("1.5") },
			shipping: "0",
			discount: "300",
			tax:      "0",
			total:    "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := usdPolicy()
			if tt.policy != nil {
				tt.policy(&p)
			}
			got, err := CalculateTotals(tt.lines, p)
			require.NoError(t, err)

			assert.True(t, got.ShippingFee.Equal(d(tt.shipping)), "shipping %s", got.ShippingFee)
			assert.True(t, got.Discount.Equal(d(tt.discount)), "discount %s", got.Discount)
			assert.True(t, got.Tax.Equal(d(tt.tax)), "tax %s", got.Tax)
			assert.True(t, got.Total.Equal(d(tt.total)), "total %s", got.Total)

			// total == sub + shipping + tax - discount, total >= 0
			sum := got.SubTotal.Add(got.ShippingFee).Add(got.Tax).Sub(got.Discount)
			if sum.IsNegative() {
				sum = decimal.Zero
			}
			assert.True(t, got.Total.Equal(sum))
			assert.False(t, got.Total.IsNegative())
		})
	}
}

func TestCalculateTotals_IsDeterministic(t *testing.T) {
	lines := []PricedLine{{Quantity: 7, UnitPrice: d("13.37")}}
	a, err := CalculateTotals(lines, usdPolicy())
	require.NoError(t, err)
	b, err := CalculateTotals(lines, usdPolicy())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCalculateTotals_Validation(t *testing.T) {
	_, err := CalculateTotals(nil, usdPolicy())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	var oe *OrderError
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, ErrCodeCartEmpty, oe.Code)

	_, err = CalculateTotals([]PricedLine{{Quantity: 0, UnitPrice: d("1")}}, usdPolicy())
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = CalculateTotals([]PricedLine{{Quantity: 1, UnitPrice: d("-1")}}, usdPolicy())
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}
