package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =====================================================
// TOTALS CALCULATOR
// =====================================================

// TotalsPolicy holds the business thresholds. Values come from
// configuration, see config.CheckoutConfig.
type TotalsPolicy struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	DiscountThreshold     decimal.Decimal
	DiscountRate          decimal.Decimal
	TaxRate               decimal.Decimal
	Precision             int32
}

// PricedLine is a cart line whose price and stock were already checked
// against the catalog.
type PricedLine struct {
	BookID    uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

type Totals struct {
	SubTotal    decimal.Decimal `json:"sub_total"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Discount    decimal.Decimal `json:"discount"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

// CalculateTotals is pure: same lines and policy always give the same result.
//
//	shipping = 0 if sub >= FreeShippingThreshold, else FlatShippingFee
//	discount = sub * DiscountRate if sub >= DiscountThreshold, else 0
//	tax      = (sub + shipping - discount) * TaxRate
//	total    = sub + shipping + tax - discount, never below 0
func CalculateTotals(lines []PricedLine, policy TotalsPolicy) (Totals, error) {
	if len(lines) == 0 {
		return Totals{}, NewValidationError(ErrCodeCartEmpty, ErrCartEmpty.Error())
	}

	sub := decimal.Zero
	for _, l := range lines {
		if l.Quantity < 1 {
			return Totals{}, NewValidationError(ErrCodeInvalidQuantity, "quantity must be at least 1")
		}
		if l.UnitPrice.IsNegative() {
			return Totals{}, NewValidationError(ErrCodeInvalidTotals, "unit price must not be negative")
		}
		sub = sub.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	sub = sub.Round(policy.Precision)

	shipping := policy.FlatShippingFee
	if sub.GreaterThanOrEqual(policy.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	discount := decimal.Zero
	if sub.GreaterThanOrEqual(policy.DiscountThreshold) {
		discount = sub.Mul(policy.DiscountRate).Round(policy.Precision)
	}

	taxable := sub.Add(shipping).Sub(discount)
	tax := taxable.Mul(policy.TaxRate).Round(policy.Precision)
	if tax.IsNegative() {
		tax = decimal.Zero
	}

	total := sub.Add(shipping).Add(tax).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Totals{
		SubTotal:    sub,
		ShippingFee: shipping,
		Discount:    discount,
		Tax:         tax,
		Total:       total,
	}, nil
}

// LineTotal is unit price × quantity.
func LineTotal(unitPrice decimal.Decimal, qty int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty)))
}
