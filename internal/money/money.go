// Package money holds the single total-computation rule used by both
// checkout sessions and orders. All amounts are decimal, never float.
package money

import "github.com/shopspring/decimal"

// GrandTotal = subtotal - discount + shipping + tax.
// May be negative when the discount exceeds the subtotal; callers that
// want clamping do it themselves.
func GrandTotal(subtotal, discount, shipping, tax decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(discount).Add(shipping).Add(tax)
}
