package money

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestGrandTotal(t *testing.T) {
	cases := []struct {
		name                             string
		subtotal, discount, shipping, tax int64
		want                             int64
	}{
		{"subtotal only", 500000, 0, 0, 0, 500000},
		{"with shipping", 500000, 0, 50000, 0, 550000},
		{"with coupon", 500000, 100000, 50000, 0, 450000},
		{"with tax", 500000, 100000, 50000, 25000, 475000},
		{"discount exceeds subtotal", 100000, 150000, 0, 0, -50000},
		{"all zero", 0, 0, 0, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := GrandTotal(d(tc.subtotal), d(tc.discount), d(tc.shipping), d(tc.tax))
			if !got.Equal(d(tc.want)) {
				t.Fatalf("got %s, want %d", got, tc.want)
			}
		})
	}
}

func TestGrandTotalKeepsDecimalPrecision(t *testing.T) {
	subtotal := decimal.RequireFromString("19.99")
	tax := decimal.RequireFromString("1.60")
	got := GrandTotal(subtotal, decimal.Zero, decimal.RequireFromString("4.95"), tax)
	if got.String() != "26.54" {
		t.Fatalf("got %s, want 26.54", got)
	}
}
