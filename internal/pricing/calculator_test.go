package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeHundredDollars(t *testing.T) {
	got := Compute(decimal.RequireFromString("100.00"))
	if got.Tax.StringFixed(2) != "8.00" {
		t.Fatalf("expected tax 8.00, got %s", got.Tax.StringFixed(2))
	}
	if got.Shipping.StringFixed(2) != "0.00" {
		t.Fatalf("expected free shipping, got %s", got.Shipping.StringFixed(2))
	}
	if got.Total.StringFixed(2) != "108.00" {
		t.Fatalf("expected total 108.00, got %s", got.Total.StringFixed(2))
	}
}

func TestComputeRoundsTaxOnce(t *testing.T) {
	cases := []struct {
		subtotal string
		tax      string
	}{
		{subtotal: "0", tax: "0.00"},
		{subtotal: "0.06", tax: "0.00"},
		{subtotal: "0.07", tax: "0.01"},
		{subtotal: "19.99", tax: "1.60"},
		{subtotal: "12.50", tax: "1.00"},
		{subtotal: "33.33", tax: "2.67"},
	}
	for _, tc := range cases {
		got := Compute(decimal.RequireFromString(tc.subtotal))
		if got.Tax.StringFixed(2) != tc.tax {
			t.Fatalf("subtotal %s: expected tax %s got %s", tc.subtotal, tc.tax, got.Tax.StringFixed(2))
		}
	}
}

func TestTotalAlwaysSumsExactly(t *testing.T) {
	for cents := int64(0); cents <= 20000; cents += 7 {
		totals := Compute(FromCents(cents))
		sum := totals.Subtotal.Add(totals.Tax).Add(totals.Shipping)
		if !sum.Equal(totals.Total) {
			t.Fatalf("subtotal %s: %s != %s", totals.Subtotal, sum, totals.Total)
		}
		if !totals.Tax.Equal(totals.Tax.Round(2)) {
			t.Fatalf("tax %s not rounded to the cent", totals.Tax)
		}
	}
}

func TestValidate(t *testing.T) {
	good := Compute(decimal.RequireFromString("42.10"))
	if err := good.Validate(); err != nil {
		t.Fatalf("expected valid totals: %v", err)
	}
	bad := good
	bad.Total = bad.Total.Add(decimal.NewFromInt(1))
	if err := bad.Validate(); err == nil {
		t.Fatal("expected tampered totals to fail")
	}
}

func TestCentsRoundTrip(t *testing.T) {
	if got := Cents(decimal.RequireFromString("108.00")); got != 10800 {
		t.Fatalf("expected 10800, got %d", got)
	}
	if got := FromCents(1999).StringFixed(2); got != "19.99" {
		t.Fatalf("expected 19.99, got %s", got)
	}
}
