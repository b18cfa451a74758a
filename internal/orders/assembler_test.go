package orders

import (
	"encoding/json"
	"errors"
	"math/rand"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/idgen"
)

var orderIDRe = regexp.MustCompile(`^ORD_\d+_[A-Z0-9]{6}$`)

var fixedNow = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func testCart() cart.Cart {
	return cart.Cart{Lines: []cart.Line{
		{ProductRef: "sku-1", Name: "Lamp", UnitPrice: decimal.RequireFromString("100.00"), Quantity: 1},
	}}
}

func testShipping() ShippingInfo {
	return ShippingInfo{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com",
		Street: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701", Country: "US",
	}
}

func cardSelection() payments.Selection {
	return payments.Selection{
		Method: enums.PaymentMethodCard,
		Card:   &payments.CardDetails{Number: "4242 4242 4242 4242", Expiry: "12/29", CVV: "123", Name: "Jane Doe"},
	}
}

func newAssembler(t *testing.T, seed int64) *Assembler {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	a, err := NewAssembler(idgen.New(clock, rand.New(rand.NewSource(seed))), clock)
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}
	return a
}

func TestAssembleMasksPaymentAndSetsDates(t *testing.T) {
	a := newAssembler(t, 1)
	c := testCart()
	totals := pricing.Compute(c.Subtotal())

	order, err := a.Assemble(c, testShipping(), cardSelection(), payments.Result{TransactionID: "TXN_1_ABCDEFGHI"}, totals)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}

	if !orderIDRe.MatchString(order.LocalID) {
		t.Fatalf("unexpected order id %q", order.LocalID)
	}
	if order.CanonicalID != "" || order.ID() != order.LocalID {
		t.Fatal("fresh order should only carry a local id")
	}
	if order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", order.Status)
	}
	if !order.CreatedAt.Equal(fixedNow) || !order.EstimatedDelivery.Equal(fixedNow.Add(5*24*time.Hour)) {
		t.Fatalf("unexpected dates %v / %v", order.CreatedAt, order.EstimatedDelivery)
	}
	if order.Payment.MaskedNumber != "**** **** **** 4242" || order.Payment.CardLast4 != "4242" {
		t.Fatalf("unexpected masking %+v", order.Payment)
	}
	if order.Payment.CardNetwork != enums.CardNetworkVisa {
		t.Fatalf("expected visa, got %s", order.Payment.CardNetwork)
	}
	if order.Totals.Total.StringFixed(2) != "108.00" {
		t.Fatalf("unexpected total %s", order.Totals.Total)
	}

	raw, err := json.Marshal(order)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "4242424242424242") || strings.Contains(string(raw), "4242 4242 4242 4242") || strings.Contains(string(raw), `"123"`) {
		t.Fatalf("serialized order leaks card data: %s", raw)
	}
}

func TestAssembleSnapshotsCart(t *testing.T) {
	a := newAssembler(t, 2)
	c := testCart()
	order, err := a.Assemble(c, testShipping(), payments.Selection{Method: enums.PaymentMethodPayPal}, payments.Result{TransactionID: "TXN_1_ABCDEFGHI"}, pricing.Compute(c.Subtotal()))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	c.Lines[0].Name = "changed"
	if order.Lines[0].Name != "Lamp" {
		t.Fatal("order lines should not alias the cart")
	}
	if order.Payment.MaskedNumber != "" || order.Payment.Summary() != "PayPal" {
		t.Fatalf("non-card payment should not carry card data: %+v", order.Payment)
	}
}

func TestAssembleSameMillisecondDistinctSeeds(t *testing.T) {
	c := testCart()
	totals := pricing.Compute(c.Subtotal())
	seen := map[string]struct{}{}
	for seed := int64(1); seed <= 300; seed++ {
		order, err := newAssembler(t, seed).Assemble(c, testShipping(), cardSelection(), payments.Result{TransactionID: "TXN_1_ABCDEFGHI"}, totals)
		if err != nil {
			t.Fatalf("assemble: %v", err)
		}
		if _, dup := seen[order.LocalID]; dup {
			t.Fatalf("duplicate order id %s", order.LocalID)
		}
		seen[order.LocalID] = struct{}{}
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestAssembleFailsWhenIDGenerationFails(t *testing.T) {
	a, err := NewAssembler(idgen.New(nil, brokenReader{}), nil)
	if err != nil {
		t.Fatalf("new assembler: %v", err)
	}
	c := testCart()
	_, err = a.Assemble(c, testShipping(), cardSelection(), payments.Result{TransactionID: "TXN_1_ABCDEFGHI"}, pricing.Compute(c.Subtotal()))
	if !errors.Is(err, ErrAssembly) {
		t.Fatalf("expected ErrAssembly, got %v", err)
	}
}

func TestReconciledKeepsLocalID(t *testing.T) {
	a := newAssembler(t, 3)
	c := testCart()
	order, err := a.Assemble(c, testShipping(), cardSelection(), payments.Result{TransactionID: "TXN_1_ABCDEFGHI"}, pricing.Compute(c.Subtotal()))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	reconciled := order.Reconciled("8c1f5e0e-6a0b-4a53-9d57-7a4b3fce8a10", "SF-260501-000042")
	if reconciled.ID() != "8c1f5e0e-6a0b-4a53-9d57-7a4b3fce8a10" || reconciled.LocalID != order.LocalID {
		t.Fatalf("unexpected reconciliation %+v", reconciled)
	}
	if order.CanonicalID != "" {
		t.Fatal("reconciliation must not mutate the original")
	}
}

func TestShippingValidateListsMissingFields(t *testing.T) {
	s := testShipping()
	s.City = " "
	s.Email = ""
	fields := FieldErrors(s.Validate())
	if len(fields) != 2 || fields["city"] == "" || fields["email"] == "" {
		t.Fatalf("unexpected field errors %v", fields)
	}
	if err := testShipping().Validate(); err != nil {
		t.Fatalf("complete shipping should pass: %v", err)
	}
	s = testShipping()
	s.Phone, s.Apartment = "", ""
	if err := s.Validate(); err != nil {
		t.Fatalf("optional fields should not be required: %v", err)
	}
}
