package checkout

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/notifications"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/internal/persistence"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/idgen"
	"github.com/angelmondragon/storefront-checkout/pkg/sendgrid"
)

const clientID = "client-1"

type remoteStub struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *remoteStub) WriteOrder(context.Context, string, orders.Order) (persistence.RemoteReceipt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return persistence.RemoteReceipt{}, r.err
	}
	return persistence.RemoteReceipt{ID: "9e4c2a6e-0d8f-4a51-b3f4-6c1b9a7d2e10", OrderNumber: "SF-260501-000001"}, nil
}

type mailerStub struct {
	mu    sync.Mutex
	sends int
	err   error
}

func (m *mailerStub) Send(context.Context, sendgrid.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends++
	return "msg-1", m.err
}

type fixture struct {
	svc      Service
	carts    *cart.MemoryStore
	sessions *MemorySessionStore
	cache    *persistence.MemoryCache
	remote   *remoteStub
	mailer   *mailerStub
}

func newFixture(t *testing.T, wrapCarts ...func(cart.Provider) cart.Provider) *fixture {
	t.Helper()
	clock := func() time.Time { return time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC) }
	ids := idgen.New(clock, rand.New(rand.NewSource(7)))

	dispatcher, err := payments.NewDispatcher(payments.Options{Timeout: time.Second, IDs: ids})
	if err != nil {
		t.Fatalf("payments: %v", err)
	}
	assembler, err := orders.NewAssembler(ids, clock)
	if err != nil {
		t.Fatalf("assembler: %v", err)
	}
	f := &fixture{
		carts:    cart.NewMemoryStore(),
		sessions: NewMemorySessionStore(),
		cache:    persistence.NewMemoryCache(0),
		remote:   &remoteStub{},
		mailer:   &mailerStub{},
	}
	coordinator, err := persistence.NewCoordinator(f.remote, f.cache, nil, nil)
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}
	sender, _ := notifications.NewDispatcher(f.mailer, nil, nil)
	confirmations, _ := notifications.NewConfirmations(sender, notifications.NewMemoryTracker(), nil)

	var carts cart.Provider = f.carts
	for _, wrap := range wrapCarts {
		carts = wrap(carts)
	}
	f.svc, err = NewService(ServiceParams{
		Carts:         carts,
		Sessions:      f.sessions,
		Payments:      dispatcher,
		Assembler:     assembler,
		Persistence:   coordinator,
		Confirmations: confirmations,
		LocalOrders:   f.cache,
		Now:           clock,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	if err := f.carts.Replace(context.Background(), clientID, cart.Cart{Lines: []cart.Line{
		{ProductRef: "sku-1", Name: "Lamp", UnitPrice: decimal.RequireFromString("60.00"), Quantity: 1},
		{ProductRef: "sku-2", Name: "Shade", UnitPrice: decimal.RequireFromString("20.00"), Quantity: 2},
	}}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	return f
}

func shipping() orders.ShippingInfo {
	return orders.ShippingInfo{
		FirstName: "Jane", LastName: "Doe", Email: "jane@example.com",
		Street: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701", Country: "US",
	}
}

func card(number string) payments.Selection {
	return payments.Selection{
		Method: enums.PaymentMethodCard,
		Card:   &payments.CardDetails{Number: number, Expiry: "12/29", CVV: "123", Name: "Jane Doe"},
	}
}

func (f *fixture) toPayment(t *testing.T) Session {
	t.Helper()
	ctx := context.Background()
	s, err := f.svc.Start(ctx, clientID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	s, err = f.svc.SubmitShipping(ctx, clientID, s.ID, shipping())
	if err != nil {
		t.Fatalf("shipping: %v", err)
	}
	if s.Step != enums.CheckoutStepPayment {
		t.Fatalf("expected payment step, got %s", s.Step)
	}
	return s
}

func TestCheckoutHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	started, err := f.svc.Start(ctx, clientID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Step != enums.CheckoutStepShipping {
		t.Fatalf("expected shipping step, got %s", started.Step)
	}
	if started.Totals.Subtotal.StringFixed(2) != "100.00" || started.Totals.Tax.StringFixed(2) != "8.00" ||
		started.Totals.Shipping.StringFixed(2) != "0.00" || started.Totals.Total.StringFixed(2) != "108.00" {
		t.Fatalf("unexpected totals %+v", started.Totals)
	}

	s, err := f.svc.SubmitShipping(ctx, clientID, started.ID, shipping())
	if err != nil {
		t.Fatalf("shipping: %v", err)
	}

	res, err := f.svc.SubmitPayment(ctx, PaymentInput{ClientID: clientID, SessionID: s.ID, SessionToken: "jwt", Selection: card("4242424242424242")})
	if err != nil {
		t.Fatalf("submit payment: %v", err)
	}
	if res.Session.Step != enums.CheckoutStepDone {
		t.Fatalf("expected done, got %s", res.Session.Step)
	}
	if res.Order.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", res.Order.Status)
	}
	if res.Order.Payment.MaskedNumber != "**** **** **** 4242" || res.Order.Payment.CardNetwork != enums.CardNetworkVisa {
		t.Fatalf("unexpected payment %+v", res.Order.Payment)
	}
	if !res.RemoteWriteSucceeded || res.OrderID != "9e4c2a6e-0d8f-4a51-b3f4-6c1b9a7d2e10" {
		t.Fatalf("expected canonical id from remote, got %+v", res)
	}
	if res.Redirect != "/checkout/confirmation/9e4c2a6e-0d8f-4a51-b3f4-6c1b9a7d2e10" {
		t.Fatalf("unexpected redirect %q", res.Redirect)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	status, err := res.Confirmation.Wait(waitCtx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if status != enums.EmailStatusSent && status != enums.EmailStatusFailed {
		t.Fatalf("email status must be sent or failed, got %q", status)
	}

	if c, _ := f.carts.Current(ctx, clientID); !c.IsEmpty() {
		t.Fatal("cart should be cleared after done")
	}
	if f.carts.Removals(clientID) != 1 {
		t.Fatalf("cart should be cleared exactly once, got %d", f.carts.Removals(clientID))
	}

	view, err := f.svc.Confirmation(ctx, clientID, res.OrderID, ConfirmationFlags{})
	if err != nil {
		t.Fatalf("confirmation: %v", err)
	}
	if view.EmailStatus != status || view.Order.ID() != res.OrderID {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestCheckoutDeclinedCardKeepsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.toPayment(t)

	_, err := f.svc.SubmitPayment(ctx, PaymentInput{ClientID: clientID, SessionID: s.ID, SessionToken: "jwt", Selection: card("4000000000000002")})
	if !pkgerrors.IsCode(err, pkgerrors.CodePayment) {
		t.Fatalf("expected payment error, got %v", err)
	}
	var pe *payments.Error
	if !errors.As(err, &pe) || pe.Kind != payments.KindCardDeclined {
		t.Fatalf("expected card declined, got %v", err)
	}

	c, _ := f.carts.Current(ctx, clientID)
	if len(c.Lines) != 2 || f.carts.Removals(clientID) != 0 {
		t.Fatal("cart must stay intact after a failed payment")
	}
	if f.remote.calls != 0 || f.mailer.sends != 0 {
		t.Fatalf("no persistence or email expected, got remote=%d mail=%d", f.remote.calls, f.mailer.sends)
	}
	if list, _ := f.cache.List(ctx, clientID); len(list) != 0 {
		t.Fatalf("no order should be cached, got %d", len(list))
	}

	got, _ := f.svc.Get(ctx, clientID, s.ID)
	if got.Step != enums.CheckoutStepPayment || got.LastError == nil || got.LastError.Kind != payments.KindCardDeclined {
		t.Fatalf("session should return to payment with the failure, got %+v", got)
	}

	res, err := f.svc.SubmitPayment(ctx, PaymentInput{ClientID: clientID, SessionID: s.ID, Selection: card("4242424242424242")})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.RemoteWriteSucceeded || !strings.HasPrefix(res.OrderID, "ORD_") {
		t.Fatalf("guest retry should keep the local id, got %+v", res)
	}
	if err := f.svc.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestCheckoutInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	s := f.toPayment(t)
	_, err := f.svc.SubmitPayment(context.Background(), PaymentInput{ClientID: clientID, SessionID: s.ID, Selection: card("4000 0000 0000 0341")})
	var pe *payments.Error
	if !errors.As(err, &pe) || pe.Kind != payments.KindInsufficientFunds {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestCheckoutInvalidCardFailsBeforeSubmitting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.toPayment(t)

	sel := card("4242424242424242")
	sel.Card.Expiry = "1229"
	_, err := f.svc.SubmitPayment(ctx, PaymentInput{ClientID: clientID, SessionID: s.ID, Selection: sel})
	var pe *payments.Error
	if !errors.As(err, &pe) || pe.Kind != payments.KindInvalidInput || pe.Field != payments.FieldExpiry {
		t.Fatalf("expected invalid expiry, got %v", err)
	}
	got, _ := f.svc.Get(ctx, clientID, s.ID)
	if got.Step != enums.CheckoutStepPayment {
		t.Fatalf("expected payment step, got %s", got.Step)
	}
}

func TestCheckoutRemoteFailureStillCompletes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.remote.err = errors.New("503")
	s := f.toPayment(t)

	res, err := f.svc.SubmitPayment(ctx, PaymentInput{ClientID: clientID, SessionID: s.ID, SessionToken: "jwt", Selection: payments.Selection{Method: enums.PaymentMethodPayPal}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.RemoteWriteSucceeded || res.OrderID != res.Order.LocalID {
		t.Fatalf("expected local fallback, got %+v", res)
	}
	list, _ := f.svc.GuestOrders(ctx, clientID)
	if len(list) != 1 || list[0].ID() != res.OrderID {
		t.Fatalf("expected one guest order, got %+v", list)
	}
	_ = f.svc.Wait(ctx)
}

func TestShippingValidationAndBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s, _ := f.svc.Start(ctx, clientID)

	incomplete := shipping()
	incomplete.PostalCode = ""
	_, err := f.svc.SubmitShipping(ctx, clientID, s.ID, incomplete)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, _ := pkgerrors.As(err).Details().(map[string]any)
	fields, _ := details["fields"].(map[string]string)
	if fields["postal_code"] == "" {
		t.Fatalf("expected postal_code field error, got %v", details)
	}

	if _, err := f.svc.SubmitPayment(ctx, PaymentInput{ClientID: clientID, SessionID: s.ID, Selection: card("4242424242424242")}); !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("payment before shipping should conflict, got %v", err)
	}

	s, err = f.svc.SubmitShipping(ctx, clientID, s.ID, shipping())
	if err != nil {
		t.Fatalf("shipping: %v", err)
	}
	back, err := f.svc.Back(ctx, clientID, s.ID)
	if err != nil || back.Step != enums.CheckoutStepShipping {
		t.Fatalf("expected back to shipping, got %+v err=%v", back, err)
	}
	if f.carts.Removals(clientID) != 0 {
		t.Fatal("going back must not touch the cart")
	}
}

func TestSubmitLockRejectsConcurrentSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := f.toPayment(t)

	release, err := f.sessions.AcquireSubmitLock(ctx, s.ID)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	_, err = f.svc.SubmitPayment(ctx, PaymentInput{ClientID: clientID, SessionID: s.ID, Selection: card("4242424242424242")})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	release()

	if _, err := f.svc.SubmitPayment(ctx, PaymentInput{ClientID: clientID, SessionID: s.ID, Selection: card("4242424242424242")}); err != nil {
		t.Fatalf("submit after release: %v", err)
	}
	if _, err := f.svc.SubmitPayment(ctx, PaymentInput{ClientID: clientID, SessionID: s.ID, Selection: card("4242424242424242")}); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("second completion should conflict, got %v", err)
	}
	_ = f.svc.Wait(ctx)
}

func TestStartRejectsEmptyCartAndForeignSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	if _, err := f.svc.Start(ctx, "nobody"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for empty cart, got %v", err)
	}
	s, _ := f.svc.Start(ctx, clientID)
	if _, err := f.svc.Get(ctx, "someone-else", s.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConfirmationFlags(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.mailer.err = errors.New("down")
	s := f.toPayment(t)
	res, err := f.svc.SubmitPayment(ctx, PaymentInput{ClientID: clientID, SessionID: s.ID, Selection: card("4242424242424242")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if status, _ := res.Confirmation.Wait(ctx); status != enums.EmailStatusFailed {
		t.Fatalf("expected failed email, got %s", status)
	}

	if _, err := f.svc.Confirmation(ctx, clientID, res.OrderID, ConfirmationFlags{EmailSent: true, EmailFailed: true}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("both flags should be rejected, got %v", err)
	}
	view, _ := f.svc.Confirmation(ctx, clientID, res.OrderID, ConfirmationFlags{EmailSent: true})
	if view.EmailStatus != enums.EmailStatusSent {
		t.Fatalf("flag should short-circuit lookup, got %s", view.EmailStatus)
	}

	f.mailer.err = nil
	view, err = f.svc.ResendConfirmation(ctx, clientID, res.OrderID)
	if err != nil || view.EmailStatus != enums.EmailStatusSent {
		t.Fatalf("resend should succeed, got %+v err=%v", view, err)
	}
	if f.mailer.sends != 2 {
		t.Fatalf("expected two sends, got %d", f.mailer.sends)
	}
	if _, err := f.svc.Confirmation(ctx, clientID, "ORD_0_NOPE00", ConfirmationFlags{}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// secondTab adds a line to the stored cart right after checkout snapshots it.
type secondTab struct {
	cart.Provider
	store *cart.MemoryStore
	armed bool
}

func (s *secondTab) Current(ctx context.Context, clientID string) (cart.Cart, error) {
	c, err := s.Provider.Current(ctx, clientID)
	if err != nil || !s.armed {
		return c, err
	}
	s.armed = false
	added := cart.Cart{Lines: append(c.Snapshot(), cart.Line{ProductRef: "sku-3", Name: "Bulb", UnitPrice: decimal.RequireFromString("5.00"), Quantity: 4})}
	return c, s.store.Replace(ctx, clientID, added)
}

func TestCheckoutKeepsLinesAddedDuringSettlement(t *testing.T) {
	ctx := context.Background()
	tab := &secondTab{}
	f := newFixture(t, func(p cart.Provider) cart.Provider {
		tab.Provider = p
		return tab
	})
	tab.store = f.carts
	s := f.toPayment(t)

	tab.armed = true
	res, err := f.svc.SubmitPayment(ctx, PaymentInput{ClientID: clientID, SessionID: s.ID, SessionToken: "jwt", Selection: card("4242424242424242")})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := f.svc.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	if len(res.Order.Lines) != 2 {
		t.Fatalf("order should hold the snapshotted lines only, got %+v", res.Order.Lines)
	}
	left, _ := f.carts.Current(ctx, clientID)
	if len(left.Lines) != 1 || left.Lines[0].ProductRef != "sku-3" || left.Lines[0].Quantity != 4 {
		t.Fatalf("line added during settlement should stay in the cart, got %+v", left.Lines)
	}
}
