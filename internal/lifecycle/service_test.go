package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/internal/repo/repotest"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

var created = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	client *db.Client
	svc    Service
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{client: repotest.NewClient(t), now: created.Add(24 * time.Hour)}
	svc, err := NewService(f.client, NewRepository(f.client.DB()), nil, func() time.Time { return f.now })
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) seedOrder(t *testing.T, userID uuid.UUID, status enums.OrderStatus) uuid.UUID {
	t.Helper()
	id := uuid.New()
	order := models.Order{
		ID:                id,
		UserID:            userID,
		ClientOrderID:     "ORD_" + id.String()[:8],
		OrderNumber:       "SF-" + id.String()[:8],
		Status:            status,
		SubtotalCents:     10000,
		TaxCents:          800,
		TotalCents:        10800,
		ShipFirstName:     "Jane",
		ShipLastName:      "Doe",
		ShipEmail:         "jane@example.com",
		ShipStreet:        "1 Main St",
		ShipCity:          "Springfield",
		ShipState:         "IL",
		ShipPostalCode:    "62701",
		ShipCountry:       "US",
		PaymentMethod:     enums.PaymentMethodCard,
		PaymentStatus:     enums.PaymentStatusPaid,
		TransactionID:     "TXN_1_ABCDEFGHI",
		PaidAt:            created,
		EstimatedDelivery: created.Add(5 * 24 * time.Hour),
		CreatedAt:         created,
		UpdatedAt:         created,
	}
	require.NoError(t, f.client.DB().Create(&order).Error)
	return id
}

func (f *fixture) status(t *testing.T, orderID uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, f.client.DB().Where("id = ?", orderID).First(&order).Error)
	return order
}

func TestCancelUnshippedOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	orderID := f.seedOrder(t, userID, enums.OrderStatusConfirmed)

	view, err := f.svc.Cancel(ctx, userID, orderID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, view.Status)

	stored := f.status(t, orderID)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	require.NotNil(t, stored.CancelledAt)
	assert.True(t, stored.CancelledAt.Equal(f.now))

	_, err = f.svc.Cancel(ctx, userID, orderID)
	assert.True(t, errors.Is(err, ErrIllegalTransition), "cancelling twice must fail, got %v", err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestCancelShippedOrderFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	orderID := f.seedOrder(t, userID, enums.OrderStatusShipped)

	_, err := f.svc.Cancel(ctx, userID, orderID)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Equal(t, enums.OrderStatusShipped, f.status(t, orderID).Status)
}

func TestCancelForeignOrderIsNotFound(t *testing.T) {
	f := newFixture(t)
	orderID := f.seedOrder(t, uuid.New(), enums.OrderStatusConfirmed)

	_, err := f.svc.Cancel(context.Background(), uuid.New(), orderID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCarrierStatusProgression(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	orderID := f.seedOrder(t, uuid.New(), enums.OrderStatusConfirmed)

	_, err := f.svc.AssertCarrierStatus(ctx, orderID, enums.OrderStatusDelivered)
	require.True(t, errors.Is(err, ErrIllegalTransition), "skipping shipped must fail, got %v", err)

	view, err := f.svc.AssertCarrierStatus(ctx, orderID, enums.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, view.Status)
	require.NotNil(t, f.status(t, orderID).ShippedAt)

	_, err = f.svc.AssertCarrierStatus(ctx, orderID, enums.OrderStatusShipped)
	require.NoError(t, err, "re-asserting shipped is a no-op")

	f.now = f.now.Add(48 * time.Hour)
	_, err = f.svc.AssertCarrierStatus(ctx, orderID, enums.OrderStatusDelivered)
	require.NoError(t, err)
	stored := f.status(t, orderID)
	assert.Equal(t, enums.OrderStatusDelivered, stored.Status)
	require.NotNil(t, stored.DeliveredAt)
	assert.True(t, stored.DeliveredAt.Equal(f.now))
}

func TestEligibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	delivered := f.seedOrder(t, userID, enums.OrderStatusDelivered)

	got, err := f.svc.Eligibility(ctx, userID, delivered)
	require.NoError(t, err)
	assert.Equal(t, Eligibility{CanCancel: false, CanReturn: true}, *got)

	f.now = created.Add(ReturnWindow + time.Second)
	got, err = f.svc.Eligibility(ctx, userID, delivered)
	require.NoError(t, err)
	assert.False(t, got.CanReturn)
}

func TestRequestReturnDeduplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	orderID := f.seedOrder(t, userID, enums.OrderStatusDelivered)

	first, err := f.svc.RequestReturn(ctx, ReturnInput{UserID: userID, OrderID: orderID, Reason: " too small "})
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusRequested, first.Status)
	assert.Equal(t, "too small", first.Reason)

	_, err = f.svc.RequestReturn(ctx, ReturnInput{UserID: userID, OrderID: orderID})
	assert.True(t, errors.Is(err, ErrReturnAlreadyPending), "got %v", err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	returnID := uuid.MustParse(first.ID)
	_, err = f.svc.ResolveReturn(ctx, returnID, enums.ReturnStatusApproved)
	require.NoError(t, err)
	_, err = f.svc.RequestReturn(ctx, ReturnInput{UserID: userID, OrderID: orderID})
	assert.True(t, errors.Is(err, ErrReturnAlreadyPending), "approved returns still block, got %v", err)

	completed, err := f.svc.ResolveReturn(ctx, returnID, enums.ReturnStatusCompleted)
	require.NoError(t, err)
	require.NotNil(t, completed.ResolvedAt)

	second, err := f.svc.RequestReturn(ctx, ReturnInput{UserID: userID, OrderID: orderID})
	require.NoError(t, err)

	list, err := f.svc.ListReturns(ctx, userID, orderID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{first.ID, second.ID}, ids)
}

func TestRequestReturnOutsideWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	orderID := f.seedOrder(t, userID, enums.OrderStatusDelivered)
	f.now = created.Add(ReturnWindow + time.Second)

	_, err := f.svc.RequestReturn(ctx, ReturnInput{UserID: userID, OrderID: orderID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	list, err := f.svc.ListReturns(ctx, userID, orderID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRequestReturnRequiresDelivery(t *testing.T) {
	f := newFixture(t)
	userID := uuid.New()
	orderID := f.seedOrder(t, userID, enums.OrderStatusShipped)

	_, err := f.svc.RequestReturn(context.Background(), ReturnInput{UserID: userID, OrderID: orderID})
	assert.True(t, errors.Is(err, ErrIllegalTransition))
}

func TestCancelReturn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	orderID := f.seedOrder(t, userID, enums.OrderStatusDelivered)

	rr, err := f.svc.RequestReturn(ctx, ReturnInput{UserID: userID, OrderID: orderID})
	require.NoError(t, err)
	returnID := uuid.MustParse(rr.ID)

	_, err = f.svc.CancelReturn(ctx, uuid.New(), orderID, returnID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "other users cannot cancel, got %v", err)

	cancelled, err := f.svc.CancelReturn(ctx, userID, orderID, returnID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReturnStatusCancelled, cancelled.Status)

	_, err = f.svc.CancelReturn(ctx, userID, orderID, returnID)
	assert.True(t, errors.Is(err, ErrIllegalTransition))

	_, err = f.svc.RequestReturn(ctx, ReturnInput{UserID: userID, OrderID: orderID})
	require.NoError(t, err, "a cancelled return no longer blocks")
}

func TestResolveReturnRejectsCustomerStatuses(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ResolveReturn(context.Background(), uuid.New(), enums.ReturnStatusCancelled)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.ResolveReturn(context.Background(), uuid.New(), enums.ReturnStatusApproved)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

// interleavedRepo commits a competing status change right after the service
// reads the order, before its own write lands.
type interleavedRepo struct {
	Repository
	tx      *gorm.DB
	once    *sync.Once
	compete enums.OrderStatus
}

func (r *interleavedRepo) WithTx(tx *gorm.DB) Repository {
	return &interleavedRepo{Repository: r.Repository.WithTx(tx), tx: tx, once: r.once, compete: r.compete}
}

func (r *interleavedRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := r.Repository.FindOrder(ctx, orderID)
	if err != nil || r.tx == nil {
		return order, err
	}
	r.once.Do(func() {
		err = r.tx.Exec(`UPDATE orders SET status = ? WHERE id = ?`, r.compete, orderID).Error
	})
	return order, err
}

func newInterleavedFixture(t *testing.T, compete enums.OrderStatus) *fixture {
	t.Helper()
	f := &fixture{client: repotest.NewClient(t), now: created.Add(24 * time.Hour)}
	r := &interleavedRepo{Repository: NewRepository(f.client.DB()), once: &sync.Once{}, compete: compete}
	svc, err := NewService(f.client, r, nil, func() time.Time { return f.now })
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestCancelLosesToConcurrentShipment(t *testing.T) {
	f := newInterleavedFixture(t, enums.OrderStatusShipped)
	userID := uuid.New()
	orderID := f.seedOrder(t, userID, enums.OrderStatusConfirmed)

	_, err := f.svc.Cancel(context.Background(), userID, orderID)
	require.True(t, errors.Is(err, ErrIllegalTransition), "got %v", err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Equal(t, enums.OrderStatusShipped, pkgerrors.As(err).Details().(map[string]any)["from"])

	stored := f.status(t, orderID)
	assert.Equal(t, enums.OrderStatusShipped, stored.Status)
	assert.Nil(t, stored.CancelledAt)
}

func TestShipmentLosesToConcurrentCancel(t *testing.T) {
	f := newInterleavedFixture(t, enums.OrderStatusCancelled)
	orderID := f.seedOrder(t, uuid.New(), enums.OrderStatusConfirmed)

	_, err := f.svc.AssertCarrierStatus(context.Background(), orderID, enums.OrderStatusShipped)
	require.True(t, errors.Is(err, ErrIllegalTransition), "got %v", err)

	stored := f.status(t, orderID)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.Nil(t, stored.ShippedAt)
}

// untilSettled retries fn while sqlite reports lock contention, returning the
// first error that is a business outcome.
func untilSettled(fn func() error, settled func(error) bool) error {
	var err error
	for attempt := 0; attempt < 200; attempt++ {
		if err = fn(); err == nil || settled(err) {
			return err
		}
		time.Sleep(2 * time.Millisecond)
	}
	return err
}

func TestConcurrentCancelAndShipmentHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	orderID := f.seedOrder(t, userID, enums.OrderStatusConfirmed)
	illegalOutcome := func(err error) bool { return errors.Is(err, ErrIllegalTransition) }

	var wg sync.WaitGroup
	start := make(chan struct{})
	var cancelErr, shipErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		cancelErr = untilSettled(func() error {
			_, err := f.svc.Cancel(ctx, userID, orderID)
			return err
		}, illegalOutcome)
	}()
	go func() {
		defer wg.Done()
		<-start
		shipErr = untilSettled(func() error {
			_, err := f.svc.AssertCarrierStatus(ctx, orderID, enums.OrderStatusShipped)
			return err
		}, illegalOutcome)
	}()
	close(start)
	wg.Wait()

	stored := f.status(t, orderID)
	switch {
	case cancelErr == nil:
		assert.True(t, errors.Is(shipErr, ErrIllegalTransition), "got %v", shipErr)
		assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
		assert.Nil(t, stored.ShippedAt)
	case shipErr == nil:
		assert.True(t, errors.Is(cancelErr, ErrIllegalTransition), "got %v", cancelErr)
		assert.Equal(t, enums.OrderStatusShipped, stored.Status)
		assert.Nil(t, stored.CancelledAt)
	default:
		t.Fatalf("expected one winner, got cancel=%v ship=%v", cancelErr, shipErr)
	}
}

func TestConcurrentReturnRequestsOpenOneReturn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := uuid.New()
	orderID := f.seedOrder(t, userID, enums.OrderStatusDelivered)
	pending := func(err error) bool { return errors.Is(err, ErrReturnAlreadyPending) }

	const callers = 4
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = untilSettled(func() error {
				_, err := f.svc.RequestReturn(ctx, ReturnInput{UserID: userID, OrderID: orderID})
				return err
			}, pending)
		}(i)
	}
	close(start)
	wg.Wait()

	opened := 0
	for _, err := range errs {
		if err == nil {
			opened++
			continue
		}
		assert.True(t, errors.Is(err, ErrReturnAlreadyPending), "got %v", err)
	}
	assert.Equal(t, 1, opened)

	list, err := f.svc.ListReturns(ctx, userID, orderID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
