package orderstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-checkout/internal/repo/repotest"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	orderapi "github.com/angelmondragon/storefront-checkout/pkg/orderstore"
	"github.com/angelmondragon/storefront-checkout/pkg/pagination"
)

type sequenceNumbers struct {
	values []string
	calls  int
}

func (s *sequenceNumbers) OrderNumber() (string, error) {
	v := s.values[s.calls%len(s.values)]
	s.calls++
	return v, nil
}

var fixedNow = time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T, numbers orderNumbers) Service {
	t.Helper()
	client := repotest.NewClient(t)
	svc, err := NewService(client, NewRepository(client.DB()), numbers, nil, func() time.Time { return fixedNow })
	require.NoError(t, err)
	return svc
}

func validRequest(clientOrderID string) orderapi.CreateOrderRequest {
	return orderapi.CreateOrderRequest{
		ClientOrderID: clientOrderID,
		Status:        "confirmed",
		Lines: []orderapi.LineItem{
			{ProductRef: "sku-1", Name: "Lamp", UnitPrice: decimal.RequireFromString("60.00"), Quantity: 1},
			{ProductRef: "sku-2", Name: "Shade", UnitPrice: decimal.RequireFromString("20.00"), Quantity: 2, Variant: "white"},
		},
		Totals: orderapi.Totals{
			Subtotal: decimal.RequireFromString("100.00"),
			Tax:      decimal.RequireFromString("8.00"),
			Shipping: decimal.Zero,
			Total:    decimal.RequireFromString("108.00"),
		},
		Shipping: orderapi.Shipping{
			FirstName: "Jane", LastName: "Doe", Email: "jane@example.com",
			Street: "1 Main St", City: "Springfield", State: "IL", PostalCode: "62701", Country: "US",
		},
		Payment: orderapi.Payment{
			Method: "card", Status: "paid", TransactionID: "TXN_1_ABCDEFGHI",
			PaidAt: fixedNow, CardLast4: "4242", CardNetwork: "visa",
		},
		EstimatedDelivery: fixedNow.Add(5 * 24 * time.Hour),
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &sequenceNumbers{values: []string{"SF-260501-000001"}})
	userID := uuid.New()

	res, err := svc.Create(ctx, userID, validRequest("ORD_1_AAAAAA"))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "SF-260501-000001", res.Order.OrderNumber)
	assert.Equal(t, enums.OrderStatusConfirmed, res.Order.Status)
	assert.Equal(t, "108.00", res.Order.Totals.Total)

	id, err := uuid.Parse(res.Order.ID)
	require.NoError(t, err)

	got, err := svc.Get(ctx, userID, id)
	require.NoError(t, err)
	require.Len(t, got.Lines, 2)
	assert.Equal(t, "Lamp", got.Lines[0].Name)
	assert.Equal(t, "20.00", got.Lines[1].UnitPrice)
	assert.Equal(t, "white", got.Lines[1].Variant)
	assert.Equal(t, "4242", got.Payment.CardLast4)
	assert.Equal(t, "visa", got.Payment.CardNetwork)
	assert.True(t, got.CreatedAt.Equal(fixedNow))

	_, err = svc.Get(ctx, uuid.New(), id)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "other users must not see the order")
}

func TestCreateIsIdempotentOnClientOrderID(t *testing.T) {
	ctx := context.Background()
	numbers := &sequenceNumbers{values: []string{"SF-260501-000001", "SF-260501-000002"}}
	svc := newTestService(t, numbers)
	userID := uuid.New()

	first, err := svc.Create(ctx, userID, validRequest("ORD_1_AAAAAA"))
	require.NoError(t, err)
	second, err := svc.Create(ctx, userID, validRequest("ORD_1_AAAAAA"))
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, first.Order.OrderNumber, second.Order.OrderNumber)

	page, err := svc.List(ctx, userID, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, page.Orders, 1)
	assert.Empty(t, page.NextCursor)
}

func TestCreateRetriesOrderNumberCollisions(t *testing.T) {
	ctx := context.Background()
	numbers := &sequenceNumbers{values: []string{"SF-260501-000001", "SF-260501-000001", "SF-260501-000002"}}
	svc := newTestService(t, numbers)
	userID := uuid.New()

	_, err := svc.Create(ctx, userID, validRequest("ORD_1_AAAAAA"))
	require.NoError(t, err)

	res, err := svc.Create(ctx, userID, validRequest("ORD_2_BBBBBB"))
	require.NoError(t, err)
	assert.Equal(t, "SF-260501-000002", res.Order.OrderNumber)
	assert.Equal(t, 3, numbers.calls)
}

func TestCreateGivesUpAfterRepeatedCollisions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &sequenceNumbers{values: []string{"SF-260501-000001"}})
	userID := uuid.New()

	_, err := svc.Create(ctx, userID, validRequest("ORD_1_AAAAAA"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, userID, validRequest("ORD_2_BBBBBB"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict), "got %v", err)
}

func TestCreateRejectsInconsistentRequests(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &sequenceNumbers{values: []string{"SF-260501-000001"}})
	userID := uuid.New()

	cases := map[string]func(r *orderapi.CreateOrderRequest){
		"tax":            func(r *orderapi.CreateOrderRequest) { r.Totals.Tax = decimal.RequireFromString("7.99") },
		"subtotal":       func(r *orderapi.CreateOrderRequest) { r.Lines[0].Quantity = 3 },
		"status":         func(r *orderapi.CreateOrderRequest) { r.Status = "shipped" },
		"payment status": func(r *orderapi.CreateOrderRequest) { r.Payment.Status = "failed" },
		"no lines":       func(r *orderapi.CreateOrderRequest) { r.Lines = nil },
	}
	for name, mutate := range cases {
		req := validRequest(fmt.Sprintf("ORD_%s", name))
		mutate(&req)
		_, err := svc.Create(ctx, userID, req)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%s: expected validation error, got %v", name, err)
	}

	_, err := svc.Create(ctx, uuid.Nil, validRequest("ORD_1_AAAAAA"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	client := repotest.NewClient(t)
	clock := fixedNow
	numbers := &sequenceNumbers{values: []string{"SF-1", "SF-2", "SF-3"}}
	svc, err := NewService(client, NewRepository(client.DB()), numbers, nil, func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})
	require.NoError(t, err)
	userID := uuid.New()

	for i := 1; i <= 3; i++ {
		_, err := svc.Create(ctx, userID, validRequest(fmt.Sprintf("ORD_%d_AAAAAA", i)))
		require.NoError(t, err)
	}
	first, err := svc.List(ctx, userID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	assert.Equal(t, "ORD_3_AAAAAA", first.Orders[0].ClientOrderID)
	assert.Equal(t, "ORD_2_AAAAAA", first.Orders[1].ClientOrderID)
	require.NotEmpty(t, first.NextCursor)

	second, err := svc.List(ctx, userID, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 1)
	assert.Equal(t, "ORD_1_AAAAAA", second.Orders[0].ClientOrderID)
	assert.Empty(t, second.NextCursor)

	_, err = svc.List(ctx, userID, pagination.Params{Cursor: "not a cursor"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
