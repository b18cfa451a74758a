package persistence

import (
	"context"

	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/pkg/orderstore"
)

type orderCreator interface {
	CreateOrder(ctx context.Context, sessionToken string, req orderstore.CreateOrderRequest) (orderstore.CreateOrderResponse, error)
}

// OrderStoreWriter adapts the order store client to RemoteWriter.
type OrderStoreWriter struct {
	client orderCreator
}

func NewOrderStoreWriter(client orderCreator) *OrderStoreWriter {
	return &OrderStoreWriter{client: client}
}

func (w *OrderStoreWriter) WriteOrder(ctx context.Context, sessionToken string, order orders.Order) (RemoteReceipt, error) {
	resp, err := w.client.CreateOrder(ctx, sessionToken, ToCreateRequest(order))
	if err != nil {
		return RemoteReceipt{}, err
	}
	return RemoteReceipt{ID: resp.ID, OrderNumber: resp.OrderNumber}, nil
}

// ToCreateRequest maps an assembled order onto the order store's write shape.
func ToCreateRequest(order orders.Order) orderstore.CreateOrderRequest {
	lines := make([]orderstore.LineItem, 0, len(order.Lines))
	for _, l := range order.Lines {
		lines = append(lines, orderstore.LineItem{
			ProductRef: l.ProductRef,
			Name:       l.Name,
			UnitPrice:  l.UnitPrice,
			Quantity:   l.Quantity,
			ImageRef:   l.ImageRef,
			Variant:    l.Variant,
		})
	}
	s := order.Shipping
	p := order.Payment
	return orderstore.CreateOrderRequest{
		ClientOrderID: order.LocalID,
		Status:        order.Status.String(),
		Lines:         lines,
		Totals: orderstore.Totals{
			Subtotal: order.Totals.Subtotal,
			Tax:      order.Totals.Tax,
			Shipping: order.Totals.Shipping,
			Total:    order.Totals.Total,
		},
		Shipping: orderstore.Shipping{
			FirstName: s.FirstName, LastName: s.LastName, Email: s.Email, Phone: s.Phone,
			Street: s.Street, Apartment: s.Apartment, City: s.City, State: s.State,
			PostalCode: s.PostalCode, Country: s.Country,
		},
		Payment: orderstore.Payment{
			Method:        p.Method.String(),
			Status:        p.Status.String(),
			TransactionID: p.TransactionID,
			PaidAt:        p.PaidAt,
			CardLast4:     p.CardLast4,
			CardNetwork:   string(p.CardNetwork),
		},
		CreatedAt:         order.CreatedAt,
		EstimatedDelivery: order.EstimatedDelivery,
	}
}
