package checkout

import (
	"context"
	"strings"
	"sync"

	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// ConfirmationTask is the asynchronous confirmation send started on Done.
type ConfirmationTask struct {
	OrderID string

	once   sync.Once
	done   chan struct{}
	status enums.EmailStatus
}

func newConfirmationTask(orderID string) *ConfirmationTask {
	return &ConfirmationTask{OrderID: orderID, done: make(chan struct{})}
}

func (t *ConfirmationTask) resolve(status enums.EmailStatus) {
	t.once.Do(func() {
		t.status = status
		close(t.done)
	})
}

// Done is closed once the send outcome is known.
func (t *ConfirmationTask) Done() <-chan struct{} {
	return t.done
}

// Wait returns the send outcome, or ctx.Err() if ctx ends first.
func (t *ConfirmationTask) Wait(ctx context.Context) (enums.EmailStatus, error) {
	select {
	case <-t.done:
		return t.status, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ConfirmationFlags mirror the confirmation view's query parameters. They
// report an outcome the caller already observed so no lookup or send is repeated.
type ConfirmationFlags struct {
	EmailSent   bool
	EmailFailed bool
}

// ConfirmationView is what the confirmation page renders.
type ConfirmationView struct {
	Order       orders.Order      `json:"order"`
	EmailStatus enums.EmailStatus `json:"email_status"`
}

func (s *service) Confirmation(ctx context.Context, clientID, orderID string, flags ConfirmationFlags) (*ConfirmationView, error) {
	if flags.EmailSent && flags.EmailFailed {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email_sent and email_failed are mutually exclusive")
	}
	order, err := s.findOrder(ctx, clientID, orderID)
	if err != nil {
		return nil, err
	}

	view := &ConfirmationView{Order: order}
	switch {
	case flags.EmailSent:
		view.EmailStatus = enums.EmailStatusSent
	case flags.EmailFailed:
		view.EmailStatus = enums.EmailStatusFailed
	default:
		status, err := s.confirmations.Status(ctx, order.ID())
		if err != nil {
			s.logg.WarnErr(s.logg.WithOrderID(ctx, order.ID()), "checkout.email_status_read_failed", err)
			status = enums.EmailStatusPending
		}
		view.EmailStatus = status
	}
	return view, nil
}

func (s *service) ResendConfirmation(ctx context.Context, clientID, orderID string) (*ConfirmationView, error) {
	order, err := s.findOrder(ctx, clientID, orderID)
	if err != nil {
		return nil, err
	}
	return &ConfirmationView{Order: order, EmailStatus: s.confirmations.Resend(ctx, order)}, nil
}

// findOrder resolves either identifier of an order in the client's local history.
func (s *service) findOrder(ctx context.Context, clientID, orderID string) (orders.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return orders.Order{}, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	list, err := s.GuestOrders(ctx, clientID)
	if err != nil {
		return orders.Order{}, err
	}
	for _, o := range list {
		if o.ID() == orderID || o.LocalID == orderID {
			return o, nil
		}
	}
	return orders.Order{}, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}
