// Package lifecycle governs a persisted order after checkout: status
// transitions, cancellation and return eligibility, and return requests.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// ReturnWindow is measured from order creation.
const ReturnWindow = 30 * 24 * time.Hour

var (
	// ErrIllegalTransition rejects a status change the state machine does not allow.
	ErrIllegalTransition = errors.New("illegal transition")
	// ErrReturnAlreadyPending rejects a return while another is requested or approved.
	ErrReturnAlreadyPending = errors.New("return already pending")
)

var orderTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusProcessing: {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:  {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
}

var returnTransitions = map[enums.ReturnStatus][]enums.ReturnStatus{
	enums.ReturnStatusRequested: {enums.ReturnStatusApproved, enums.ReturnStatusRejected, enums.ReturnStatusCancelled},
	enums.ReturnStatusApproved:  {enums.ReturnStatusCompleted, enums.ReturnStatusCancelled},
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// CheckOrderTransition reports whether from -> to is a legal single step.
func CheckOrderTransition(from, to enums.OrderStatus) error {
	if contains(orderTransitions[from], to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

// CheckReturnTransition reports whether a return request may move from -> to.
func CheckReturnTransition(from, to enums.ReturnStatus) error {
	if contains(returnTransitions[from], to) {
		return nil
	}
	return fmt.Errorf("%w: return %s -> %s", ErrIllegalTransition, from, to)
}

// CanCancel is true while the order has not shipped.
func CanCancel(status enums.OrderStatus) bool {
	return status == enums.OrderStatusProcessing || status == enums.OrderStatusConfirmed
}

// CanReturn is true for delivered orders no older than ReturnWindow.
func CanReturn(status enums.OrderStatus, createdAt, now time.Time) bool {
	return status == enums.OrderStatusDelivered && now.Sub(createdAt) <= ReturnWindow
}

// Eligibility is the pair of customer actions currently open on an order.
type Eligibility struct {
	CanCancel bool `json:"can_cancel"`
	CanReturn bool `json:"can_return"`
}

// carrierTarget validates a carrier-asserted status and reports whether it is already current.
func carrierTarget(current, target enums.OrderStatus) (noop bool, err error) {
	if target != enums.OrderStatusShipped && target != enums.OrderStatusDelivered {
		return false, fmt.Errorf("%w: carrier cannot assert %s", ErrIllegalTransition, target)
	}
	if current == target {
		return true, nil
	}
	return false, CheckOrderTransition(current, target)
}
