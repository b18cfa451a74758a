package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/internal/orderstore"
	"github.com/angelmondragon/storefront-checkout/internal/repo"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service applies lifecycle rules to persisted orders.
type Service interface {
	Eligibility(ctx context.Context, userID, orderID uuid.UUID) (*Eligibility, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*orderstore.OrderView, error)
	AssertCarrierStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*orderstore.OrderView, error)
	RequestReturn(ctx context.Context, input ReturnInput) (*ReturnView, error)
	ListReturns(ctx context.Context, userID, orderID uuid.UUID) ([]ReturnView, error)
	CancelReturn(ctx context.Context, userID, orderID, returnID uuid.UUID) (*ReturnView, error)
	ResolveReturn(ctx context.Context, returnID uuid.UUID, status enums.ReturnStatus) (*ReturnView, error)
}

// ReturnInput is a customer's return request for one of their orders.
type ReturnInput struct {
	UserID  uuid.UUID
	OrderID uuid.UUID
	Reason  string
}

// ReturnView is the API representation of a return request.
type ReturnView struct {
	ID         string             `json:"id"`
	OrderID    string             `json:"order_id"`
	Status     enums.ReturnStatus `json:"status"`
	Reason     string             `json:"reason,omitempty"`
	ResolvedAt *time.Time         `json:"resolved_at,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

func toReturnView(rr models.ReturnRequest) ReturnView {
	v := ReturnView{
		ID:         rr.ID.String(),
		OrderID:    rr.OrderID.String(),
		Status:     rr.Status,
		ResolvedAt: rr.ResolvedAt,
		CreatedAt:  rr.CreatedAt,
		UpdatedAt:  rr.UpdatedAt,
	}
	if rr.Reason != nil {
		v.Reason = *rr.Reason
	}
	return v
}

type service struct {
	tx   txRunner
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(tx txRunner, repository Repository, logg *logger.Logger, now func() time.Time) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repository == nil {
		return nil, fmt.Errorf("lifecycle repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &service{tx: tx, repo: repository, logg: logg, now: now}, nil
}

func (s *service) Eligibility(ctx context.Context, userID, orderID uuid.UUID) (*Eligibility, error) {
	order, err := s.ownedOrder(ctx, s.repo, userID, orderID)
	if err != nil {
		return nil, err
	}
	return &Eligibility{
		CanCancel: CanCancel(order.Status),
		CanReturn: CanReturn(order.Status, order.CreatedAt, s.now()),
	}, nil
}

func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*orderstore.OrderView, error) {
	var view orderstore.OrderView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		order, err := s.ownedOrder(ctx, r, userID, orderID)
		if err != nil {
			return err
		}
		if !CanCancel(order.Status) {
			return illegal(order.Status, enums.OrderStatusCancelled,
				fmt.Errorf("%w: cannot cancel a %s order", ErrIllegalTransition, order.Status))
		}
		now := s.now().UTC()
		applied, err := r.TransitionOrder(ctx, order.ID, order.Status, map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
			"updated_at":   now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !applied {
			return s.lostTransition(ctx, r, order.ID, enums.OrderStatusCancelled)
		}
		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		order.UpdatedAt = now
		view = orderstore.ToView(*order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, orderID.String()), "order.lifecycle.cancelled")
	return &view, nil
}

// AssertCarrierStatus records a carrier-reported shipped or delivered fact.
// Repeating the current status is a no-op.
func (s *service) AssertCarrierStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*orderstore.OrderView, error) {
	var view orderstore.OrderView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, r, orderID)
		if err != nil {
			return err
		}
		noop, err := carrierTarget(order.Status, status)
		if err != nil {
			return illegal(order.Status, status, err)
		}
		if noop {
			view = orderstore.ToView(*order)
			return nil
		}

		now := s.now().UTC()
		updates := map[string]any{"status": status, "updated_at": now}
		switch status {
		case enums.OrderStatusShipped:
			updates["shipped_at"] = now
			order.ShippedAt = &now
		case enums.OrderStatusDelivered:
			updates["delivered_at"] = now
			order.DeliveredAt = &now
		}
		applied, err := r.TransitionOrder(ctx, order.ID, order.Status, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !applied {
			return s.lostTransition(ctx, r, order.ID, status)
		}
		order.Status = status
		order.UpdatedAt = now
		view = orderstore.ToView(*order)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"order_id": orderID.String(), "status": status.String()}), "order.lifecycle.carrier_status")
	return &view, nil
}

// RequestReturn opens a return on a delivered order inside the return window.
// The parent order row is locked first so concurrent requests serialize on it.
func (s *service) RequestReturn(ctx context.Context, input ReturnInput) (*ReturnView, error) {
	var view ReturnView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		now := s.now().UTC()

		if err := r.TouchOrder(ctx, input.OrderID, now); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock order")
		}
		order, err := s.ownedOrder(ctx, r, input.UserID, input.OrderID)
		if err != nil {
			return err
		}
		if !CanReturn(order.Status, order.CreatedAt, now) {
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict,
				fmt.Errorf("%w: order is not eligible for return", ErrIllegalTransition),
				"order is not eligible for return").
				WithDetails(map[string]any{"status": order.Status})
		}

		existing, err := r.ListReturns(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list returns")
		}
		for _, rr := range existing {
			if rr.Status.IsActive() {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrReturnAlreadyPending, "a return is already pending for this order").
					WithDetails(map[string]any{"return_id": rr.ID.String(), "status": rr.Status})
			}
		}

		record := &models.ReturnRequest{
			ID:        uuid.New(),
			OrderID:   order.ID,
			UserID:    input.UserID,
			Status:    enums.ReturnStatusRequested,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if reason := strings.TrimSpace(input.Reason); reason != "" {
			record.Reason = &reason
		}
		if err := r.CreateReturn(ctx, record); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create return")
		}
		view = toReturnView(*record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"order_id": input.OrderID.String(), "return_id": view.ID}), "order.lifecycle.return_requested")
	return &view, nil
}

func (s *service) ListReturns(ctx context.Context, userID, orderID uuid.UUID) ([]ReturnView, error) {
	order, err := s.ownedOrder(ctx, s.repo, userID, orderID)
	if err != nil {
		return nil, err
	}
	list, err := s.repo.ListReturns(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list returns")
	}
	out := make([]ReturnView, 0, len(list))
	for _, rr := range list {
		out = append(out, toReturnView(rr))
	}
	return out, nil
}

// CancelReturn withdraws a customer's own pending return.
func (s *service) CancelReturn(ctx context.Context, userID, orderID, returnID uuid.UUID) (*ReturnView, error) {
	return s.moveReturn(ctx, returnID, enums.ReturnStatusCancelled, func(rr *models.ReturnRequest) error {
		if rr.UserID != userID || rr.OrderID != orderID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "return not found")
		}
		return nil
	})
}

// ResolveReturn applies an administrative decision to a return.
func (s *service) ResolveReturn(ctx context.Context, returnID uuid.UUID, status enums.ReturnStatus) (*ReturnView, error) {
	switch status {
	case enums.ReturnStatusApproved, enums.ReturnStatusRejected, enums.ReturnStatusCompleted:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be approved, rejected or completed")
	}
	return s.moveReturn(ctx, returnID, status, nil)
}

func (s *service) moveReturn(ctx context.Context, returnID uuid.UUID, status enums.ReturnStatus, authorize func(*models.ReturnRequest) error) (*ReturnView, error) {
	var view ReturnView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := s.repo.WithTx(tx)
		rr, err := r.FindReturn(ctx, returnID)
		if errors.Is(err, repo.ErrNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "return not found")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load return")
		}
		if authorize != nil {
			if err := authorize(rr); err != nil {
				return err
			}
		}
		if err := CheckReturnTransition(rr.Status, status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "return transition not allowed").
				WithDetails(map[string]any{"from": rr.Status, "to": status})
		}

		now := s.now().UTC()
		updates := map[string]any{"status": status, "updated_at": now}
		if status != enums.ReturnStatusApproved {
			updates["resolved_at"] = now
			rr.ResolvedAt = &now
		}
		applied, err := r.TransitionReturn(ctx, rr.ID, rr.Status, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update return")
		}
		if !applied {
			current := rr.Status
			if latest, findErr := r.FindReturn(ctx, rr.ID); findErr == nil {
				current = latest.Status
			}
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict,
				fmt.Errorf("%w: return changed from %s to %s concurrently", ErrIllegalTransition, rr.Status, current),
				"return transition not allowed").
				WithDetails(map[string]any{"from": current, "to": status})
		}
		rr.Status = status
		rr.UpdatedAt = now
		view = toReturnView(*rr)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"return_id": returnID.String(), "status": string(status)}), "order.lifecycle.return_status")
	return &view, nil
}

func (s *service) loadOrder(ctx context.Context, r Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := r.FindOrder(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// ownedOrder hides orders belonging to other users behind NOT_FOUND.
func (s *service) ownedOrder(ctx context.Context, r Repository, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.loadOrder(ctx, r, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// lostTransition reports a guarded update that matched no row because another
// writer moved the order after it was read.
func (s *service) lostTransition(ctx context.Context, r Repository, orderID uuid.UUID, to enums.OrderStatus) error {
	order, err := s.loadOrder(ctx, r, orderID)
	if err != nil {
		return err
	}
	return illegal(order.Status, to,
		fmt.Errorf("%w: order moved to %s concurrently", ErrIllegalTransition, order.Status))
}

func illegal(from, to enums.OrderStatus, err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "order transition not allowed").
		WithDetails(map[string]any{"from": from, "to": to})
}
