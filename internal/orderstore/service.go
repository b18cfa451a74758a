// Package orderstore is the authenticated order-persistence service: it
// accepts checkout orders and serves them back to their owners.
package orderstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/internal/cards"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/repo"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	orderapi "github.com/angelmondragon/storefront-checkout/pkg/orderstore"
	"github.com/angelmondragon/storefront-checkout/pkg/pagination"
)

const (
	maxOrderNumberAttempts = 5
	deliveryLeadTime       = 5 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderNumbers interface {
	OrderNumber() (string, error)
}

// Service creates and reads canonical orders.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, req orderapi.CreateOrderRequest) (*CreateResult, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderView, error)
	List(ctx context.Context, userID uuid.UUID, page pagination.Params) (*OrderPage, error)
}

// OrderPage is one newest-first slice of a user's orders.
type OrderPage struct {
	Orders     []OrderView `json:"orders"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// CreateResult reports whether Create inserted a row or replayed an existing one.
type CreateResult struct {
	Order   OrderView
	Created bool
}

type service struct {
	tx      txRunner
	repo    Repository
	numbers orderNumbers
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(tx txRunner, repository Repository, numbers orderNumbers, logg *logger.Logger, now func() time.Time) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if numbers == nil {
		return nil, fmt.Errorf("order number generator required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	if now == nil {
		now = time.Now
	}
	return &service{tx: tx, repo: repository, numbers: numbers, logg: logg, now: now}, nil
}

// Create is idempotent on (user, client_order_id). Order numbers are
// regenerated when they collide with an existing one.
func (s *service) Create(ctx context.Context, userID uuid.UUID, req orderapi.CreateOrderRequest) (*CreateResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user required")
	}
	if err := checkRequest(req); err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "client_order_id": req.ClientOrderID})

	if existing, err := s.repo.FindByClientOrderID(ctx, userID, req.ClientOrderID); err == nil {
		s.logg.Info(ctx, "orders.create.replayed")
		return &CreateResult{Order: ToView(*existing)}, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup order")
	}

	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		number, err := s.numbers.OrderNumber()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		record := buildOrder(userID, number, req, s.now().UTC())

		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.WithTx(tx).Create(ctx, record)
		})
		switch {
		case err == nil:
			s.logg.Info(s.logg.WithOrderID(ctx, record.ID.String()), "orders.create.inserted")
			return &CreateResult{Order: ToView(*record), Created: true}, nil
		case pkgerrors.IsUniqueViolation(err, "uq_orders_user_client_order", "orders.user_id, orders.client_order_id"):
			existing, findErr := s.repo.FindByClientOrderID(ctx, userID, req.ClientOrderID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "lookup order")
			}
			return &CreateResult{Order: ToView(*existing)}, nil
		case pkgerrors.IsUniqueViolation(err, "uq_orders_order_number", "orders.order_number"):
			s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "orders.create.order_number_collision")
			continue
		default:
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not allocate an order number")
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderView, error) {
	order, err := s.repo.FindForUser(ctx, userID, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	view := ToView(*order)
	return &view, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, page pagination.Params) (*OrderPage, error) {
	after, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").
			WithDetails(map[string]any{"field": "cursor"})
	}
	limit := pagination.NormalizeLimit(page.Limit)

	rows, err := s.repo.ListForUser(ctx, userID, limit+1, after)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	rows, next := pagination.Trim(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})

	out := &OrderPage{Orders: make([]OrderView, 0, len(rows)), NextCursor: next}
	for _, o := range rows {
		out.Orders = append(out.Orders, ToView(o))
	}
	return out, nil
}

// checkRequest enforces the rules struct tags cannot express.
func checkRequest(req orderapi.CreateOrderRequest) error {
	details := map[string]string{}
	if strings.TrimSpace(req.ClientOrderID) == "" {
		details["client_order_id"] = "is required"
	}
	if len(req.Lines) == 0 {
		details["lines"] = "must contain at least one item"
	}
	subtotal := decimal.Zero
	for i, l := range req.Lines {
		if l.UnitPrice.IsNegative() {
			details[fmt.Sprintf("lines[%d].unit_price", i)] = "must be non-negative"
		}
		if l.Quantity < 1 {
			details[fmt.Sprintf("lines[%d].quantity", i)] = "must be at least 1"
		}
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	totals := pricing.Totals{Subtotal: req.Totals.Subtotal, Tax: req.Totals.Tax, Shipping: req.Totals.Shipping, Total: req.Totals.Total}
	if err := totals.Validate(); err != nil {
		details["totals"] = err.Error()
	} else if !subtotal.Round(2).Equal(req.Totals.Subtotal.Round(2)) {
		details["totals.subtotal"] = "does not match line items"
	}
	if req.Status != "" {
		status, err := enums.ParseOrderStatus(req.Status)
		if err != nil || (status != enums.OrderStatusProcessing && status != enums.OrderStatusConfirmed) {
			details["status"] = "must be processing or confirmed"
		}
	}
	if _, err := enums.ParsePaymentMethod(req.Payment.Method); err != nil {
		details["payment.method"] = "is invalid"
	}
	if status, err := enums.ParsePaymentStatus(req.Payment.Status); err != nil || status != enums.PaymentStatusPaid {
		details["payment.status"] = "must be paid"
	}
	if strings.TrimSpace(req.Payment.TransactionID) == "" {
		details["payment.transaction_id"] = "is required"
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order").WithDetails(details)
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func buildOrder(userID uuid.UUID, number string, req orderapi.CreateOrderRequest, now time.Time) *models.Order {
	status := enums.OrderStatusConfirmed
	if req.Status != "" {
		status = enums.OrderStatus(req.Status)
	}
	paidAt := req.Payment.PaidAt
	if paidAt.IsZero() {
		paidAt = now
	}
	estimated := req.EstimatedDelivery
	if estimated.IsZero() {
		estimated = now.Add(deliveryLeadTime)
	}

	id := uuid.New()
	items := make([]models.OrderLineItem, 0, len(req.Lines))
	for i, l := range req.Lines {
		items = append(items, models.OrderLineItem{
			ID:             uuid.New(),
			OrderID:        id,
			Position:       i,
			ProductRef:     l.ProductRef,
			Name:           l.Name,
			UnitPriceCents: pricing.Cents(l.UnitPrice),
			Quantity:       l.Quantity,
			ImageRef:       optional(l.ImageRef),
			Variant:        optional(l.Variant),
			CreatedAt:      now,
		})
	}

	var network *string
	if req.Payment.CardNetwork != "" {
		n := string(enums.CardNetworkUnknown)
		if parsed, err := enums.ParseCardNetwork(req.Payment.CardNetwork); err == nil {
			n = string(parsed)
		}
		network = &n
	}
	last4 := optional(req.Payment.CardLast4)
	if last4 != nil {
		masked := cards.LastFour(*last4)
		last4 = &masked
	}

	sh := req.Shipping
	return &models.Order{
		ID:                id,
		UserID:            userID,
		ClientOrderID:     req.ClientOrderID,
		OrderNumber:       number,
		Status:            status,
		SubtotalCents:     pricing.Cents(req.Totals.Subtotal),
		TaxCents:          pricing.Cents(req.Totals.Tax),
		ShippingCents:     pricing.Cents(req.Totals.Shipping),
		TotalCents:        pricing.Cents(req.Totals.Total),
		ShipFirstName:     sh.FirstName,
		ShipLastName:      sh.LastName,
		ShipEmail:         sh.Email,
		ShipPhone:         optional(sh.Phone),
		ShipStreet:        sh.Street,
		ShipApartment:     optional(sh.Apartment),
		ShipCity:          sh.City,
		ShipState:         sh.State,
		ShipPostalCode:    sh.PostalCode,
		ShipCountry:       sh.Country,
		PaymentMethod:     enums.PaymentMethod(req.Payment.Method),
		PaymentStatus:     enums.PaymentStatusPaid,
		TransactionID:     req.Payment.TransactionID,
		PaidAt:            paidAt,
		CardLast4:         last4,
		CardNetwork:       network,
		EstimatedDelivery: estimated,
		CreatedAt:         now,
		UpdatedAt:         now,
		LineItems:         items,
	}
}
