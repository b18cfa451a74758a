package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/internal/persistence"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const DefaultConfirmationPath = "/checkout/confirmation"

type settler interface {
	Validate(sel payments.Selection) error
	Settle(ctx context.Context, sel payments.Selection) (payments.Result, error)
}

type assembler interface {
	Assemble(c cart.Cart, shipping orders.ShippingInfo, sel payments.Selection, settled payments.Result, totals pricing.Totals) (orders.Order, error)
}

type persister interface {
	Persist(ctx context.Context, order orders.Order, clientID, sessionToken string) persistence.Result
}

type confirmer interface {
	MarkPending(ctx context.Context, orderID string)
	Send(ctx context.Context, order orders.Order) enums.EmailStatus
	Resend(ctx context.Context, order orders.Order) enums.EmailStatus
	Status(ctx context.Context, orderID string) (enums.EmailStatus, error)
}

type orderLister interface {
	List(ctx context.Context, clientID string) ([]orders.Order, error)
}

// Service drives the checkout wizard.
type Service interface {
	Start(ctx context.Context, clientID string) (Session, error)
	Get(ctx context.Context, clientID, sessionID string) (Session, error)
	SubmitShipping(ctx context.Context, clientID, sessionID string, info orders.ShippingInfo) (Session, error)
	Back(ctx context.Context, clientID, sessionID string) (Session, error)
	SubmitPayment(ctx context.Context, input PaymentInput) (*SubmitResult, error)
	Confirmation(ctx context.Context, clientID, orderID string, flags ConfirmationFlags) (*ConfirmationView, error)
	ResendConfirmation(ctx context.Context, clientID, orderID string) (*ConfirmationView, error)
	GuestOrders(ctx context.Context, clientID string) ([]orders.Order, error)
	// Wait blocks until in-flight confirmation sends finish or ctx ends.
	Wait(ctx context.Context) error
}

// PaymentInput is one payment-step submission.
type PaymentInput struct {
	ClientID     string
	SessionID    string
	SessionToken string
	Selection    payments.Selection
}

// SubmitResult is handed to the confirmation view. Email resolves later through Confirmation.
type SubmitResult struct {
	Session              Session
	Order                orders.Order
	OrderID              string
	Redirect             string
	RemoteWriteSucceeded bool
	Confirmation         *ConfirmationTask
}

// ServiceParams wires the wizard's collaborators.
type ServiceParams struct {
	Carts            cart.Provider
	Sessions         SessionStore
	Payments         settler
	Assembler        assembler
	Persistence      persister
	Confirmations    confirmer
	LocalOrders      orderLister
	Logger           *logger.Logger
	Now              func() time.Time
	NewID            func() string
	ConfirmationPath string
}

type service struct {
	carts            cart.Provider
	sessions         SessionStore
	payments         settler
	assembler        assembler
	persistence      persister
	confirmations    confirmer
	localOrders      orderLister
	logg             *logger.Logger
	now              func() time.Time
	newID            func() string
	confirmationPath string
	inflight         sync.WaitGroup
}

func NewService(p ServiceParams) (Service, error) {
	if p.Carts == nil {
		return nil, fmt.Errorf("cart provider required")
	}
	if p.Sessions == nil {
		return nil, fmt.Errorf("session store required")
	}
	if p.Payments == nil {
		return nil, fmt.Errorf("payment dispatcher required")
	}
	if p.Assembler == nil {
		return nil, fmt.Errorf("order assembler required")
	}
	if p.Persistence == nil {
		return nil, fmt.Errorf("persistence coordinator required")
	}
	if p.Confirmations == nil {
		return nil, fmt.Errorf("confirmations required")
	}
	if p.LocalOrders == nil {
		return nil, fmt.Errorf("local order cache required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	if p.NewID == nil {
		p.NewID = uuid.NewString
	}
	if p.ConfirmationPath == "" {
		p.ConfirmationPath = DefaultConfirmationPath
	}
	return &service{
		carts:            p.Carts,
		sessions:         p.Sessions,
		payments:         p.Payments,
		assembler:        p.Assembler,
		persistence:      p.Persistence,
		confirmations:    p.Confirmations,
		localOrders:      p.LocalOrders,
		logg:             p.Logger,
		now:              p.Now,
		newID:            p.NewID,
		confirmationPath: strings.TrimRight(p.ConfirmationPath, "/"),
	}, nil
}

func (s *service) Start(ctx context.Context, clientID string) (Session, error) {
	if strings.TrimSpace(clientID) == "" {
		return Session{}, pkgerrors.New(pkgerrors.CodeValidation, "client id required")
	}
	c, err := s.carts.Current(ctx, clientID)
	if err != nil {
		return Session{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if c.IsEmpty() {
		return Session{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	session := newSession(s.newID(), clientID, pricing.Compute(c.Subtotal()), s.now().UTC())
	if err := s.sessions.Save(ctx, session); err != nil {
		return Session{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}
	s.logg.Info(s.logg.WithSessionID(ctx, session.ID), "checkout.session_started")
	return session, nil
}

func (s *service) Get(ctx context.Context, clientID, sessionID string) (Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return Session{}, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	}
	if err != nil {
		return Session{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load checkout session")
	}
	if session.ClientID != clientID {
		return Session{}, pkgerrors.New(pkgerrors.CodeNotFound, "checkout session not found")
	}
	return session, nil
}

func (s *service) SubmitShipping(ctx context.Context, clientID, sessionID string, info orders.ShippingInfo) (Session, error) {
	session, err := s.Get(ctx, clientID, sessionID)
	if err != nil {
		return Session{}, err
	}
	if err := session.applyShipping(info, s.now().UTC()); err != nil {
		if errors.Is(err, ErrStepConflict) {
			return Session{}, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "shipping step not active").
				WithDetails(map[string]any{"step": session.Step})
		}
		return Session{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping information incomplete").
			WithDetails(map[string]any{"fields": orders.FieldErrors(err)})
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return Session{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}
	return session, nil
}

func (s *service) Back(ctx context.Context, clientID, sessionID string) (Session, error) {
	session, err := s.Get(ctx, clientID, sessionID)
	if err != nil {
		return Session{}, err
	}
	if err := session.back(s.now().UTC()); err != nil {
		return Session{}, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "cannot leave the current step").
			WithDetails(map[string]any{"step": session.Step})
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return Session{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}
	return session, nil
}

// SubmitPayment settles, assembles, persists and hands off the confirmation
// email. The cart is cleared only after the session reaches Done.
func (s *service) SubmitPayment(ctx context.Context, input PaymentInput) (*SubmitResult, error) {
	ctx = s.logg.WithSessionID(ctx, input.SessionID)

	release, err := s.sessions.AcquireSubmitLock(ctx, input.SessionID)
	if errors.Is(err, ErrSubmitInProgress) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment is already being processed")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire submit lock")
	}
	defer release()

	session, err := s.Get(ctx, input.ClientID, input.SessionID)
	if err != nil {
		return nil, err
	}
	if session.Step == enums.CheckoutStepDone {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "checkout already completed").
			WithDetails(map[string]any{"order_id": session.OrderID})
	}

	if session.Step != enums.CheckoutStepPayment {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, stepConflict(session, "submit payment"), "payment step not active").
			WithDetails(map[string]any{"step": session.Step})
	}

	if err := s.payments.Validate(input.Selection); err != nil {
		session.LastError = failureFrom(err)
		session.UpdatedAt = s.now().UTC()
		s.saveQuietly(ctx, session)
		return nil, paymentError(err)
	}

	if err := session.beginSubmit(s.now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "payment step not active").
			WithDetails(map[string]any{"step": session.Step})
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save checkout session")
	}

	c, err := s.carts.Current(ctx, session.ClientID)
	if err != nil {
		s.abort(ctx, &session, nil)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if c.IsEmpty() {
		s.abort(ctx, &session, nil)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	totals := pricing.Compute(c.Subtotal())

	settled, err := s.payments.Settle(ctx, input.Selection)
	if err != nil {
		s.abort(ctx, &session, failureFrom(err))
		s.logg.WarnErr(ctx, "checkout.settlement_failed", err)
		return nil, paymentError(err)
	}

	order, err := s.assembler.Assemble(c, *session.Shipping, input.Selection, settled, totals)
	if err != nil {
		s.abort(ctx, &session, nil)
		s.logg.Error(s.logg.WithField(ctx, "transaction_id", settled.TransactionID), "checkout.assembly_failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "order assembly failed")
	}

	persisted := s.persistence.Persist(ctx, order, session.ClientID, input.SessionToken)
	orderID := persisted.CanonicalID
	ctx = s.logg.WithOrderID(ctx, orderID)

	s.confirmations.MarkPending(ctx, orderID)
	task := s.dispatchConfirmation(ctx, persisted.Order)

	session.Totals = totals
	session.complete(orderID, s.now().UTC())
	s.saveQuietly(ctx, session)

	if err := s.carts.RemoveOrdered(ctx, session.ClientID, order.Lines); err != nil {
		s.logg.WarnErr(ctx, "checkout.cart_clear_failed", err)
	}

	s.logg.Info(ctx, "checkout.completed")
	return &SubmitResult{
		Session:              session,
		Order:                persisted.Order,
		OrderID:              orderID,
		Redirect:             s.confirmationPath + "/" + url.PathEscape(orderID),
		RemoteWriteSucceeded: persisted.RemoteWriteSucceeded,
		Confirmation:         task,
	}, nil
}

func (s *service) dispatchConfirmation(ctx context.Context, order orders.Order) *ConfirmationTask {
	task := newConfirmationTask(order.ID())
	bg := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		task.resolve(s.confirmations.Send(bg, order))
	}()
	return task
}

func (s *service) abort(ctx context.Context, session *Session, failure *PaymentFailure) {
	if failure == nil {
		failure = failureFrom(nil)
	}
	session.fail(failure, s.now().UTC())
	s.saveQuietly(ctx, *session)
}

func (s *service) saveQuietly(ctx context.Context, session Session) {
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logg.WarnErr(ctx, "checkout.session_save_failed", err)
	}
}

func (s *service) GuestOrders(ctx context.Context, clientID string) ([]orders.Order, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client id required")
	}
	list, err := s.localOrders.List(ctx, clientID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest orders")
	}
	return list, nil
}

func (s *service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func paymentError(err error) error {
	var pe *payments.Error
	if !errors.As(err, &pe) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "payment failed")
	}
	details := map[string]any{"kind": pe.Kind}
	if pe.Field != "" {
		details["field"] = pe.Field
	}
	code := pkgerrors.CodePayment
	if pe.Kind == payments.KindGatewayTimeout {
		code = pkgerrors.CodeTimeout
	}
	return pkgerrors.Wrap(code, err, pe.UserMessage()).WithDetails(details)
}
