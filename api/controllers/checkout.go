package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type paymentRequest struct {
	Method string                `json:"method" validate:"required"`
	Card   *payments.CardDetails `json:"card,omitempty"`
}

func (p paymentRequest) selection() payments.Selection {
	return payments.Selection{
		Method: enums.PaymentMethod(strings.ToLower(strings.TrimSpace(p.Method))),
		Card:   p.Card,
	}
}

type submitResponse struct {
	OrderID              string `json:"order_id"`
	OrderNumber          string `json:"order_number,omitempty"`
	Redirect             string `json:"redirect"`
	RemoteWriteSucceeded bool   `json:"remote_write_succeeded"`
}

// orderResponse exposes the effective identifier next to the order record.
type orderResponse struct {
	ID string `json:"id"`
	orders.Order
}

func newOrderResponse(o orders.Order) orderResponse {
	return orderResponse{ID: o.ID(), Order: o}
}

func unavailable(logg *logger.Logger, w http.ResponseWriter, r *http.Request) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
}

// CheckoutStart opens a wizard session on the caller's current cart.
func CheckoutStart(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		session, err := svc.Start(r.Context(), middleware.ClientIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

func CheckoutSession(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		sessionID, err := validators.URLParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.Get(r.Context(), middleware.ClientIDFromContext(r.Context()), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// CheckoutShipping submits the shipping step.
func CheckoutShipping(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		sessionID, err := validators.URLParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var info orders.ShippingInfo
		if err := validators.DecodeJSONBody(r, &info); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.SubmitShipping(r.Context(), middleware.ClientIDFromContext(r.Context()), sessionID, info)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// CheckoutBack returns from the payment step to shipping.
func CheckoutBack(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		sessionID, err := validators.URLParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.Back(r.Context(), middleware.ClientIDFromContext(r.Context()), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, session)
	}
}

// CheckoutPayment settles the payment step and creates the order.
func CheckoutPayment(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		sessionID, err := validators.URLParam(r, "sessionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload paymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		result, err := svc.SubmitPayment(ctx, checkout.PaymentInput{
			ClientID:     middleware.ClientIDFromContext(ctx),
			SessionID:    sessionID,
			SessionToken: middleware.SessionTokenFromContext(ctx),
			Selection:    payload.selection(),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, submitResponse{
			OrderID:              result.OrderID,
			OrderNumber:          result.Order.OrderNumber,
			Redirect:             result.Redirect,
			RemoteWriteSucceeded: result.RemoteWriteSucceeded,
		})
	}
}

// GuestOrders lists the orders cached for this browser, newest first.
func GuestOrders(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		list, err := svc.GuestOrders(r.Context(), middleware.ClientIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]orderResponse, 0, len(list))
		for _, o := range list {
			out = append(out, newOrderResponse(o))
		}
		responses.WriteSuccess(w, out)
	}
}
