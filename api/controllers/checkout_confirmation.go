package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type confirmationResponse struct {
	Order       orderResponse     `json:"order"`
	EmailStatus enums.EmailStatus `json:"email_status"`
}

func newConfirmationResponse(v *checkout.ConfirmationView) confirmationResponse {
	return confirmationResponse{Order: newOrderResponse(v.Order), EmailStatus: v.EmailStatus}
}

// CheckoutConfirmation renders the confirmation view. email_sent and
// email_failed report an outcome the page already knows.
func CheckoutConfirmation(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		orderID, err := validators.URLParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sent, err := validators.ParseQueryBool(r, "email_sent")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		failed, err := validators.ParseQueryBool(r, "email_failed")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Confirmation(r.Context(), middleware.ClientIDFromContext(r.Context()), orderID,
			checkout.ConfirmationFlags{EmailSent: sent, EmailFailed: failed})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newConfirmationResponse(view))
	}
}

// CheckoutResendConfirmation retries the confirmation email on request.
func CheckoutResendConfirmation(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		orderID, err := validators.URLParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.ResendConfirmation(r.Context(), middleware.ClientIDFromContext(r.Context()), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newConfirmationResponse(view))
	}
}
