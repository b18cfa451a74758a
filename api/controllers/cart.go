package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type cartRequest struct {
	Lines []cart.Line `json:"lines" validate:"dive"`
}

type cartResponse struct {
	Lines  []cart.Line    `json:"lines"`
	Totals pricing.Totals `json:"totals"`
}

// CartReplace stores the browser's cart under its client id.
func CartReplace(store cart.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart store unavailable"))
			return
		}

		var payload cartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		c := cart.Cart{Lines: payload.Lines}
		if err := c.Validate(); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cart").
				WithDetails(map[string]any{"error": err.Error()}))
			return
		}

		clientID := middleware.ClientIDFromContext(r.Context())
		if err := store.Replace(r.Context(), clientID, c); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart"))
			return
		}

		lines := c.Snapshot()
		if lines == nil {
			lines = []cart.Line{}
		}
		responses.WriteSuccess(w, cartResponse{Lines: lines, Totals: pricing.Compute(c.Subtotal())})
	}
}
