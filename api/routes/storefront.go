package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// StorefrontDeps are the collaborators behind the shopper-facing API.
type StorefrontDeps struct {
	Carts       cart.Store
	Checkout    checkout.Service
	Idempotency pkgredis.IdempotencyStore
	Ready       map[string]controllers.Pinger
	Metrics     prometheus.Gatherer
}

func NewStorefrontRouter(cfg *config.Config, logg *logger.Logger, deps StorefrontDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	mountOps(r, cfg, logg, deps.Ready, deps.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ClientID(logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Put("/cart", controllers.CartReplace(deps.Carts, logg))

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/sessions", controllers.CheckoutStart(deps.Checkout, logg))
			r.Route("/sessions/{sessionId}", func(r chi.Router) {
				r.Get("/", controllers.CheckoutSession(deps.Checkout, logg))
				r.Put("/shipping", controllers.CheckoutShipping(deps.Checkout, logg))
				r.Post("/back", controllers.CheckoutBack(deps.Checkout, logg))
				r.Post("/payment", controllers.CheckoutPayment(deps.Checkout, logg))
			})
			r.Get("/confirmation/{orderId}", controllers.CheckoutConfirmation(deps.Checkout, logg))
			r.Post("/confirmation/{orderId}/resend", controllers.CheckoutResendConfirmation(deps.Checkout, logg))
		})

		r.Get("/guest/orders", controllers.GuestOrders(deps.Checkout, logg))
	})

	return r
}

func mountOps(r chi.Router, cfg *config.Config, logg *logger.Logger, ready map[string]controllers.Pinger, gatherer prometheus.Gatherer) {
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
}
