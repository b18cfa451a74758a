package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/internal/lifecycle"
	"github.com/angelmondragon/storefront-checkout/internal/orderstore"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// OrdersDeps are the collaborators behind the authenticated orders API.
type OrdersDeps struct {
	Orders      orderstore.Service
	Lifecycle   lifecycle.Service
	Idempotency pkgredis.IdempotencyStore
	Ready       map[string]controllers.Pinger
	Metrics     prometheus.Gatherer
}

func NewOrdersRouter(cfg *config.Config, logg *logger.Logger, deps OrdersDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	mountOps(r, cfg, logg, deps.Ready, deps.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.OrderCreate(deps.Orders, logg))
			r.Get("/", controllers.OrderList(deps.Orders, logg))
			r.Route("/{orderId}", func(r chi.Router) {
				r.Get("/", controllers.OrderDetail(deps.Orders, logg))
				r.Get("/eligibility", controllers.OrderEligibility(deps.Lifecycle, logg))
				r.Post("/cancel", controllers.OrderCancel(deps.Lifecycle, logg))
				r.Post("/returns", controllers.ReturnCreate(deps.Lifecycle, logg))
				r.Get("/returns", controllers.ReturnList(deps.Lifecycle, logg))
				r.Post("/returns/{returnId}/cancel", controllers.ReturnCancel(deps.Lifecycle, logg))
			})
		})

		r.With(middleware.RequireRole(logg, enums.UserRoleCarrier, enums.UserRoleAdmin)).
			Post("/carrier/orders/{orderId}/status", controllers.CarrierOrderStatus(deps.Lifecycle, logg))
		r.With(middleware.RequireRole(logg, enums.UserRoleAdmin)).
			Post("/admin/returns/{returnId}/status", controllers.AdminReturnStatus(deps.Lifecycle, logg))
	})

	return r
}
