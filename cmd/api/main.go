package main

import (
	"context"
	"crypto/rand"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	"github.com/angelmondragon/storefront-checkout/api/routes"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/notifications"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/internal/persistence"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/idgen"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/orderstore"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
	"github.com/angelmondragon/storefront-checkout/pkg/sendgrid"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	carts, err := cart.NewRedisStore(redisClient, 0)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart store", err)
		os.Exit(1)
	}

	svc, err := buildCheckout(cfg, logg, redisClient, carts, checkoutMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire checkout", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		Handler: routes.NewStorefrontRouter(cfg, logg, routes.StorefrontDeps{
			Carts:       carts,
			Checkout:    svc,
			Idempotency: redisClient,
			Ready:       map[string]controllers.Pinger{"redis": redisClient},
			Metrics:     registry,
		}),
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting storefront api")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "storefront api stopped unexpectedly", err)
			_ = redisClient.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	logg.Info(ctx, "storefront api shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Drain HTTP first, then wait for confirmation emails already handed off.
	err = multierr.Combine(
		server.Shutdown(shutdownCtx),
		svc.Wait(shutdownCtx),
		redisClient.Close(),
	)
	if err != nil {
		logg.Error(ctx, "unclean shutdown", err)
		os.Exit(1)
	}
}

func buildCheckout(cfg *config.Config, logg *logger.Logger, redisClient *redis.Client, carts cart.Store, m *metrics.CheckoutMetrics) (checkout.Service, error) {
	ids := idgen.New(time.Now, rand.Reader)

	dispatcher, err := payments.NewDispatcher(payments.Options{
		DelayMin: cfg.Checkout.SettlementDelayMin,
		DelayMax: cfg.Checkout.SettlementDelayMax,
		Timeout:  cfg.Checkout.GatewayTimeout,
		IDs:      ids,
		Metrics:  m,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	assembler, err := orders.NewAssembler(ids, time.Now)
	if err != nil {
		return nil, err
	}

	orderStore, err := orderstore.NewClient(cfg.OrderStore, m, logg)
	if err != nil {
		return nil, err
	}
	guestOrders, err := persistence.NewRedisCache(redisClient, persistence.DefaultCapacity, 0)
	if err != nil {
		return nil, err
	}
	coordinator, err := persistence.NewCoordinator(persistence.NewOrderStoreWriter(orderStore), guestOrders, logg, m)
	if err != nil {
		return nil, err
	}

	mailer, err := sendgrid.NewClient(cfg.Sendgrid, m, logg)
	if err != nil {
		return nil, err
	}
	sender, err := notifications.NewDispatcher(mailer, logg, m)
	if err != nil {
		return nil, err
	}
	tracker, err := notifications.NewRedisTracker(redisClient, cfg.Checkout.EmailStatusTTL)
	if err != nil {
		return nil, err
	}
	confirmations, err := notifications.NewConfirmations(sender, tracker, logg)
	if err != nil {
		return nil, err
	}

	sessions, err := checkout.NewRedisSessionStore(redisClient, cfg.Checkout.SessionTTL, cfg.Checkout.SubmitLockTTL)
	if err != nil {
		return nil, err
	}

	return checkout.NewService(checkout.ServiceParams{
		Carts:            carts,
		Sessions:         sessions,
		Payments:         dispatcher,
		Assembler:        assembler,
		Persistence:      coordinator,
		Confirmations:    confirmations,
		LocalOrders:      guestOrders,
		Logger:           logg,
		ConfirmationPath: cfg.Checkout.ConfirmationPath,
	})
}
