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
	"github.com/angelmondragon/storefront-checkout/internal/lifecycle"
	"github.com/angelmondragon/storefront-checkout/internal/orderstore"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/idgen"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "orders-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	if cfg.JWT.Secret == "" {
		logg.Error(context.Background(), "failed to load config", errors.New("STOREFRONT_JWT_SECRET is required for the orders api"))
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "orders-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		_ = dbClient.Close()
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		_ = dbClient.Close()
		os.Exit(1)
	}

	closeAll := func() error {
		return multierr.Combine(dbClient.Close(), redisClient.Close())
	}

	ordersSvc, err := orderstore.NewService(
		dbClient,
		orderstore.NewRepository(dbClient.DB()),
		idgen.New(time.Now, rand.Reader),
		logg,
		time.Now,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		_ = closeAll()
		os.Exit(1)
	}

	lifecycleSvc, err := lifecycle.NewService(dbClient, lifecycle.NewRepository(dbClient.DB()), logg, time.Now)
	if err != nil {
		logg.Error(context.Background(), "failed to create lifecycle service", err)
		_ = closeAll()
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

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
		Handler: routes.NewOrdersRouter(cfg, logg, routes.OrdersDeps{
			Orders:      ordersSvc,
			Lifecycle:   lifecycleSvc,
			Idempotency: redisClient,
			Ready: map[string]controllers.Pinger{
				"postgres": dbClient,
				"redis":    redisClient,
			},
			Metrics: registry,
		}),
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting orders api")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "orders api stopped unexpectedly", err)
			_ = closeAll()
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	logg.Info(ctx, "orders api shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := multierr.Combine(server.Shutdown(shutdownCtx), closeAll()); err != nil {
		logg.Error(ctx, "unclean shutdown", err)
		os.Exit(1)
	}
}
