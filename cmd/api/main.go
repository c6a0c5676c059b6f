package main

import (
	"context"
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

	"github.com/alopez/store-backend/api/controllers"
	"github.com/alopez/store-backend/api/routes"
	"github.com/alopez/store-backend/internal/auth"
	"github.com/alopez/store-backend/internal/cart"
	"github.com/alopez/store-backend/internal/checkout"
	"github.com/alopez/store-backend/internal/orders"
	paystripe "github.com/alopez/store-backend/internal/payments/stripe"
	"github.com/alopez/store-backend/internal/products"
	"github.com/alopez/store-backend/internal/users"
	"github.com/alopez/store-backend/pkg/auth/session"
	"github.com/alopez/store-backend/pkg/config"
	"github.com/alopez/store-backend/pkg/db"
	"github.com/alopez/store-backend/pkg/logger"
	"github.com/alopez/store-backend/pkg/metrics"
	"github.com/alopez/store-backend/pkg/migrate"
	"github.com/alopez/store-backend/pkg/outbox"
	"github.com/alopez/store-backend/pkg/redis"
	"github.com/alopez/store-backend/pkg/security"
	"github.com/alopez/store-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps, err := buildDependencies(cfg, logg, dbClient, redisClient, stripeClient, sessionManager, registry)
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func buildDependencies(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	stripeClient *stripe.Client,
	sessionManager *session.Manager,
	registry *prometheus.Registry,
) (routes.Dependencies, error) {
	conn := dbClient.DB()
	hasher := security.NewArgon2Hasher(cfg.Password)

	productRepo := products.NewRepository(conn)
	productService, err := products.NewService(products.ServiceParams{Repo: productRepo, Logger: logg})
	if err != nil {
		return routes.Dependencies{}, err
	}

	cartRepo := cart.NewRepository(conn)
	cartService, err := cart.NewService(cart.ServiceParams{Repo: cartRepo, Products: productRepo, Logger: logg})
	if err != nil {
		return routes.Dependencies{}, err
	}

	userRepo := users.NewRepository(conn)
	userService, err := users.NewService(users.ServiceParams{Repo: userRepo, Hasher: hasher, Logger: logg})
	if err != nil {
		return routes.Dependencies{}, err
	}

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		Hasher:         hasher,
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	orderRepo := orders.NewRepository(conn)
	orderService, err := orders.NewService(orders.ServiceParams{Repo: orderRepo, Logger: logg})
	if err != nil {
		return routes.Dependencies{}, err
	}

	gateway, err := paystripe.NewGateway(paystripe.GatewayParams{
		Settings:   stripeClient,
		WebsiteURL: cfg.App.WebsiteURL,
		Logger:     logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	guard, err := checkout.NewIdempotencyGuard(redisClient, cfg.Webhook.IdempotencyTTL, cfg.Webhook.ProcessingTTL, checkout.WebhookIdempotencyScope)
	if err != nil {
		return routes.Dependencies{}, err
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		DB:      dbClient,
		Carts:   cartRepo,
		Orders:  orderRepo,
		Gateway: gateway,
		Outbox:  outbox.NewService(outbox.NewRepository(conn), logg),
		Guard:   guard,
		Metrics: metrics.NewCheckoutMetrics(registry),
		Logger:  logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		Products:    productService,
		Carts:       cartService,
		Users:       userService,
		Auth:        authService,
		Orders:      orderService,
		Checkout:    checkoutService,
		RateLimiter: redisClient,
		HTTPMetrics: metrics.NewHTTPMetrics(registry),
		Gatherer:    registry,
		Readiness: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
	}, nil
}
