package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alopez/store-backend/api/controllers"
	"github.com/alopez/store-backend/api/middleware"
	"github.com/alopez/store-backend/internal/auth"
	"github.com/alopez/store-backend/internal/cart"
	"github.com/alopez/store-backend/internal/checkout"
	"github.com/alopez/store-backend/internal/orders"
	"github.com/alopez/store-backend/internal/products"
	"github.com/alopez/store-backend/internal/users"
	"github.com/alopez/store-backend/pkg/config"
	"github.com/alopez/store-backend/pkg/enums"
	"github.com/alopez/store-backend/pkg/logger"
	"github.com/alopez/store-backend/pkg/metrics"
	"github.com/alopez/store-backend/pkg/redis"
)

// Dependencies groups what the router hands to controllers and middleware.
type Dependencies struct {
	Products    products.Service
	Carts       cart.Service
	Users       users.Service
	Auth        auth.Service
	Orders      orders.Service
	Checkout    checkout.Service
	RateLimiter redis.RateLimiter
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer
	// Readiness checks keyed by dependency name.
	Readiness map[string]controllers.Pinger
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)
	if deps.HTTPMetrics != nil {
		r.Use(middleware.Metrics(deps.HTTPMetrics))
	}

	authenticated := middleware.Auth(cfg.JWT, logg)
	adminOnly := middleware.RequireRole(enums.RoleAdmin, logg)
	cookie := controllers.NewRefreshCookie(cfg)

	loginLimit := passthrough
	registerLimit := passthrough
	if deps.RateLimiter != nil {
		loginLimit = middleware.AuthRateLimit(middleware.LoginRateLimitPolicy(cfg.AuthRateLimit), deps.RateLimiter, logg)
		registerLimit = middleware.AuthRateLimit(middleware.RegisterRateLimitPolicy(cfg.AuthRateLimit), deps.RateLimiter, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Readiness))
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductList(deps.Products, logg))
			r.Get("/{id}", controllers.ProductDetail(deps.Products, logg))
			r.Group(func(r chi.Router) {
				r.Use(authenticated, adminOnly)
				r.Post("/", controllers.ProductCreate(deps.Products, logg))
				r.Put("/{id}", controllers.ProductUpdate(deps.Products, logg))
				r.Delete("/{id}", controllers.ProductDelete(deps.Products, logg))
			})
		})
		r.Get("/categories", controllers.CategoryList(deps.Products, logg))

		r.Route("/carts", func(r chi.Router) {
			r.Post("/", controllers.CartCreate(deps.Carts, logg))
			r.Get("/{cartId}", controllers.CartFetch(deps.Carts, logg))
			r.Post("/{cartId}/items", controllers.CartAddItem(deps.Carts, logg))
			r.Put("/{cartId}/items/{productId}", controllers.CartUpdateItem(deps.Carts, logg))
			r.Delete("/{cartId}/items/{productId}", controllers.CartRemoveItem(deps.Carts, logg))
			r.Delete("/{cartId}/items", controllers.CartClear(deps.Carts, logg))
		})

		r.Route("/users", func(r chi.Router) {
			r.With(registerLimit).Post("/", controllers.UserRegister(deps.Users, logg))
			r.Group(func(r chi.Router) {
				r.Use(authenticated)
				r.Get("/", controllers.UserList(deps.Users, logg))
				r.Get("/{id}", controllers.UserDetail(deps.Users, logg))
				r.Put("/{id}", controllers.UserUpdate(deps.Users, logg))
				r.Delete("/{id}", controllers.UserDelete(deps.Users, logg))
				r.Post("/{id}/change-password", controllers.UserChangePassword(deps.Users, logg))
			})
		})

		r.Route("/auth", func(r chi.Router) {
			r.With(loginLimit).Post("/login", controllers.AuthLogin(deps.Auth, cookie, logg))
			r.Post("/refresh", controllers.AuthRefresh(deps.Auth, cookie, logg))
			r.Post("/logout", controllers.AuthLogout(deps.Auth, cookie, logg))
			r.With(authenticated).Get("/me", controllers.AuthMe(deps.Auth, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Use(authenticated)
			r.Get("/", controllers.OrderList(deps.Orders, logg))
			r.Get("/{id}", controllers.OrderDetail(deps.Orders, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/webhook", controllers.PaymentWebhook(deps.Checkout, logg))
			r.With(authenticated).Post("/", controllers.Checkout(deps.Checkout, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(authenticated, adminOnly)
			r.Get("/hello", controllers.AdminHello())
		})
	})

	return r
}

func passthrough(next http.Handler) http.Handler {
	return next
}
