package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/threshingfloor/roastery-backend/api/controllers"
	"github.com/threshingfloor/roastery-backend/api/middleware"
	"github.com/threshingfloor/roastery-backend/internal/access"
	"github.com/threshingfloor/roastery-backend/internal/auth"
	"github.com/threshingfloor/roastery-backend/internal/availability"
	"github.com/threshingfloor/roastery-backend/internal/cart"
	"github.com/threshingfloor/roastery-backend/internal/catalog"
	"github.com/threshingfloor/roastery-backend/internal/orders"
	"github.com/threshingfloor/roastery-backend/pkg/auth/session"
	"github.com/threshingfloor/roastery-backend/pkg/config"
	"github.com/threshingfloor/roastery-backend/pkg/logger"
	"github.com/threshingfloor/roastery-backend/pkg/metrics"
	pkgredis "github.com/threshingfloor/roastery-backend/pkg/redis"
)

// RedisStore is the redis surface the HTTP layer needs for rate limiting
// and idempotency.
type RedisStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
}

// Deps is everything NewRouter wires into handlers.
type Deps struct {
	Config       *config.Config
	Logger       *logger.Logger
	DB           controllers.Pinger
	Redis        RedisStore
	RedisPinger  controllers.Pinger
	Sessions     session.AccessSessionChecker
	Policy       *access.Policy
	Auth         auth.Service
	Catalog      catalog.Service
	Availability availability.Service
	Cart         cart.Service
	Orders       orders.Service
	Metrics      *metrics.HTTPMetrics
	Gatherer     prometheus.Gatherer
	Clock        func() time.Time
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, d.Metrics),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)
	requireIdempotency := middleware.Idempotency(d.Redis, middleware.IdempotencyOptions{TTL: cfg.Store.IdempotencyTTL, Required: true}, logg)
	allowIdempotency := middleware.Idempotency(d.Redis, middleware.IdempotencyOptions{TTL: cfg.Store.IdempotencyTTL}, logg)
	authenticate := middleware.Auth(cfg.JWT, d.Sessions, d.Auth, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    d.DB,
			"redis": d.RedisPinger,
		}))
	})
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(middleware.AuthRateLimit(loginPolicy, d.Redis, logg)).Post("/login", controllers.AuthLogin(d.Auth, logg))
			r.With(middleware.AuthRateLimit(registerPolicy, d.Redis, logg)).Post("/register", controllers.AuthRegister(d.Auth, logg))
			r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))

			r.Group(func(r chi.Router) {
				r.Use(authenticate)
				r.Post("/logout", controllers.AuthLogout(d.Auth, logg))
				r.Get("/me", controllers.AuthMe(logg))
			})
		})

		r.Get("/products", controllers.CatalogList(d.Catalog, logg))
		r.Get("/products/{productId}", controllers.CatalogGet(d.Catalog, logg))
		r.Get("/pickup-slots", controllers.PickupSlots(d.Availability, d.Clock, logg))

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartGet(d.Cart, logg))
				r.Delete("/", controllers.CartClear(d.Cart, logg))
				r.Post("/lines", controllers.CartAddLine(d.Cart, logg))
				r.Put("/lines", controllers.CartSetQuantity(d.Cart, logg))
				r.Delete("/lines", controllers.CartRemoveLine(d.Cart, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.With(requireIdempotency).Post("/", controllers.PlaceOrder(d.Orders, logg))
				r.Get("/", controllers.ListOrders(d.Orders, logg))
				r.Get("/{orderId}", controllers.GetOrder(d.Orders, logg))
			})
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(authenticate)
		r.Use(middleware.RequireAdmin(d.Policy, logg))

		r.Route("/products", func(r chi.Router) {
			r.Post("/", controllers.AdminCreateProduct(d.Catalog, logg))
			r.Put("/{productId}", controllers.AdminUpdateProduct(d.Catalog, logg))
			r.Delete("/{productId}", controllers.AdminDeleteProduct(d.Catalog, logg))
		})

		r.Route("/slots", func(r chi.Router) {
			r.Get("/", controllers.AdminListSlots(d.Availability, logg))
			r.Post("/", controllers.AdminAddSlot(d.Availability, logg))
			r.Delete("/{slotId}", controllers.AdminRemoveSlot(d.Availability, logg))
		})

		r.Route("/days/{day}", func(r chi.Router) {
			r.Get("/", controllers.AdminGetDay(d.Availability, logg))
			r.Put("/", controllers.AdminSetDay(d.Availability, logg))
			r.Delete("/", controllers.AdminClearDay(d.Availability, logg))
			r.Post("/copy", controllers.AdminCopyDay(d.Availability, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(d.Orders, logg))
			r.Get("/{orderId}", controllers.GetOrder(d.Orders, logg))
			r.Group(func(r chi.Router) {
				r.Use(allowIdempotency)
				r.Post("/{orderId}/confirm", controllers.AdminConfirmPayment(d.Orders, logg))
				r.Post("/{orderId}/cancel", controllers.AdminCancelOrder(d.Orders, logg))
				r.Post("/{orderId}/fulfil", controllers.AdminFulfilOrder(d.Orders, logg))
			})
		})
	})

	return r
}
