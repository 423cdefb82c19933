package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// RouterConfig holds the HTTP-level settings of the router.
type RouterConfig struct {
	CORS            middleware.CORSConfig
	CookieTTL       time.Duration
	CookieSecure    bool
	ProductsPerPage int

	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Metrics records per-route request metrics when set.
	Metrics *middleware.HTTPMetrics
	// AuthLimiter throttles login and forgot-password when set.
	AuthLimiter *middleware.RateLimiter
	// OnPanic is called after a recovered handler panic.
	OnPanic func(error)
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(
	users *service.UserService,
	products *service.ProductService,
	reviews *service.ReviewService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.ProductsPerPage <= 0 {
		cfg.ProductsPerPage = 8
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger, cfg.OnPanic))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogger(logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	requireAuth := middleware.Auth(authenticator(users), logger)
	requireAdmin := middleware.RequireRole(logger, domain.RoleAdmin)
	throttle := func(next http.Handler) http.Handler {
		if cfg.AuthLimiter == nil {
			return next
		}
		return cfg.AuthLimiter.Middleware(next)
	}

	cookies := sessionCookies{ttl: cfg.CookieTTL, secure: cfg.CookieSecure}
	userHandler := NewUserHandler(users, cookies, logger)
	adminHandler := NewAdminHandler(users, products, logger)
	productHandler := NewProductHandler(products, cfg.ProductsPerPage, logger)
	reviewHandler := NewReviewHandler(reviews, logger)

	r.Route("/api/v1", func(r chi.Router) {
		// Session endpoints (public)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NoStore)

			r.Post("/register", userHandler.Register)
			r.With(throttle).Post("/login", userHandler.Login)
			r.Get("/logout", userHandler.Logout)
			r.With(throttle).Post("/password/forgot", userHandler.ForgotPassword)
			r.Put("/password/reset/{token}", userHandler.ResetPassword)
		})

		// Catalog (public)
		r.Get("/products", productHandler.List)
		r.Get("/products/{id}", productHandler.Get)
		r.Get("/reviews", reviewHandler.List)

		// Authenticated user endpoints
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.With(middleware.NoStore).Get("/profile", userHandler.Profile)
			r.With(middleware.NoStore).Put("/password/update", userHandler.UpdatePassword)
			r.Put("/profile/update", userHandler.UpdateProfile)

			r.Put("/review", reviewHandler.Submit)
			r.Delete("/reviews", reviewHandler.Delete)
		})

		// Admin endpoints
		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(requireAdmin)

			r.Get("/users", adminHandler.ListUsers)
			r.Get("/users/{id}", adminHandler.GetUser)
			r.Put("/users/{id}", adminHandler.UpdateUser)
			r.Delete("/users/{id}", adminHandler.DeleteUser)

			r.Post("/products", adminHandler.CreateProduct)
			r.Put("/products/{id}", adminHandler.UpdateProduct)
			r.Delete("/products/{id}", adminHandler.DeleteProduct)
		})
	})

	return r
}

// authenticator bridges the user service to the auth middleware.
func authenticator(users *service.UserService) middleware.Authenticator {
	return func(ctx context.Context, token string) (*middleware.Principal, error) {
		user, err := users.Authenticate(ctx, token)
		if err != nil {
			return nil, err
		}
		return &middleware.Principal{
			UserID: user.ID,
			Name:   user.Name,
			Role:   user.Role,
		}, nil
	}
}
