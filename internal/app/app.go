package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/utafrali/storefront/internal/auth"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/mail"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

const serviceName = "storefront"

// App wires together all dependencies and runs the storefront service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          *Storage
	producer       *pkgkafka.Producer
	authLimiter    *middleware.RateLimiter
	httpServer     *http.Server
	tracerShutdown func(context.Context) error

	// fatal receives the first recovered handler panic.
	fatal chan error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Storage backend selected by DATABASE_DRIVER.
	store, err := OpenStorage(ctx, cfg, reg, logger)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, err
	}

	// Initialize Kafka producer.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger, pkgkafka.NewProducerMetrics(reg))
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	mailer := newMailSender(cfg, producer, logger)
	logger.Info("mail sender initialized", slog.String("driver", mailer.Name()))

	// Build the dependency graph.
	metrics := service.NewMetrics(reg)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpire)
	eventProducer := event.NewProducer(producer, logger)

	userService := service.NewUserService(store.Users, tokens, mailer, eventProducer, service.UserServiceConfig{
		BcryptCost:    cfg.BcryptCost,
		PublicBaseURL: cfg.PublicBaseURL,
	}, metrics, logger)
	productService := service.NewProductService(store.Products, logger)
	reviewService := service.NewReviewService(store.Products, eventProducer, cfg.ReviewWriteRetries, metrics, logger)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical(cfg.DatabaseDriver, store.Ping)
	healthHandler.Register("kafka", producer.Ping)

	authLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		Name:      "auth",
		PerMinute: cfg.AuthRateLimitPerMin,
	}, logger)

	a := &App{
		cfg:            cfg,
		logger:         logger,
		store:          store,
		producer:       producer,
		authLimiter:    authLimiter,
		tracerShutdown: tracerShutdown,
		fatal:          make(chan error, 1),
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.CORSAllowedOrigins

	// HTTP router.
	router := handler.NewRouter(userService, productService, reviewService, healthHandler, logger, handler.RouterConfig{
		CORS:            corsCfg,
		CookieTTL:       cfg.CookieTTL(),
		CookieSecure:    cfg.CookieSecure,
		ProductsPerPage: cfg.ProductsPerPage,
		Gatherer:        reg,
		Metrics:         middleware.NewHTTPMetrics(reg, serviceName),
		AuthLimiter:     authLimiter,
		OnPanic:         a.onPanic,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// newMailSender picks the mail transport named by MAIL_DRIVER.
func newMailSender(cfg *config.Config, publisher pkgkafka.Publisher, logger *slog.Logger) mail.Sender {
	if cfg.MailDriver == config.MailLog {
		return mail.NewLogSender(logger)
	}
	return mail.NewKafkaSender(publisher, cfg.MailFrom, logger)
}

// onPanic records a recovered handler panic. Run shuts the process down on
// the first one.
func (a *App) onPanic(err error) {
	select {
	case a.fatal <- err:
	default:
	}
}

// Run starts the HTTP server and blocks until the context is canceled, the
// server fails, or a handler panics. A panic is returned as an error after a
// graceful shutdown so the process exits non-zero.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
		return a.Shutdown()
	case err := <-errCh:
		return errors.Join(err, a.Shutdown())
	case err := <-a.fatal:
		a.logger.Error("unrecovered handler failure, shutting down", slog.String("error", err.Error()))
		return errors.Join(err, a.Shutdown())
	}
}

// Shutdown gracefully stops all components in the correct order:
// 1. HTTP server (drain in-flight requests)
// 2. Tracer (flush pending spans from drained requests)
// 3. Kafka producer
// 4. Database connections
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}
	a.authLimiter.Stop()

	// 2. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 3. Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 4. Close the database.
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dbCancel()
	if err := a.store.Close(dbCtx); err != nil {
		a.logger.Error("database close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
