// Command seed fills the configured storefront database with an admin account
// and a demo catalog. It reuses the server configuration, so DATABASE_DRIVER
// selects the backend, and is safe to run repeatedly.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/storefront/internal/app"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/seed"
	pkgconfig "github.com/utafrali/storefront/pkg/config"
	"github.com/utafrali/storefront/pkg/logger"
)

type seedConfig struct {
	Products      int    `env:"SEED_PRODUCTS" envDefault:"200"`
	AdminName     string `env:"SEED_ADMIN_NAME" envDefault:"Store Admin"`
	AdminEmail    string `env:"SEED_ADMIN_EMAIL" envDefault:"admin@storefront.local"`
	AdminPassword string `env:"SEED_ADMIN_PASSWORD" envDefault:"admin12345"`
	RandSeed      int64  `env:"SEED_RAND" envDefault:"42"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	var sc seedConfig
	if err := pkgconfig.Load(&sc); err != nil {
		slog.Error("failed to load seed config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("storefront-seed", cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, sc, log); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, sc seedConfig, log *slog.Logger) error {
	start := time.Now()

	// Pool metrics are registered but never scraped here.
	store, err := app.OpenStorage(ctx, cfg, prometheus.NewRegistry(), log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Warn("failed to close storage", slog.String("error", err.Error()))
		}
	}()

	res, err := seed.Run(ctx, store.Users, store.Products, seed.Options{
		Products:      sc.Products,
		AdminName:     sc.AdminName,
		AdminEmail:    sc.AdminEmail,
		AdminPassword: sc.AdminPassword,
		BcryptCost:    cfg.BcryptCost,
		RandSeed:      sc.RandSeed,
	}, log)
	if err != nil {
		return err
	}

	log.Info("storefront seeded",
		slog.String("database_driver", cfg.DatabaseDriver),
		slog.String("admin_id", res.AdminID),
		slog.Int("products_created", res.ProductsCreated),
		slog.Int("products_skipped", res.ProductsSkipped),
		slog.Duration("elapsed", time.Since(start)),
	)
	return nil
}
