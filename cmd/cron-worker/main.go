package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	cartsvc "github.com/giftlane/giftlane-backend/internal/cart"
	checkoutsvc "github.com/giftlane/giftlane-backend/internal/checkout"
	croncore "github.com/giftlane/giftlane-backend/internal/cron"
	orderssvc "github.com/giftlane/giftlane-backend/internal/orders"
	paymentssvc "github.com/giftlane/giftlane-backend/internal/payments"
	"github.com/giftlane/giftlane-backend/internal/pricing"
	"github.com/giftlane/giftlane-backend/internal/reservation"
	walletsvc "github.com/giftlane/giftlane-backend/internal/wallet"
	"github.com/giftlane/giftlane-backend/pkg/config"
	"github.com/giftlane/giftlane-backend/pkg/db"
	"github.com/giftlane/giftlane-backend/pkg/logger"
	"github.com/giftlane/giftlane-backend/pkg/metrics"
	"github.com/giftlane/giftlane-backend/pkg/migrate"
	"github.com/giftlane/giftlane-backend/pkg/razorpay"
	"github.com/giftlane/giftlane-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	gateway, err := razorpay.NewClient(ctx, cfg.Razorpay, logg)
	if err != nil {
		logg.Error(ctx, "failed to create razorpay client", err)
		os.Exit(1)
	}

	registry := croncore.NewRegistry()
	if err := registerJobs(registry, dbClient.DB(), cfg, logg, gateway); err != nil {
		logg.Error(ctx, "failed to register sweep jobs", err)
		os.Exit(1)
	}

	sweepMetrics := metrics.NewSweepMetrics(prometheus.DefaultRegisterer)
	service, err := croncore.NewService(registry, redisClient, sweepMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		os.Exit(1)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":          cfg.App.Env,
		"service_kind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "starting cron worker")

	service.Start(runCtx)
	<-runCtx.Done()

	logg.Info(runCtx, "cron worker shutting down gracefully")
}

// registerJobs wires the deadline and cleanup sweeps. The worker never moves
// an order to packed or delivered itself, so the dispatch and settlement
// hooks stay unregistered here.
func registerJobs(registry *croncore.Registry, conn *gorm.DB, cfg *config.Config, logg *logger.Logger, gateway *razorpay.Client) error {
	wallet, err := walletsvc.NewService(conn)
	if err != nil {
		return err
	}

	cart, err := cartsvc.NewService(conn, cfg.Checkout.ReservationTTL)
	if err != nil {
		return err
	}

	pricingParams, err := pricing.ParamsFromConfig(cfg.Pricing)
	if err != nil {
		return err
	}
	checkout, err := checkoutsvc.NewService(conn, gateway, wallet, pricing.NewEngine(pricingParams))
	if err != nil {
		return err
	}

	repo, err := orderssvc.NewRepository(conn)
	if err != nil {
		return err
	}
	orders, err := orderssvc.NewService(repo, logg)
	if err != nil {
		return err
	}

	payments, err := paymentssvc.NewService(conn, orders, wallet, gateway, logg, cfg.Orders.AcceptDeadline, cfg.Orders.DesignDeadline)
	if err != nil {
		return err
	}

	batch := cfg.Orders.SweepBatchSize
	jobs := []croncore.Job{
		&croncore.AcceptanceDeadlineJob{
			Orders:    repo,
			Payments:  payments,
			BatchSize: batch,
			Every:     time.Minute,
		},
		&croncore.DesignDeadlineJob{
			Orders:    orders,
			BatchSize: batch,
			Every:     5 * time.Minute,
		},
		&croncore.CartExpiryJob{
			Cart:      cart,
			IdleAfter: cfg.Checkout.CartIdleTTL,
			BatchSize: batch,
			Every:     10 * time.Minute,
		},
		&croncore.ReservationCleanupJob{
			Delete: func(ctx context.Context, batchSize int) (int64, error) {
				return reservation.DeleteExpired(ctx, conn, batchSize)
			},
			BatchSize: batch,
			Every:     10 * time.Minute,
		},
		&croncore.DraftCleanupJob{
			Checkout:  checkout,
			OlderThan: cfg.Checkout.DraftOrderTTL,
			BatchSize: batch,
			Every:     30 * time.Minute,
		},
	}
	for _, job := range jobs {
		if err := registry.Register(job); err != nil {
			return err
		}
	}
	return nil
}
