package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/giftlane/giftlane-backend/api/routes"
	cartsvc "github.com/giftlane/giftlane-backend/internal/cart"
	checkoutsvc "github.com/giftlane/giftlane-backend/internal/checkout"
	croncore "github.com/giftlane/giftlane-backend/internal/cron"
	dispatchsvc "github.com/giftlane/giftlane-backend/internal/dispatch"
	orderssvc "github.com/giftlane/giftlane-backend/internal/orders"
	paymentssvc "github.com/giftlane/giftlane-backend/internal/payments"
	"github.com/giftlane/giftlane-backend/internal/pricing"
	"github.com/giftlane/giftlane-backend/internal/reservation"
	settlementsvc "github.com/giftlane/giftlane-backend/internal/settlement"
	walletsvc "github.com/giftlane/giftlane-backend/internal/wallet"
	"github.com/giftlane/giftlane-backend/pkg/config"
	"github.com/giftlane/giftlane-backend/pkg/courier"
	"github.com/giftlane/giftlane-backend/pkg/db"
	"github.com/giftlane/giftlane-backend/pkg/logger"
	"github.com/giftlane/giftlane-backend/pkg/metrics"
	"github.com/giftlane/giftlane-backend/pkg/migrate"
	"github.com/giftlane/giftlane-backend/pkg/razorpay"
	"github.com/giftlane/giftlane-backend/pkg/redis"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	courierClient, err := courier.NewClient(ctx, cfg.Courier, logg)
	if err != nil {
		logg.Error(ctx, "failed to create courier client", err)
		os.Exit(1)
	}

	services, err := buildServices(dbClient.DB(), cfg, logg, gateway, courierClient)
	if err != nil {
		logg.Error(ctx, "failed to wire services", err)
		os.Exit(1)
	}
	services.payments.WithReplayCache(redisClient)

	registry := prometheus.NewRegistry()
	sweepMetrics := metrics.NewSweepMetrics(registry)
	jobRegistry := croncore.NewRegistry()
	if err := registerSweepJobs(jobRegistry, cfg, services); err != nil {
		logg.Error(ctx, "failed to register sweep jobs", err)
		os.Exit(1)
	}
	cronService, err := croncore.NewService(jobRegistry, redisClient, sweepMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to create sweep runner", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Gateway:  gateway,
			Cart:     services.cart,
			Checkout: services.checkout,
			Orders:   services.orders,
			Payments: services.payments,
			Wallet:   services.wallet,
			Cron:     cronService,
			Registry: registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

type serviceSet struct {
	cart     *cartsvc.Service
	checkout *checkoutsvc.Service
	orders   *orderssvc.Service
	payments *paymentssvc.Service
	wallet   *walletsvc.Service
}

// buildServices wires the domain services and registers the lifecycle hooks:
// dispatch fires when an order is packed, settlement when it is delivered.
func buildServices(conn *gorm.DB, cfg *config.Config, logg *logger.Logger, gateway *razorpay.Client, courierClient *courier.Client) (*serviceSet, error) {
	wallet, err := walletsvc.NewService(conn)
	if err != nil {
		return nil, err
	}

	cart, err := cartsvc.NewService(conn, cfg.Checkout.ReservationTTL)
	if err != nil {
		return nil, err
	}

	pricingParams, err := pricing.ParamsFromConfig(cfg.Pricing)
	if err != nil {
		return nil, err
	}
	checkout, err := checkoutsvc.NewService(conn, gateway, wallet, pricing.NewEngine(pricingParams))
	if err != nil {
		return nil, err
	}

	repo, err := orderssvc.NewRepository(conn)
	if err != nil {
		return nil, err
	}
	orders, err := orderssvc.NewService(repo, logg)
	if err != nil {
		return nil, err
	}

	payments, err := paymentssvc.NewService(conn, orders, wallet, gateway, logg, cfg.Orders.AcceptDeadline, cfg.Orders.DesignDeadline)
	if err != nil {
		return nil, err
	}

	weightPerQty, err := decimal.NewFromString(cfg.Dispatch.WeightPerQty)
	if err != nil {
		return nil, err
	}
	dispatch, err := dispatchsvc.NewService(conn, orders, courierClient, logg, cfg.Dispatch.MaxAttempts, cfg.Dispatch.RetryDelay, weightPerQty)
	if err != nil {
		return nil, err
	}

	settlementParams, err := settlementsvc.ParamsFromConfig(cfg.Settlement)
	if err != nil {
		return nil, err
	}
	settlement, err := settlementsvc.NewService(conn, orders, wallet, logg, settlementParams)
	if err != nil {
		return nil, err
	}

	orders.RegisterHook(dispatchsvc.NewHook(dispatch))
	orders.RegisterHook(settlementsvc.NewHook(settlement))

	return &serviceSet{
		cart:     cart,
		checkout: checkout,
		orders:   orders,
		payments: payments,
		wallet:   wallet,
	}, nil
}

func registerSweepJobs(registry *croncore.Registry, cfg *config.Config, services *serviceSet) error {
	conn := services.orders.Repo().DB()
	batch := cfg.Orders.SweepBatchSize

	jobs := []croncore.Job{
		&croncore.AcceptanceDeadlineJob{
			Orders:    services.orders.Repo(),
			Payments:  services.payments,
			BatchSize: batch,
			Every:     time.Minute,
		},
		&croncore.DesignDeadlineJob{
			Orders:    services.orders,
			BatchSize: batch,
			Every:     5 * time.Minute,
		},
		&croncore.CartExpiryJob{
			Cart:      services.cart,
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
			Checkout:  services.checkout,
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
