package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/giftlane/giftlane-backend/api/controllers"
	webhookcontrollers "github.com/giftlane/giftlane-backend/api/controllers/webhooks"
	"github.com/giftlane/giftlane-backend/api/middleware"
	cartsvc "github.com/giftlane/giftlane-backend/internal/cart"
	checkoutsvc "github.com/giftlane/giftlane-backend/internal/checkout"
	cronsvc "github.com/giftlane/giftlane-backend/internal/cron"
	orderssvc "github.com/giftlane/giftlane-backend/internal/orders"
	paymentssvc "github.com/giftlane/giftlane-backend/internal/payments"
	walletsvc "github.com/giftlane/giftlane-backend/internal/wallet"
	"github.com/giftlane/giftlane-backend/pkg/config"
	"github.com/giftlane/giftlane-backend/pkg/enums"
	"github.com/giftlane/giftlane-backend/pkg/logger"
	"github.com/giftlane/giftlane-backend/pkg/razorpay"
)

// Deps carries everything the HTTP surface needs. The cron service is
// optional; without it the sweep triggers 404.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Gateway  *razorpay.Client
	Cart     *cartsvc.Service
	Checkout *checkoutsvc.Service
	Orders   *orderssvc.Service
	Payments *paymentssvc.Service
	Wallet   *walletsvc.Service
	Cron     *cronsvc.Service
	Registry *prometheus.Registry
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    deps.DB,
			"redis": deps.Redis,
		}))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.PaymentWebhook(deps.Payments, deps.Gateway, logg))
		r.Post("/courier", webhookcontrollers.CourierWebhook(deps.Orders, cfg.Courier.WebhookToken, logg))
	})

	// Cart and checkout serve guests on a session header; a bearer token, if
	// present, takes precedence for ownership.
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Get("/", controllers.CartFetch(deps.Cart, logg))
		r.Post("/items", controllers.CartAdd(deps.Cart, logg))
		r.Patch("/items/{lineID}", controllers.CartUpdateQuantity(deps.Cart, logg))
		r.Delete("/items/{lineID}", controllers.CartRemove(deps.Cart, logg))
		r.Delete("/", controllers.CartClear(deps.Cart, logg))
	})

	r.Route("/api/v1/checkout", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Post("/", controllers.CheckoutBegin(deps.Checkout, deps.Gateway, logg))
	})

	r.Route("/api/v1/orders", func(r chi.Router) {
		r.Use(middleware.OptionalAuth(cfg.JWT, logg))
		r.Get("/", controllers.OrdersList(deps.Orders, logg))
		r.Get("/{orderID}", controllers.OrderFetch(deps.Orders, logg))
		r.Get("/{orderID}/history", controllers.OrderHistory(deps.Orders, logg))
		r.Post("/{orderID}/cancel", controllers.OrderCancel(deps.Orders, deps.Payments, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.RequireRole(logg, enums.ActorRoleCustomer, enums.ActorRolePartner, enums.ActorRoleAdmin))
			r.Post("/{orderID}/transition", controllers.OrderTransition(deps.Orders, logg))
		})
	})

	r.Route("/api/v1/wallet", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Get("/", controllers.WalletBalance(deps.Wallet, logg))
		r.Get("/transactions", controllers.WalletHistory(deps.Wallet, logg))
	})

	r.Route("/api/internal/v1", func(r chi.Router) {
		r.Use(middleware.InternalAuth(cfg.Internal.SweepToken, logg))
		r.Post("/sweeps/{name}", controllers.SweepRun(deps.Cron, logg))
		if deps.Registry != nil {
			r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
		}
	})

	return r
}
