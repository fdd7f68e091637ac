package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	cartsvc "github.com/giftlane/giftlane-backend/internal/cart"
	checkoutsvc "github.com/giftlane/giftlane-backend/internal/checkout"
	cronsvc "github.com/giftlane/giftlane-backend/internal/cron"
	orderssvc "github.com/giftlane/giftlane-backend/internal/orders"
	paymentssvc "github.com/giftlane/giftlane-backend/internal/payments"
	"github.com/giftlane/giftlane-backend/internal/pricing"
	walletsvc "github.com/giftlane/giftlane-backend/internal/wallet"
	pkgAuth "github.com/giftlane/giftlane-backend/pkg/auth"
	"github.com/giftlane/giftlane-backend/pkg/config"
	"github.com/giftlane/giftlane-backend/pkg/db/models"
	"github.com/giftlane/giftlane-backend/pkg/enums"
	"github.com/giftlane/giftlane-backend/pkg/logger"
	"github.com/giftlane/giftlane-backend/pkg/razorpay"
	"github.com/giftlane/giftlane-backend/pkg/types"
)

const (
	testJWTSecret  = "jwt-test-secret"
	testJWTIssuer  = "giftlane-test"
	testSweepToken = "sweep-test-token"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubGateway struct{}

func (stubGateway) CreateOrder(context.Context, int64, string, map[string]any) (string, error) {
	return "order_stub", nil
}

type stubWalletReader struct{}

func (stubWalletReader) Balance(context.Context, uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

type stubWalletOps struct{}

func (stubWalletOps) Debit(context.Context, *gorm.DB, uuid.UUID, decimal.Decimal, *uuid.UUID, types.JSONMap) error {
	return nil
}

func (stubWalletOps) Credit(context.Context, *gorm.DB, uuid.UUID, decimal.Decimal, enums.WalletTransactionType, *uuid.UUID, types.JSONMap) error {
	return nil
}

type stubRefunder struct{}

func (stubRefunder) Refund(context.Context, string, int64, map[string]any) (string, error) {
	return "rfnd_stub", nil
}

type memoryLock struct {
	held map[string]string
}

func (m *memoryLock) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.held[key]; ok {
		return false, nil
	}
	m.held[key] = value.(string)
	return true, nil
}

func (m *memoryLock) Get(_ context.Context, key string) (string, error) { return m.held[key], nil }

func (m *memoryLock) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.held, key)
	}
	return nil
}

func (m *memoryLock) LockKey(name string) string { return "lock:" + name }

type countingJob struct{ runs int }

func (j *countingJob) Name() string            { return "cart_expiry" }
func (j *countingJob) Interval() time.Duration { return time.Minute }
func (j *countingJob) Run(context.Context) (int, error) {
	j.runs++
	return 3, nil
}

type testEnv struct {
	db      *gorm.DB
	handler http.Handler
	cfg     *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&models.Item{}, &models.ItemVariant{}, &models.CartItem{}, &models.CartReservation{},
		&models.Coupon{}, &models.DraftOrder{}, &models.Order{}, &models.OrderItem{},
		&models.OrderStatusHistory{}, &models.WalletBalance{}, &models.WalletTransaction{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard})

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: testJWTSecret, Issuer: testJWTIssuer, ExpirationMinutes: 15}
	cfg.Internal.SweepToken = testSweepToken
	cfg.Courier.WebhookToken = "courier-test-token"

	cart, err := cartsvc.NewService(db, 10*time.Minute)
	if err != nil {
		t.Fatalf("cart service: %v", err)
	}
	engine := pricing.NewEngine(pricing.Params{})
	checkout, err := checkoutsvc.NewService(db, stubGateway{}, stubWalletReader{}, engine)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}
	repo, err := orderssvc.NewRepository(db)
	if err != nil {
		t.Fatalf("orders repo: %v", err)
	}
	ordersService, err := orderssvc.NewService(repo, logg)
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	paymentsService, err := paymentssvc.NewService(db, ordersService, stubWalletOps{}, stubRefunder{}, logg, 5*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("payments service: %v", err)
	}
	wallet, err := walletsvc.NewService(db)
	if err != nil {
		t.Fatalf("wallet service: %v", err)
	}

	registry := cronsvc.NewRegistry()
	if err := registry.Register(&countingJob{}); err != nil {
		t.Fatalf("register job: %v", err)
	}
	cronService, err := cronsvc.NewService(registry, &memoryLock{held: map[string]string{}}, nil, logg)
	if err != nil {
		t.Fatalf("cron service: %v", err)
	}

	gateway, err := razorpay.NewClient(context.Background(), config.RazorpayConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     "rzp_test_secret",
		WebhookSecret: "whsec_test",
	}, logg)
	if err != nil {
		t.Fatalf("razorpay client: %v", err)
	}

	handler := NewRouter(Deps{
		Config:   cfg,
		Logger:   logg,
		DB:       stubPinger{},
		Redis:    stubPinger{},
		Gateway:  gateway,
		Cart:     cart,
		Checkout: checkout,
		Orders:   ordersService,
		Payments: paymentsService,
		Wallet:   wallet,
		Cron:     cronService,
	})

	return &testEnv{db: db, handler: handler, cfg: cfg}
}

func mintToken(t *testing.T, cfg *config.Config, userID uuid.UUID, role enums.ActorRole, partnerID *uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID:    userID,
		PartnerID: partnerID,
		Role:      role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func do(env *testEnv, method, path, token, session string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if session != "" {
		req.Header.Set("X-Session-Id", session)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthLive(t *testing.T) {
	env := newTestEnv(t)
	rec := do(env, http.MethodGet, "/health/live", "", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestWalletRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := do(env, http.MethodGet, "/api/v1/wallet", "", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	token := mintToken(t, env.cfg, uuid.New(), enums.ActorRoleCustomer, nil)
	rec = do(env, http.MethodGet, "/api/v1/wallet", token, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d (%s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"balance":"0"`) {
		t.Fatalf("expected zero balance, got %s", rec.Body.String())
	}
}

func TestGuestCartNeedsSessionHeader(t *testing.T) {
	env := newTestEnv(t)

	rec := do(env, http.MethodGet, "/api/v1/cart", "", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without session header, got %d", rec.Code)
	}

	rec = do(env, http.MethodGet, "/api/v1/cart", "", "sess-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with session header, got %d (%s)", rec.Code, rec.Body.String())
	}
}

func TestSweepTriggerAuthAndRun(t *testing.T) {
	env := newTestEnv(t)

	rec := do(env, http.MethodPost, "/api/internal/v1/sweeps/cart_expiry", "", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without sweep token, got %d", rec.Code)
	}

	rec = do(env, http.MethodPost, "/api/internal/v1/sweeps/cart_expiry", testSweepToken, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with sweep token, got %d (%s)", rec.Code, rec.Body.String())
	}
	if strings.TrimSpace(rec.Body.String()) != `{"processed":3}` {
		t.Fatalf("unexpected sweep body: %s", rec.Body.String())
	}

	rec = do(env, http.MethodPost, "/api/internal/v1/sweeps/no_such_job", testSweepToken, "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sweep, got %d", rec.Code)
	}
}

func TestTransitionRoleGating(t *testing.T) {
	env := newTestEnv(t)
	userID := uuid.New()

	order := &models.Order{
		OrderNumber:    "GL-20260830-" + uuid.NewString()[:8],
		OwnerKey:       "user:" + userID.String(),
		UserID:         &userID,
		PartnerID:      uuid.New(),
		AddressID:      uuid.New(),
		Status:         enums.OrderStatusPlaced,
		PaymentStatus:  enums.PaymentStatusCaptured,
		GatewayOrderID: "order_" + uuid.NewString()[:13],
		Subtotal:       decimal.NewFromInt(500),
		GrandTotal:     decimal.NewFromInt(630),
		AcceptDeadline: time.Now().Add(time.Hour),
		DeliveryMode:   enums.DeliveryModeCourier,
	}
	if err := env.db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	path := "/api/v1/orders/" + order.ID.String() + "/transition"
	body := `{"to":"confirmed"}`

	rec := do(env, http.MethodPost, path, "", "", body)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	// The shopper owns the order but only the partner may accept it.
	customer := mintToken(t, env.cfg, userID, enums.ActorRoleCustomer, nil)
	rec = do(env, http.MethodPost, path, customer, "", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer accept, got %d (%s)", rec.Code, rec.Body.String())
	}

	partner := mintToken(t, env.cfg, uuid.New(), enums.ActorRolePartner, &order.PartnerID)
	rec = do(env, http.MethodPost, path, partner, "", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for partner accept, got %d (%s)", rec.Code, rec.Body.String())
	}

	var got models.Order
	if err := env.db.First(&got, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if got.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", got.Status)
	}
}

func TestOrderHiddenFromStrangers(t *testing.T) {
	env := newTestEnv(t)
	ownerID := uuid.New()

	order := &models.Order{
		OrderNumber:    "GL-20260830-" + uuid.NewString()[:8],
		OwnerKey:       "user:" + ownerID.String(),
		UserID:         &ownerID,
		PartnerID:      uuid.New(),
		AddressID:      uuid.New(),
		Status:         enums.OrderStatusPlaced,
		PaymentStatus:  enums.PaymentStatusCaptured,
		GatewayOrderID: "order_" + uuid.NewString()[:13],
		Subtotal:       decimal.NewFromInt(100),
		GrandTotal:     decimal.NewFromInt(130),
		AcceptDeadline: time.Now().Add(time.Hour),
		DeliveryMode:   enums.DeliveryModeCourier,
	}
	if err := env.db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	path := "/api/v1/orders/" + order.ID.String()

	owner := mintToken(t, env.cfg, ownerID, enums.ActorRoleCustomer, nil)
	rec := do(env, http.MethodGet, path, owner, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("owner fetch: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	stranger := mintToken(t, env.cfg, uuid.New(), enums.ActorRoleCustomer, nil)
	rec = do(env, http.MethodGet, path, stranger, "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("stranger fetch: expected 404, got %d", rec.Code)
	}

	otherPartner := uuid.New()
	foreignPartner := mintToken(t, env.cfg, uuid.New(), enums.ActorRolePartner, &otherPartner)
	rec = do(env, http.MethodGet, path, foreignPartner, "", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign partner fetch: expected 404, got %d", rec.Code)
	}

	admin := mintToken(t, env.cfg, uuid.New(), enums.ActorRoleAdmin, nil)
	rec = do(env, http.MethodGet, path, admin, "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("admin fetch: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
}
