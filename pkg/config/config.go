package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	Service    ServiceConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Razorpay   RazorpayConfig
	Courier    CourierConfig
	Checkout   CheckoutConfig
	Pricing    PricingConfig
	Orders     OrdersConfig
	Settlement SettlementConfig
	Dispatch   DispatchConfig
	Internal   InternalConfig
	Flags      FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GIFTLANE_APP_ENV" required:"true"`
	Port         string `envconfig:"GIFTLANE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GIFTLANE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GIFTLANE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GIFTLANE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GIFTLANE_DB_DSN"`
	Driver string `envconfig:"GIFTLANE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"GIFTLANE_DB_HOST"`
	Port     int    `envconfig:"GIFTLANE_DB_PORT" default:"5432"`
	User     string `envconfig:"GIFTLANE_DB_USER"`
	Password string `envconfig:"GIFTLANE_DB_PASSWORD"`
	Name     string `envconfig:"GIFTLANE_DB_NAME"`
	SSLMode  string `envconfig:"GIFTLANE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GIFTLANE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GIFTLANE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GIFTLANE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GIFTLANE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("db: either GIFTLANE_DB_DSN or host/user/name must be set")
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	q := dsn.Query()
	q.Set("sslmode", d.SSLMode)
	dsn.RawQuery = q.Encode()
	d.DSN = dsn.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"GIFTLANE_REDIS_URL"`
	Address      string        `envconfig:"GIFTLANE_REDIS_ADDR"`
	Password     string        `envconfig:"GIFTLANE_REDIS_PASSWORD"`
	DB           int           `envconfig:"GIFTLANE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GIFTLANE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GIFTLANE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GIFTLANE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GIFTLANE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GIFTLANE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GIFTLANE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GIFTLANE_JWT_ISSUER" default:"giftlane"`
	ExpirationMinutes int    `envconfig:"GIFTLANE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type RazorpayConfig struct {
	KeyID         string `envconfig:"GIFTLANE_RAZORPAY_KEY_ID" required:"true"`
	KeySecret     string `envconfig:"GIFTLANE_RAZORPAY_KEY_SECRET" required:"true"`
	WebhookSecret string `envconfig:"GIFTLANE_RAZORPAY_WEBHOOK_SECRET" required:"true"`
}

type CourierConfig struct {
	BaseURL      string        `envconfig:"GIFTLANE_COURIER_BASE_URL"`
	APIToken     string        `envconfig:"GIFTLANE_COURIER_API_TOKEN"`
	WebhookToken string        `envconfig:"GIFTLANE_COURIER_WEBHOOK_TOKEN"`
	PickupName   string        `envconfig:"GIFTLANE_COURIER_PICKUP_NAME" default:"primary"`
	HTTPTimeout  time.Duration `envconfig:"GIFTLANE_COURIER_HTTP_TIMEOUT" default:"15s"`
}

type CheckoutConfig struct {
	ReservationTTL time.Duration `envconfig:"GIFTLANE_RESERVATION_TTL" default:"10m"`
	CartIdleTTL    time.Duration `envconfig:"GIFTLANE_CART_IDLE_TTL" default:"30m"`
	DraftOrderTTL  time.Duration `envconfig:"GIFTLANE_DRAFT_ORDER_TTL" default:"2h"`
}

// PricingConfig carries decimal rates as strings; parsing happens once at
// wire-up, keeping envconfig free of custom decoders.
type PricingConfig struct {
	TaxRate            string `envconfig:"GIFTLANE_TAX_RATE" default:"0.18"`
	PlatformFee        string `envconfig:"GIFTLANE_CHECKOUT_PLATFORM_FEE" default:"10"`
	DeliveryBaseFee    string `envconfig:"GIFTLANE_DELIVERY_BASE_FEE" default:"30"`
	DeliveryPerKm      string `envconfig:"GIFTLANE_DELIVERY_PER_KM" default:"7"`
	DeliveryFreeRadius string `envconfig:"GIFTLANE_DELIVERY_FREE_RADIUS_KM" default:"3"`
	DeliveryFeeCap     string `envconfig:"GIFTLANE_DELIVERY_FEE_CAP" default:"120"`
}

type OrdersConfig struct {
	AcceptDeadline time.Duration `envconfig:"GIFTLANE_ACCEPT_DEADLINE" default:"5m"`
	DesignDeadline time.Duration `envconfig:"GIFTLANE_DESIGN_DEADLINE" default:"24h"`
	SweepBatchSize int           `envconfig:"GIFTLANE_SWEEP_BATCH_SIZE" default:"100"`
}

type SettlementConfig struct {
	DefaultCommissionRate string `envconfig:"GIFTLANE_DEFAULT_COMMISSION_RATE" default:"0.15"`
	GatewayFeeRate        string `envconfig:"GIFTLANE_GATEWAY_FEE_RATE" default:"0.02"`
	PlatformFee           string `envconfig:"GIFTLANE_PLATFORM_FEE" default:"10"`
	CashbackRate          string `envconfig:"GIFTLANE_CASHBACK_RATE" default:"0.02"`
	CashbackMin           string `envconfig:"GIFTLANE_CASHBACK_MIN" default:"5"`
	CashbackMax           string `envconfig:"GIFTLANE_CASHBACK_MAX" default:"50"`
}

type DispatchConfig struct {
	MaxAttempts  int           `envconfig:"GIFTLANE_DISPATCH_MAX_ATTEMPTS" default:"3"`
	RetryDelay   time.Duration `envconfig:"GIFTLANE_DISPATCH_RETRY_DELAY" default:"30s"`
	PackageNote  string        `envconfig:"GIFTLANE_DISPATCH_PACKAGE_NOTE" default:"handle with care"`
	WeightPerQty string        `envconfig:"GIFTLANE_DISPATCH_WEIGHT_PER_QTY_KG" default:"0.35"`
}

type InternalConfig struct {
	SweepToken string `envconfig:"GIFTLANE_INTERNAL_SWEEP_TOKEN" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"GIFTLANE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"GIFTLANE_AUTO_MIGRATE" default:"false"`
}
