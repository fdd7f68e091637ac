package razorpay

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rzpsdk "github.com/razorpay/razorpay-go"
	rzputils "github.com/razorpay/razorpay-go/utils"

	"github.com/giftlane/giftlane-backend/pkg/config"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
)

var (
	errKeyRequired           = errors.New("razorpay key id and secret are required")
	errWebhookSecretRequired = errors.New("razorpay webhook secret is required")
	errLoggerRequired        = errors.New("razorpay logger is required")
)

// Client wraps the Razorpay SDK with centralized auth, logging, and error
// mapping. All amounts crossing this boundary are minor currency units
// (paise); conversion happens via ToMinorUnits exactly once per call.
type Client struct {
	sdk           *rzpsdk.Client
	keyID         string
	webhookSecret string
	logger        *logger.Logger
}

// NewClient initializes the Razorpay wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keyID == "" || keySecret == "" {
		return nil, errKeyRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	c := &Client{
		sdk:           rzpsdk.NewClient(keyID, keySecret),
		keyID:         keyID,
		webhookSecret: webhookSecret,
		logger:        logg,
	}

	logg.Info(ctx, "razorpay client initialized")
	return c, nil
}

// KeyID returns the configured public key id.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// VerifyWebhookSignature checks the HMAC-SHA256 signature over the raw body.
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	if c == nil || signature == "" {
		return false
	}
	return rzputils.VerifyWebhookSignature(string(body), signature, c.webhookSecret)
}

// CreateOrder registers a gateway order for the given minor-unit amount and
// returns the gateway order id. Notes travel back on the capture webhook.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, receipt string, notes map[string]any) (string, error) {
	if amountMinor <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	data := map[string]any{
		"amount":   amountMinor,
		"currency": "INR",
		"receipt":  receipt,
		"notes":    notes,
	}
	order, err := c.sdk.Order.Create(data, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create gateway order")
	}
	id, ok := order["id"].(string)
	if !ok || id == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "gateway order response missing id")
	}
	logCtx := c.logger.WithField(ctx, "gateway_order_id", id)
	c.logger.Info(logCtx, "gateway order created")
	return id, nil
}

// Refund issues a refund against a captured payment and returns the gateway
// refund id.
func (c *Client) Refund(ctx context.Context, gatewayPaymentID string, amountMinor int64, notes map[string]any) (string, error) {
	if gatewayPaymentID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "gateway payment id required")
	}
	if amountMinor <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}
	data := map[string]any{
		"notes": notes,
	}
	refund, err := c.sdk.Payment.Refund(gatewayPaymentID, int(amountMinor), data, nil)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("refund payment %s", gatewayPaymentID))
	}
	id, ok := refund["id"].(string)
	if !ok || id == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "gateway refund response missing id")
	}
	logCtx := c.logger.WithField(ctx, "gateway_refund_id", id)
	c.logger.Info(logCtx, "gateway refund issued")
	return id, nil
}
