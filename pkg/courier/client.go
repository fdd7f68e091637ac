package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/giftlane/giftlane-backend/pkg/config"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

var (
	errBaseURLRequired = errors.New("courier base url is required")
	errTokenRequired   = errors.New("courier api token is required")
	errLoggerRequired  = errors.New("courier logger is required")
)

// Shipment is the request the courier API needs to book a pickup.
type Shipment struct {
	ClientOrderID string          `json:"order_id"`
	PickupName    string          `json:"pickup_location"`
	PickupAddress Address         `json:"pickup_address"`
	DropAddress   Address         `json:"drop_address"`
	WeightKg      decimal.Decimal `json:"weight"`
	Note          string          `json:"note,omitempty"`
}

// Address is the courier-side address shape.
type Address struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Line1   string `json:"address"`
	Line2   string `json:"address_2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pin_code"`
}

// Booking is the courier's response to a successful shipment creation.
type Booking struct {
	AWB         string `json:"awb_code"`
	TrackingURL string `json:"tracking_url"`
}

// Client calls the courier aggregator's HTTP API. The provider ships no Go
// SDK, so this wraps net/http directly.
type Client struct {
	baseURL    string
	token      string
	pickupName string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient validates configuration and builds the courier client.
func NewClient(ctx context.Context, cfg config.CourierConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	token := strings.TrimSpace(cfg.APIToken)
	if token == "" {
		return nil, errTokenRequired
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		baseURL:    baseURL,
		token:      token,
		pickupName: cfg.PickupName,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logg,
	}
	logg.Info(ctx, "courier client initialized")
	return c, nil
}

// PickupName returns the configured registered-pickup label.
func (c *Client) PickupName() string {
	if c == nil {
		return ""
	}
	return c.pickupName
}

// CreateShipment books a shipment and returns the AWB and tracking URL.
func (c *Client) CreateShipment(ctx context.Context, shipment Shipment) (*Booking, error) {
	if shipment.ClientOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "client order id required")
	}

	body, err := json.Marshal(shipment)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode shipment")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/external/shipments/create/adhoc", bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build shipment request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call courier api")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read courier response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, pkgerrors.New(pkgerrors.CodeDependency,
			fmt.Sprintf("courier api status %d: %s", resp.StatusCode, truncate(string(raw), 200)))
	}

	var booking Booking
	if err := json.Unmarshal(raw, &booking); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode courier response")
	}
	if booking.AWB == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "courier response missing awb")
	}

	logCtx := c.logger.WithField(ctx, "awb", booking.AWB)
	c.logger.Info(logCtx, "shipment booked")
	return &booking, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
