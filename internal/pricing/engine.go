package pricing

import (
	"time"

	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Line is one cart line as seen by the pricing engine.
type Line struct {
	ItemID      uuid.UUID
	VariantID   *uuid.UUID
	Name        string
	UnitPrice   decimal.Decimal
	AddOnsPrice decimal.Decimal
	Quantity    int
}

// Coupon is a validated discount definition.
type Coupon struct {
	Code      string
	Percent   decimal.Decimal
	Flat      decimal.Decimal
	MinOrder  decimal.Decimal
	MaxAmount decimal.Decimal
	ExpiresAt time.Time
}

// Input bundles everything the engine needs for one quote.
type Input struct {
	Lines         []Line
	DistanceKm    decimal.Decimal
	Coupon        *Coupon
	WalletBalance decimal.Decimal
	UseWallet     bool
	Now           time.Time
}

// Quote is the itemized output. All amounts are base currency units.
type Quote struct {
	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	DeliveryFee   decimal.Decimal
	PlatformFee   decimal.Decimal
	Discount      decimal.Decimal
	WalletApplied decimal.Decimal
	GrandTotal    decimal.Decimal
}

// Params fix the platform-wide rates. They are constants per deployment, not
// per request.
type Params struct {
	TaxRate            decimal.Decimal
	PlatformFee        decimal.Decimal
	DeliveryBaseFee    decimal.Decimal
	DeliveryPerKm      decimal.Decimal
	DeliveryFreeRadius decimal.Decimal
	DeliveryFeeCap     decimal.Decimal
}

// Engine computes itemized cart totals. It is stateless and deterministic:
// the same input always yields the same quote.
type Engine struct {
	params Params
}

// NewEngine builds a pricing engine with the provided rates.
func NewEngine(params Params) *Engine {
	return &Engine{params: params}
}

// Quote prices the cart. Validation failures (empty cart, non-positive
// quantity, expired coupon) surface synchronously with no side effects.
func (e *Engine) Quote(input Input) (*Quote, error) {
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	subtotal := decimal.Zero
	for _, line := range input.Lines {
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		if line.UnitPrice.IsNegative() || line.AddOnsPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line price must not be negative")
		}
		qty := decimal.NewFromInt(int64(line.Quantity))
		subtotal = subtotal.Add(line.UnitPrice.Add(line.AddOnsPrice).Mul(qty))
	}

	discount, err := e.couponDiscount(input, subtotal)
	if err != nil {
		return nil, err
	}

	tax := subtotal.Sub(discount).Mul(e.params.TaxRate).Round(2)
	if tax.IsNegative() {
		tax = decimal.Zero
	}
	deliveryFee := e.deliveryFee(input.DistanceKm)
	platformFee := e.params.PlatformFee

	payable := subtotal.Add(tax).Add(deliveryFee).Add(platformFee).Sub(discount)
	if payable.IsNegative() {
		payable = decimal.Zero
	}

	walletApplied := decimal.Zero
	if input.UseWallet && input.WalletBalance.IsPositive() {
		walletApplied = decimal.Min(input.WalletBalance, payable)
	}

	grandTotal := payable.Sub(walletApplied).Round(2)

	return &Quote{
		Subtotal:      subtotal.Round(2),
		Tax:           tax,
		DeliveryFee:   deliveryFee,
		PlatformFee:   platformFee,
		Discount:      discount.Round(2),
		WalletApplied: walletApplied.Round(2),
		GrandTotal:    grandTotal,
	}, nil
}

func (e *Engine) couponDiscount(input Input, subtotal decimal.Decimal) (decimal.Decimal, error) {
	coupon := input.Coupon
	if coupon == nil {
		return decimal.Zero, nil
	}
	now := input.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if !coupon.ExpiresAt.IsZero() && coupon.ExpiresAt.Before(now) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "coupon expired")
	}
	if subtotal.LessThan(coupon.MinOrder) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "order below coupon minimum")
	}

	discount := coupon.Flat
	if coupon.Percent.IsPositive() {
		discount = discount.Add(subtotal.Mul(coupon.Percent))
	}
	if coupon.MaxAmount.IsPositive() {
		discount = decimal.Min(discount, coupon.MaxAmount)
	}
	return decimal.Min(discount, subtotal), nil
}

func (e *Engine) deliveryFee(distanceKm decimal.Decimal) decimal.Decimal {
	if distanceKm.IsNegative() {
		distanceKm = decimal.Zero
	}
	fee := e.params.DeliveryBaseFee
	extra := distanceKm.Sub(e.params.DeliveryFreeRadius)
	if extra.IsPositive() {
		fee = fee.Add(extra.Mul(e.params.DeliveryPerKm))
	}
	if e.params.DeliveryFeeCap.IsPositive() {
		fee = decimal.Min(fee, e.params.DeliveryFeeCap)
	}
	return fee.Round(2)
}
