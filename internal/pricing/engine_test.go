package pricing

import (
	"testing"
	"time"

	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testEngine() *Engine {
	return NewEngine(Params{
		TaxRate:            dec("0.18"),
		PlatformFee:        dec("10"),
		DeliveryBaseFee:    dec("20"),
		DeliveryPerKm:      dec("5"),
		DeliveryFreeRadius: dec("3"),
		DeliveryFeeCap:     dec("80"),
	})
}

func TestQuoteItemizedTotals(t *testing.T) {
	engine := testEngine()

	quote, err := engine.Quote(Input{
		Lines: []Line{
			{ItemID: uuid.New(), UnitPrice: dec("250"), Quantity: 2},
			{ItemID: uuid.New(), UnitPrice: dec("100"), AddOnsPrice: dec("50"), Quantity: 1},
		},
		DistanceKm: dec("5"),
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	if !quote.Subtotal.Equal(dec("650")) {
		t.Fatalf("subtotal = %s, want 650", quote.Subtotal)
	}
	if !quote.Tax.Equal(dec("117")) {
		t.Fatalf("tax = %s, want 117", quote.Tax)
	}
	// base 20 + 2 extra km x 5
	if !quote.DeliveryFee.Equal(dec("30")) {
		t.Fatalf("delivery fee = %s, want 30", quote.DeliveryFee)
	}
	if !quote.GrandTotal.Equal(dec("807")) {
		t.Fatalf("grand total = %s, want 807", quote.GrandTotal)
	}
}

func TestQuoteIsDeterministic(t *testing.T) {
	engine := testEngine()
	input := Input{
		Lines:      []Line{{ItemID: uuid.New(), UnitPrice: dec("99.99"), Quantity: 3}},
		DistanceKm: dec("12"),
	}

	first, err := engine.Quote(input)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	second, err := engine.Quote(input)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !first.GrandTotal.Equal(second.GrandTotal) {
		t.Fatalf("quotes differ: %s vs %s", first.GrandTotal, second.GrandTotal)
	}
}

func TestQuoteCouponRules(t *testing.T) {
	engine := testEngine()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	lines := []Line{{ItemID: uuid.New(), UnitPrice: dec("500"), Quantity: 1}}

	t.Run("percent capped", func(t *testing.T) {
		quote, err := engine.Quote(Input{
			Lines: lines,
			Now:   now,
			Coupon: &Coupon{
				Code:      "SAVE20",
				Percent:   dec("0.20"),
				MaxAmount: dec("50"),
				ExpiresAt: now.Add(time.Hour),
			},
		})
		if err != nil {
			t.Fatalf("Quote: %v", err)
		}
		if !quote.Discount.Equal(dec("50")) {
			t.Fatalf("discount = %s, want 50", quote.Discount)
		}
	})

	t.Run("expired rejected", func(t *testing.T) {
		_, err := engine.Quote(Input{
			Lines:  lines,
			Now:    now,
			Coupon: &Coupon{Code: "OLD", Flat: dec("10"), ExpiresAt: now.Add(-time.Hour)},
		})
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("below minimum rejected", func(t *testing.T) {
		_, err := engine.Quote(Input{
			Lines:  lines,
			Now:    now,
			Coupon: &Coupon{Code: "BIG", Flat: dec("100"), MinOrder: dec("1000"), ExpiresAt: now.Add(time.Hour)},
		})
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})
}

func TestQuoteWalletNeverOverdraws(t *testing.T) {
	engine := testEngine()
	quote, err := engine.Quote(Input{
		Lines:         []Line{{ItemID: uuid.New(), UnitPrice: dec("50"), Quantity: 1}},
		WalletBalance: dec("10000"),
		UseWallet:     true,
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if quote.GrandTotal.IsNegative() {
		t.Fatalf("grand total went negative: %s", quote.GrandTotal)
	}
	if !quote.GrandTotal.Equal(decimal.Zero) {
		t.Fatalf("expected fully wallet-covered order, got %s", quote.GrandTotal)
	}
}

func TestQuoteRejectsEmptyCart(t *testing.T) {
	_, err := testEngine().Quote(Input{})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeliveryFeeCap(t *testing.T) {
	engine := testEngine()
	quote, err := engine.Quote(Input{
		Lines:      []Line{{ItemID: uuid.New(), UnitPrice: dec("10"), Quantity: 1}},
		DistanceKm: dec("100"),
	})
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !quote.DeliveryFee.Equal(dec("80")) {
		t.Fatalf("delivery fee = %s, want capped 80", quote.DeliveryFee)
	}
}
