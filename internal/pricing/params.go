package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/giftlane/giftlane-backend/pkg/config"
)

// ParamsFromConfig parses the deployment's pricing rates. The config keeps
// them as strings so envconfig stays free of custom decoders; a malformed
// rate fails startup instead of mispricing carts.
func ParamsFromConfig(cfg config.PricingConfig) (Params, error) {
	var params Params
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"tax rate", cfg.TaxRate, &params.TaxRate},
		{"platform fee", cfg.PlatformFee, &params.PlatformFee},
		{"delivery base fee", cfg.DeliveryBaseFee, &params.DeliveryBaseFee},
		{"delivery per km", cfg.DeliveryPerKm, &params.DeliveryPerKm},
		{"delivery free radius", cfg.DeliveryFreeRadius, &params.DeliveryFreeRadius},
		{"delivery fee cap", cfg.DeliveryFeeCap, &params.DeliveryFeeCap},
	}
	for _, f := range fields {
		value, err := decimal.NewFromString(f.raw)
		if err != nil {
			return Params{}, fmt.Errorf("pricing: invalid %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = value
	}
	return params, nil
}
