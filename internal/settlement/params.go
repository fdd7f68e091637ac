package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/giftlane/giftlane-backend/pkg/config"
)

// ParamsFromConfig parses the deployment's settlement and cashback rates.
func ParamsFromConfig(cfg config.SettlementConfig) (Params, error) {
	var params Params
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"default commission rate", cfg.DefaultCommissionRate, &params.DefaultCommissionRate},
		{"gateway fee rate", cfg.GatewayFeeRate, &params.GatewayFeeRate},
		{"platform fee", cfg.PlatformFee, &params.PlatformFee},
		{"cashback rate", cfg.CashbackRate, &params.CashbackRate},
		{"cashback min", cfg.CashbackMin, &params.CashbackMin},
		{"cashback max", cfg.CashbackMax, &params.CashbackMax},
	}
	for _, f := range fields {
		value, err := decimal.NewFromString(f.raw)
		if err != nil {
			return Params{}, fmt.Errorf("settlement: invalid %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = value
	}
	return params, nil
}
