package migrate

import (
	"context"
	"fmt"

	"github.com/giftlane/giftlane-backend/pkg/config"
	"github.com/giftlane/giftlane-backend/pkg/db"
	"github.com/giftlane/giftlane-backend/pkg/db/models"
	"github.com/giftlane/giftlane-backend/pkg/logger"
	"gorm.io/gorm"
)

// All lists every model the engine persists, in dependency order.
func All() []any {
	return []any{
		&models.Item{},
		&models.ItemVariant{},
		&models.Address{},
		&models.PartnerProfile{},
		&models.Coupon{},
		&models.CartItem{},
		&models.CartReservation{},
		&models.DraftOrder{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderStatusHistory{},
		&models.WalletBalance{},
		&models.WalletTransaction{},
	}
}

// Run applies GORM auto-migration for the full schema.
func Run(ctx context.Context, conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db connection required")
	}
	return conn.WithContext(ctx).AutoMigrate(All()...)
}

// MaybeRunDev migrates automatically when running in dev mode with the
// feature flag enabled.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.Flags.AutoMigrate {
		return nil
	}

	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "running schema auto-migration (dev)")

	if err := Run(ctx, client.DB()); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	logg.Info(ctx, "schema auto-migration completed")
	return nil
}
