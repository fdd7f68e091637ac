package models

import (
	"time"

	"github.com/giftlane/giftlane-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DraftOrder is the immutable priced snapshot of a cart created when checkout
// begins, keyed by the payment gateway's order reference. It is promoted to an
// Order by the payment confirmation gateway and deleted afterwards, or removed
// by the abandonment sweep if payment never arrives.
type DraftOrder struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OwnerKey       string          `gorm:"column:owner_key;not null;index"`
	UserID         *uuid.UUID      `gorm:"column:user_id;type:uuid"`
	PartnerID      uuid.UUID       `gorm:"column:partner_id;type:uuid;not null"`
	AddressID      uuid.UUID       `gorm:"column:address_id;type:uuid;not null"`
	GatewayOrderID string          `gorm:"column:gateway_order_id;not null;uniqueIndex"`
	Lines          types.JSONMap   `gorm:"column:lines;type:jsonb;not null"`
	Subtotal       decimal.Decimal `gorm:"column:subtotal;type:numeric;not null"`
	Tax            decimal.Decimal `gorm:"column:tax;type:numeric;not null"`
	DeliveryFee    decimal.Decimal `gorm:"column:delivery_fee;type:numeric;not null"`
	PlatformFee    decimal.Decimal `gorm:"column:platform_fee;type:numeric;not null"`
	Discount       decimal.Decimal `gorm:"column:discount;type:numeric;not null"`
	WalletApplied  decimal.Decimal `gorm:"column:wallet_applied;type:numeric;not null"`
	GrandTotal     decimal.Decimal `gorm:"column:grand_total;type:numeric;not null"`
	CouponCode     *string         `gorm:"column:coupon_code"`
	UseWallet      bool            `gorm:"column:use_wallet;not null;default:false"`
	GSTIN          *string         `gorm:"column:gstin"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime;index"`
}

func (d *DraftOrder) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
