package models

import (
	"time"

	"github.com/giftlane/giftlane-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is one line in a shopper's cart. OwnerKey is either the
// authenticated user id or an anonymous session id, so guest carts share the
// same storage. Rows are removed on checkout completion or by the idle sweep.
type CartItem struct {
	ID              uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	OwnerKey        string        `gorm:"column:owner_key;not null;index"`
	ItemID          uuid.UUID     `gorm:"column:item_id;type:uuid;not null"`
	VariantID       *uuid.UUID    `gorm:"column:variant_id;type:uuid"`
	Quantity        int           `gorm:"column:quantity;not null"`
	AddOns          types.JSONMap `gorm:"column:add_ons;type:jsonb"`
	Personalization bool          `gorm:"column:personalization;not null;default:false"`
	ReservationID   *uuid.UUID    `gorm:"column:reservation_id;type:uuid"`
	CreatedAt       time.Time     `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time     `gorm:"column:updated_at;autoUpdateTime;index"`
}

func (c *CartItem) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
