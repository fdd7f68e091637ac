package models

import (
	"time"

	"github.com/giftlane/giftlane-backend/pkg/enums"
	"github.com/giftlane/giftlane-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderItem is the snapshot of one line inside an order. Personalized items
// carry their own sub-status that advances independently of the parent order.
type OrderItem struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ItemID    uuid.UUID  `gorm:"column:item_id;type:uuid;not null"`
	VariantID *uuid.UUID `gorm:"column:variant_id;type:uuid"`
	Name      string     `gorm:"column:name;not null"`
	Quantity  int        `gorm:"column:quantity;not null"`

	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric;not null"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:numeric;not null"`
	AddOns    types.JSONMap   `gorm:"column:add_ons;type:jsonb"`

	Personalization       bool                        `gorm:"column:personalization;not null;default:false"`
	PersonalizationStatus enums.PersonalizationStatus `gorm:"column:personalization_status;not null;default:'none'"`
	PersonalizationNote   *string                     `gorm:"column:personalization_note"`
	PreviewURL            *string                     `gorm:"column:preview_url"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
