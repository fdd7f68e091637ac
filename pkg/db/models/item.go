package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Item is a catalog row owned by a fulfillment partner.
type Item struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	PartnerID           uuid.UUID       `gorm:"column:partner_id;type:uuid;not null;index"`
	Name                string          `gorm:"column:name;not null"`
	Price               decimal.Decimal `gorm:"column:price;type:numeric;not null"`
	StockQuantity       int             `gorm:"column:stock_quantity;not null;default:0"`
	SupportsPersonalize bool            `gorm:"column:supports_personalize;not null;default:false"`
	WeightKg            decimal.Decimal `gorm:"column:weight_kg;type:numeric;not null;default:0"`
	Active              bool            `gorm:"column:active;not null;default:true"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Item) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// ItemVariant is an optional per-item variant carrying its own stock and price delta.
type ItemVariant struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ItemID        uuid.UUID       `gorm:"column:item_id;type:uuid;not null;index"`
	Label         string          `gorm:"column:label;not null"`
	PriceDelta    decimal.Decimal `gorm:"column:price_delta;type:numeric;not null;default:0"`
	StockQuantity int             `gorm:"column:stock_quantity;not null;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ItemVariant) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
