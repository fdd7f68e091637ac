package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Coupon is a platform discount code. Pricing rules live in the pricing
// engine; this row only carries the rates.
type Coupon struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Code      string          `gorm:"column:code;not null;uniqueIndex"`
	Percent   decimal.Decimal `gorm:"column:percent;type:numeric;not null;default:0"`
	Flat      decimal.Decimal `gorm:"column:flat;type:numeric;not null;default:0"`
	MinOrder  decimal.Decimal `gorm:"column:min_order;type:numeric;not null;default:0"`
	MaxAmount decimal.Decimal `gorm:"column:max_amount;type:numeric;not null;default:0"`
	ExpiresAt *time.Time      `gorm:"column:expires_at"`
	Active    bool            `gorm:"column:active;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
