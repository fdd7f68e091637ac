package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PartnerProfile carries the fulfillment partner facts the lifecycle engine
// needs: pickup address and the commission rate used at settlement.
type PartnerProfile struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	BusinessName    string          `gorm:"column:business_name;not null"`
	PickupAddressID uuid.UUID       `gorm:"column:pickup_address_id;type:uuid;not null"`
	CommissionRate  decimal.Decimal `gorm:"column:commission_rate;type:numeric;not null"`
	Active          bool            `gorm:"column:active;not null;default:true"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PartnerProfile) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
