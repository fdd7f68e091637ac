package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartReservation is a soft stock hold. A row is active iff ExpiresAt is in
// the future; availability reads ignore expired rows without writing, and a
// periodic sweep physically deletes them for storage hygiene only.
type CartReservation struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	ItemID    uuid.UUID  `gorm:"column:item_id;type:uuid;not null;index"`
	VariantID *uuid.UUID `gorm:"column:variant_id;type:uuid;index"`
	OwnerKey  string     `gorm:"column:owner_key;not null;index"`
	Quantity  int        `gorm:"column:quantity;not null"`
	ExpiresAt time.Time  `gorm:"column:expires_at;not null;index"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (r *CartReservation) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
