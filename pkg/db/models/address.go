package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Address is a delivery or pickup location.
type Address struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	Name      string     `gorm:"column:name;not null"`
	Phone     string     `gorm:"column:phone;not null"`
	Line1     string     `gorm:"column:line1;not null"`
	Line2     string     `gorm:"column:line2"`
	City      string     `gorm:"column:city;not null"`
	State     string     `gorm:"column:state;not null"`
	Pincode   string     `gorm:"column:pincode;not null"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Address) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
