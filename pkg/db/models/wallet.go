package models

import (
	"time"

	"github.com/giftlane/giftlane-backend/pkg/enums"
	"github.com/giftlane/giftlane-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletBalance holds the current credit per user, maintained by upsert.
type WalletBalance struct {
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;primaryKey"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric;not null"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// WalletTransaction is an immutable ledger row explaining every balance change.
type WalletTransaction struct {
	ID        uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID   *uuid.UUID                  `gorm:"column:order_id;type:uuid;index"`
	Type      enums.WalletTransactionType `gorm:"column:type;not null"`
	Amount    decimal.Decimal             `gorm:"column:amount;type:numeric;not null"`
	Metadata  types.JSONMap               `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

func (t *WalletTransaction) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
