package models

import (
	"time"

	"github.com/giftlane/giftlane-backend/pkg/enums"
	"github.com/giftlane/giftlane-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatusHistory is the append-only audit ledger. One row per transition
// or notable side effect; rows are never updated or reordered. The Metadata
// column is the only place the "why" of a transition is recorded (for example
// {"reason": "deadline_expired"}).
type OrderStatusHistory struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	Type        enums.HistoryEntryType `gorm:"column:type;not null"`
	Title       string                 `gorm:"column:title;not null"`
	Description string                 `gorm:"column:description"`
	FromStatus  *enums.OrderStatus     `gorm:"column:from_status"`
	ToStatus    *enums.OrderStatus     `gorm:"column:to_status"`
	Metadata    types.JSONMap          `gorm:"column:metadata;type:jsonb"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime;index"`
}

func (h *OrderStatusHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
