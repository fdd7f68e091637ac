package models

import (
	"time"

	"github.com/giftlane/giftlane-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is the aggregate root of the fulfillment lifecycle. It is created
// exactly once per captured payment (GatewayOrderID carries a unique index so
// duplicate webhook deliveries collapse onto the first insert) and is never
// physically deleted; CANCELLED, REFUNDED and DELIVERED are terminal.
//
// Status is mutated only through the orders service's guarded transition,
// which compare-and-swaps on the expected current status.
type Order struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber string    `gorm:"column:order_number;not null;uniqueIndex"`
	UserID      *uuid.UUID `gorm:"column:user_id;type:uuid;index"`
	OwnerKey    string    `gorm:"column:owner_key;not null;index"`
	PartnerID   uuid.UUID `gorm:"column:partner_id;type:uuid;not null;index"`
	AddressID   uuid.UUID `gorm:"column:address_id;type:uuid;not null"`

	Status        enums.OrderStatus   `gorm:"column:status;not null;default:'placed';index"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;not null;default:'pending'"`

	GatewayOrderID   string  `gorm:"column:gateway_order_id;not null;uniqueIndex"`
	GatewayPaymentID *string `gorm:"column:gateway_payment_id"`
	GatewayRefundID  *string `gorm:"column:gateway_refund_id"`

	Subtotal      decimal.Decimal `gorm:"column:subtotal;type:numeric;not null"`
	Tax           decimal.Decimal `gorm:"column:tax;type:numeric;not null"`
	DeliveryFee   decimal.Decimal `gorm:"column:delivery_fee;type:numeric;not null"`
	PlatformFee   decimal.Decimal `gorm:"column:platform_fee;type:numeric;not null"`
	Discount      decimal.Decimal `gorm:"column:discount;type:numeric;not null"`
	WalletApplied decimal.Decimal `gorm:"column:wallet_applied;type:numeric;not null"`
	GrandTotal    decimal.Decimal `gorm:"column:grand_total;type:numeric;not null"`
	CouponCode    *string         `gorm:"column:coupon_code"`
	GSTIN         *string         `gorm:"column:gstin"`

	HasPersonalization bool       `gorm:"column:has_personalization;not null;default:false"`
	AcceptDeadline     time.Time  `gorm:"column:accept_deadline;not null;index"`
	DesignDeadline     *time.Time `gorm:"column:design_deadline;index"`

	DeliveryMode enums.DeliveryMode `gorm:"column:delivery_mode;not null;default:'courier'"`
	AWB          *string            `gorm:"column:awb"`
	TrackingURL  *string            `gorm:"column:tracking_url"`

	CommissionAmount    *decimal.Decimal `gorm:"column:commission_amount;type:numeric"`
	NetSettlementAmount *decimal.Decimal `gorm:"column:net_settlement_amount;type:numeric"`
	SettledAt           *time.Time       `gorm:"column:settled_at"`

	DeliveredAt *time.Time `gorm:"column:delivered_at"`
	CancelledAt *time.Time `gorm:"column:cancelled_at"`

	Items   []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	History []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
