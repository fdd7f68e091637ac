package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/giftlane/giftlane-backend/pkg/db/models"
	"github.com/giftlane/giftlane-backend/pkg/enums"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository wraps all order persistence. Status writes go through
// UpdateStatusCAS exclusively; there is no unconditional status update.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) (*Repository, error) {
	if db == nil {
		return nil, errors.New("orders.NewRepository: db is required")
	}
	return &Repository{db: db}, nil
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// DB exposes the underlying handle for callers composing transactions.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("id = ?", id).Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &order, nil
}

func (r *Repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Preload("Items").Where("gateway_order_id = ?", gatewayOrderID).Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by gateway reference")
	}
	return &order, nil
}

func (r *Repository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("order_number = ?", orderNumber).Take(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by order number")
	}
	return &order, nil
}

// ListForOwner returns the owner's orders, newest first.
func (r *Repository) ListForOwner(ctx context.Context, ownerKey string, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("owner_key = ?", ownerKey).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, nil
}

// Create inserts the order and its items. The unique index on
// gateway_order_id is the idempotency anchor for webhook redeliveries.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return err
	}
	return nil
}

// UpdateStatusCAS atomically moves the order from one status to another,
// applying extra column updates in the same statement. It reports whether
// this caller won the swap; a false return means another writer moved the
// order first and nothing was written.
func (r *Repository) UpdateStatusCAS(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "order status swap")
	}
	return res.RowsAffected == 1, nil
}

// AddHistory appends one ledger row. Rows are never updated afterwards.
func (r *Repository) AddHistory(ctx context.Context, entry *models.OrderStatusHistory) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order history")
	}
	return nil
}

func (r *Repository) History(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusHistory, error) {
	var rows []models.OrderStatusHistory
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order history")
	}
	return rows, nil
}

// FindAcceptanceExpired returns PLACED orders whose acceptance deadline has
// passed, one bounded batch per call, oldest deadline first.
func (r *Repository) FindAcceptanceExpired(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND accept_deadline < ?", enums.OrderStatusPlaced, now).
		Order("accept_deadline ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list acceptance-expired orders")
	}
	return rows, nil
}

// FindDesignExpired returns PREVIEW_READY orders whose design deadline has
// passed, one bounded batch per call.
func (r *Repository) FindDesignExpired(ctx context.Context, now time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND design_deadline IS NOT NULL AND design_deadline < ?", enums.OrderStatusPreviewReady, now).
		Order("design_deadline ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list design-expired orders")
	}
	return rows, nil
}

// MarkSettled records settlement amounts exactly once. The write-once guard
// lives in the WHERE clause: a second settlement attempt matches zero rows.
func (r *Repository) MarkSettled(ctx context.Context, orderID uuid.UUID, commission, net decimal.Decimal, settledAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND net_settlement_amount IS NULL", orderID).
		Updates(map[string]any{
			"commission_amount":     commission,
			"net_settlement_amount": net,
			"settled_at":            settledAt,
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "mark order settled")
	}
	return res.RowsAffected == 1, nil
}

// NewOrderNumber builds a human-readable unique order reference.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("GL-%s-%s", now.Format("20060102"), suffix)
}
