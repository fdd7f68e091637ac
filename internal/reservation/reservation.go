package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/giftlane/giftlane-backend/pkg/db/models"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Request asks for a soft hold on stock for one cart line.
type Request struct {
	ItemID    uuid.UUID
	VariantID *uuid.UUID
	OwnerKey  string
	Qty       int
	TTL       time.Duration
}

// Reserve places a soft hold on stock inside the caller's transaction. The
// item (or variant) row is write-locked first, so concurrent reservers for
// the same unit serialize and the availability check below cannot race. A
// request that exceeds availability fails whole; there is no partial reserve.
func Reserve(ctx context.Context, tx *gorm.DB, req Request) (*models.CartReservation, error) {
	if req.Qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive")
	}
	if req.OwnerKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart owner required")
	}
	if req.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	stock, err := lockStockRow(ctx, tx, req.ItemID, req.VariantID)
	if err != nil {
		return nil, err
	}

	reserved, err := activeReservedQty(ctx, tx, req.ItemID, req.VariantID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if stock-reserved < req.Qty {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
			WithDetails(map[string]any{"available": stock - reserved, "requested": req.Qty})
	}

	hold := &models.CartReservation{
		ID:        uuid.New(),
		ItemID:    req.ItemID,
		VariantID: req.VariantID,
		OwnerKey:  req.OwnerKey,
		Quantity:  req.Qty,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if err := tx.WithContext(ctx).Create(hold).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
	}
	return hold, nil
}

// Availability returns stock minus the sum of active (unexpired) holds.
// Expired rows are ignored without being written; physical deletion is the
// cleanup sweep's job and changes nothing observable here.
func Availability(ctx context.Context, db *gorm.DB, itemID uuid.UUID, variantID *uuid.UUID) (int, error) {
	stock, err := stockQuantity(ctx, db, itemID, variantID)
	if err != nil {
		return 0, err
	}
	reserved, err := activeReservedQty(ctx, db, itemID, variantID, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	available := stock - reserved
	if available < 0 {
		available = 0
	}
	return available, nil
}

// Release drops a hold explicitly (cart line removed, or checkout finished).
// Releasing an unknown or already-expired hold is a no-op.
func Release(ctx context.Context, db *gorm.DB, reservationID uuid.UUID) error {
	if reservationID == uuid.Nil {
		return nil
	}
	res := db.WithContext(ctx).Delete(&models.CartReservation{}, "id = ?", reservationID)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release reservation")
	}
	return nil
}

// ReleaseForOwner drops every hold belonging to a cart owner.
func ReleaseForOwner(ctx context.Context, db *gorm.DB, ownerKey string) error {
	if ownerKey == "" {
		return nil
	}
	res := db.WithContext(ctx).Delete(&models.CartReservation{}, "owner_key = ?", ownerKey)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release owner reservations")
	}
	return nil
}

// DeleteExpired physically removes lazily-expired rows, in bounded batches.
// Safe to run concurrently with reads: a deleted row was already ignored by
// every availability computation.
func DeleteExpired(ctx context.Context, db *gorm.DB, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	var ids []uuid.UUID
	err := db.WithContext(ctx).
		Model(&models.CartReservation{}).
		Where("expires_at < ?", time.Now().UTC()).
		Limit(batchSize).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired reservations")
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Delete(&models.CartReservation{}, "id IN ?", ids)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "delete expired reservations")
	}
	return res.RowsAffected, nil
}

// lockStockRow touches the item or variant row so concurrent reservers for
// the same unit queue behind the row lock, then returns its stock quantity.
func lockStockRow(ctx context.Context, tx *gorm.DB, itemID uuid.UUID, variantID *uuid.UUID) (int, error) {
	if variantID != nil {
		res := tx.WithContext(ctx).Exec(
			"UPDATE item_variants SET updated_at = updated_at WHERE id = ? AND item_id = ?", *variantID, itemID)
		if res.Error != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "lock variant row")
		}
		if res.RowsAffected == 0 {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
	} else {
		res := tx.WithContext(ctx).Exec(
			"UPDATE items SET updated_at = updated_at WHERE id = ?", itemID)
		if res.Error != nil {
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "lock item row")
		}
		if res.RowsAffected == 0 {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
	}
	return stockQuantity(ctx, tx, itemID, variantID)
}

func stockQuantity(ctx context.Context, db *gorm.DB, itemID uuid.UUID, variantID *uuid.UUID) (int, error) {
	var row struct{ StockQuantity int }
	if variantID != nil {
		err := db.WithContext(ctx).
			Model(&models.ItemVariant{}).
			Select("stock_quantity").
			Where("id = ? AND item_id = ?", *variantID, itemID).
			Take(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
			}
			return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant stock")
		}
		return row.StockQuantity, nil
	}
	err := db.WithContext(ctx).
		Model(&models.Item{}).
		Select("stock_quantity").
		Where("id = ?", itemID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item stock")
	}
	return row.StockQuantity, nil
}

func activeReservedQty(ctx context.Context, db *gorm.DB, itemID uuid.UUID, variantID *uuid.UUID, now time.Time) (int, error) {
	query := db.WithContext(ctx).
		Model(&models.CartReservation{}).
		Where("item_id = ? AND expires_at > ?", itemID, now)
	if variantID != nil {
		query = query.Where("variant_id = ?", *variantID)
	} else {
		query = query.Where("variant_id IS NULL")
	}
	var reserved *int
	if err := query.Select("SUM(quantity)").Scan(&reserved).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum active reservations")
	}
	if reserved == nil {
		return 0, nil
	}
	return *reserved, nil
}
