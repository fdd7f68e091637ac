package cart

import (
	"context"
	"errors"
	"time"

	"github.com/giftlane/giftlane-backend/internal/reservation"
	"github.com/giftlane/giftlane-backend/pkg/db/models"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service manages cart lines and the soft stock holds behind them. Every
// line mutation and its reservation change happen in one transaction, so a
// cart line never exists without a backing hold and a failed reserve leaves
// no orphan line.
type Service struct {
	db             *gorm.DB
	reservationTTL time.Duration
}

type AddInput struct {
	OwnerKey        string
	ItemID          uuid.UUID
	VariantID       *uuid.UUID
	Quantity        int
	AddOns          types.JSONMap
	Personalization bool
}

func NewService(db *gorm.DB, reservationTTL time.Duration) (*Service, error) {
	if db == nil {
		return nil, errors.New("cart.NewService: db is required")
	}
	if reservationTTL <= 0 {
		reservationTTL = 10 * time.Minute
	}
	return &Service{db: db, reservationTTL: reservationTTL}, nil
}

// Add puts an item in the cart. Adding an item already in the cart merges
// into the existing line by raising its quantity.
func (s *Service) Add(ctx context.Context, in AddInput) (*models.CartItem, error) {
	if in.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if in.OwnerKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart owner required")
	}

	var line *models.CartItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := findLine(ctx, tx, in.OwnerKey, in.ItemID, in.VariantID)
		if err != nil {
			return err
		}
		if existing != nil {
			line = existing
			return s.setQuantity(ctx, tx, existing, existing.Quantity+in.Quantity)
		}

		hold, err := reservation.Reserve(ctx, tx, reservation.Request{
			ItemID:    in.ItemID,
			VariantID: in.VariantID,
			OwnerKey:  in.OwnerKey,
			Qty:       in.Quantity,
			TTL:       s.reservationTTL,
		})
		if err != nil {
			return err
		}
		line = &models.CartItem{
			OwnerKey:        in.OwnerKey,
			ItemID:          in.ItemID,
			VariantID:       in.VariantID,
			Quantity:        in.Quantity,
			AddOns:          in.AddOns,
			Personalization: in.Personalization,
			ReservationID:   &hold.ID,
		}
		if err := tx.WithContext(ctx).Create(line).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// UpdateQuantity changes a line's quantity. Zero removes the line. The old
// hold is released before the new one is taken so a shrink always succeeds;
// a failed grow rolls back and the old hold survives.
func (s *Service) UpdateQuantity(ctx context.Context, ownerKey string, lineID uuid.UUID, qty int) error {
	if qty < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		line, err := takeLine(ctx, tx, ownerKey, lineID)
		if err != nil {
			return err
		}
		if qty == 0 {
			return removeLine(ctx, tx, line)
		}
		return s.setQuantity(ctx, tx, line, qty)
	})
}

// Remove deletes a line and releases its hold.
func (s *Service) Remove(ctx context.Context, ownerKey string, lineID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		line, err := takeLine(ctx, tx, ownerKey, lineID)
		if err != nil {
			return err
		}
		return removeLine(ctx, tx, line)
	})
}

// List returns the owner's cart lines, oldest first.
func (s *Service) List(ctx context.Context, ownerKey string) ([]models.CartItem, error) {
	var lines []models.CartItem
	err := s.db.WithContext(ctx).
		Where("owner_key = ?", ownerKey).
		Order("created_at ASC").
		Find(&lines).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart lines")
	}
	return lines, nil
}

// Clear empties the owner's cart, releasing every hold. Called after a
// checkout materializes into an order and by the idle sweep.
func (s *Service) Clear(ctx context.Context, ownerKey string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := reservation.ReleaseForOwner(ctx, tx, ownerKey); err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Delete(&models.CartItem{}, "owner_key = ?", ownerKey).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
}

// SweepIdle removes carts untouched since the cutoff, one bounded batch per
// call, releasing their holds. Returns the number of lines removed.
func (s *Service) SweepIdle(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lines []models.CartItem
		err := tx.WithContext(ctx).
			Where("updated_at < ?", cutoff).
			Limit(batchSize).
			Find(&lines).Error
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list idle cart lines")
		}
		for i := range lines {
			if err := removeLine(ctx, tx, &lines[i]); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// setQuantity swaps the line's hold for one sized to the new quantity.
func (s *Service) setQuantity(ctx context.Context, tx *gorm.DB, line *models.CartItem, qty int) error {
	if line.ReservationID != nil {
		if err := reservation.Release(ctx, tx, *line.ReservationID); err != nil {
			return err
		}
	}
	hold, err := reservation.Reserve(ctx, tx, reservation.Request{
		ItemID:    line.ItemID,
		VariantID: line.VariantID,
		OwnerKey:  line.OwnerKey,
		Qty:       qty,
		TTL:       s.reservationTTL,
	})
	if err != nil {
		return err
	}
	line.Quantity = qty
	line.ReservationID = &hold.ID
	updates := map[string]any{"quantity": qty, "reservation_id": hold.ID}
	if err := tx.WithContext(ctx).Model(&models.CartItem{}).Where("id = ?", line.ID).Updates(updates).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
	}
	return nil
}

func removeLine(ctx context.Context, tx *gorm.DB, line *models.CartItem) error {
	if line.ReservationID != nil {
		if err := reservation.Release(ctx, tx, *line.ReservationID); err != nil {
			return err
		}
	}
	if err := tx.WithContext(ctx).Delete(&models.CartItem{}, "id = ?", line.ID).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
	}
	return nil
}

func findLine(ctx context.Context, tx *gorm.DB, ownerKey string, itemID uuid.UUID, variantID *uuid.UUID) (*models.CartItem, error) {
	query := tx.WithContext(ctx).Where("owner_key = ? AND item_id = ?", ownerKey, itemID)
	if variantID != nil {
		query = query.Where("variant_id = ?", *variantID)
	} else {
		query = query.Where("variant_id IS NULL")
	}
	var line models.CartItem
	if err := query.Take(&line).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find cart line")
	}
	return &line, nil
}

func takeLine(ctx context.Context, tx *gorm.DB, ownerKey string, lineID uuid.UUID) (*models.CartItem, error) {
	var line models.CartItem
	err := tx.WithContext(ctx).Where("id = ? AND owner_key = ?", lineID, ownerKey).Take(&line).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}
	return &line, nil
}
