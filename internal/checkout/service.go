package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/giftlane/giftlane-backend/internal/pricing"
	"github.com/giftlane/giftlane-backend/pkg/db/models"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/razorpay"
	"github.com/giftlane/giftlane-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// gateway is the slice of the payment client checkout needs.
type gateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, receipt string, notes map[string]any) (string, error)
}

// walletReader reports a user's spendable credit.
type walletReader interface {
	Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// Service turns a cart into a priced draft order backed by a gateway order.
// The draft is the immutable snapshot the payment webhook later promotes; the
// cart stays untouched until that promotion, so an abandoned checkout costs
// nothing to undo.
type Service struct {
	db      *gorm.DB
	gateway gateway
	wallet  walletReader
	engine  *pricing.Engine
	now     func() time.Time
}

type BeginInput struct {
	OwnerKey   string
	UserID     *uuid.UUID
	AddressID  uuid.UUID
	DistanceKm decimal.Decimal
	CouponCode *string
	UseWallet  bool
	GSTIN      *string
}

type BeginResult struct {
	DraftOrderID   uuid.UUID
	GatewayOrderID string
	AmountMinor    int64
	Quote          pricing.Quote
}

func NewService(db *gorm.DB, gw gateway, wallet walletReader, engine *pricing.Engine) (*Service, error) {
	if db == nil {
		return nil, errors.New("checkout.NewService: db is required")
	}
	if gw == nil {
		return nil, errors.New("checkout.NewService: gateway is required")
	}
	if wallet == nil {
		return nil, errors.New("checkout.NewService: wallet reader is required")
	}
	if engine == nil {
		return nil, errors.New("checkout.NewService: pricing engine is required")
	}
	return &Service{db: db, gateway: gw, wallet: wallet, engine: engine, now: time.Now}, nil
}

// Begin prices the cart, opens a gateway order for the grand total and
// persists the draft snapshot. The cart itself is not consumed.
func (s *Service) Begin(ctx context.Context, in BeginInput) (*BeginResult, error) {
	if in.OwnerKey == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart owner required")
	}
	if in.AddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	if in.UseWallet && in.UserID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wallet requires a signed-in user")
	}

	var cartLines []models.CartItem
	err := s.db.WithContext(ctx).
		Where("owner_key = ?", in.OwnerKey).
		Order("created_at ASC").
		Find(&cartLines).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if len(cartLines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	priced, partnerID, err := s.priceLines(ctx, cartLines)
	if err != nil {
		return nil, err
	}

	coupon, err := s.resolveCoupon(ctx, in.CouponCode)
	if err != nil {
		return nil, err
	}

	walletBalance := decimal.Zero
	if in.UseWallet {
		walletBalance, err = s.wallet.Balance(ctx, *in.UserID)
		if err != nil {
			return nil, err
		}
	}

	quote, err := s.engine.Quote(pricing.Input{
		Lines:         priced,
		DistanceKm:    in.DistanceKm,
		Coupon:        coupon,
		WalletBalance: walletBalance,
		UseWallet:     in.UseWallet,
		Now:           s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}
	if !quote.GrandTotal.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}

	draftID := uuid.New()
	amountMinor := razorpay.ToMinorUnits(quote.GrandTotal)
	gatewayOrderID, err := s.gateway.CreateOrder(ctx, amountMinor, draftID.String(), map[string]any{
		"draft_order_id": draftID.String(),
		"owner_key":      in.OwnerKey,
	})
	if err != nil {
		return nil, err
	}

	draft := &models.DraftOrder{
		ID:             draftID,
		OwnerKey:       in.OwnerKey,
		UserID:         in.UserID,
		PartnerID:      partnerID,
		AddressID:      in.AddressID,
		GatewayOrderID: gatewayOrderID,
		Lines:          snapshotLines(cartLines, priced),
		Subtotal:       quote.Subtotal,
		Tax:            quote.Tax,
		DeliveryFee:    quote.DeliveryFee,
		PlatformFee:    quote.PlatformFee,
		Discount:       quote.Discount,
		WalletApplied:  quote.WalletApplied,
		GrandTotal:     quote.GrandTotal,
		CouponCode:     in.CouponCode,
		UseWallet:      in.UseWallet,
		GSTIN:          in.GSTIN,
	}
	if err := s.db.WithContext(ctx).Create(draft).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist draft order")
	}

	return &BeginResult{
		DraftOrderID:   draftID,
		GatewayOrderID: gatewayOrderID,
		AmountMinor:    amountMinor,
		Quote:          *quote,
	}, nil
}

// SweepAbandoned deletes drafts older than the cutoff whose payment never
// arrived, one bounded batch per call.
func (s *Service) SweepAbandoned(ctx context.Context, cutoff time.Time, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&models.DraftOrder{}).
		Where("created_at < ?", cutoff).
		Limit(batchSize).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list abandoned drafts")
	}
	if len(ids) == 0 {
		return 0, nil
	}
	res := s.db.WithContext(ctx).Delete(&models.DraftOrder{}, "id IN ?", ids)
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "delete abandoned drafts")
	}
	return res.RowsAffected, nil
}

// priceLines loads catalog rows for the cart and builds pricing input. Every
// line must belong to the same fulfillment partner: an order is dispatched
// from exactly one pickup.
func (s *Service) priceLines(ctx context.Context, cartLines []models.CartItem) ([]pricing.Line, uuid.UUID, error) {
	var partnerID uuid.UUID
	priced := make([]pricing.Line, 0, len(cartLines))
	for _, cl := range cartLines {
		var item models.Item
		err := s.db.WithContext(ctx).Where("id = ? AND active = ?", cl.ItemID, true).Take(&item).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "cart references an unavailable item").
					WithDetails(map[string]any{"item_id": cl.ItemID})
			}
			return nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load item")
		}

		if partnerID == uuid.Nil {
			partnerID = item.PartnerID
		} else if partnerID != item.PartnerID {
			return nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "cart spans multiple partners")
		}

		unit := item.Price
		if cl.VariantID != nil {
			var variant models.ItemVariant
			err := s.db.WithContext(ctx).Where("id = ? AND item_id = ?", *cl.VariantID, cl.ItemID).Take(&variant).Error
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "cart references an unknown variant")
				}
				return nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
			}
			unit = unit.Add(variant.PriceDelta)
		}

		priced = append(priced, pricing.Line{
			ItemID:      cl.ItemID,
			VariantID:   cl.VariantID,
			Name:        item.Name,
			UnitPrice:   unit,
			AddOnsPrice: addOnsTotal(cl.AddOns),
			Quantity:    cl.Quantity,
		})
	}
	return priced, partnerID, nil
}

func (s *Service) resolveCoupon(ctx context.Context, code *string) (*pricing.Coupon, error) {
	if code == nil || *code == "" {
		return nil, nil
	}
	var row models.Coupon
	err := s.db.WithContext(ctx).Where("code = ? AND active = ?", *code, true).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown coupon code")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
	}
	coupon := &pricing.Coupon{
		Code:      row.Code,
		Percent:   row.Percent,
		Flat:      row.Flat,
		MinOrder:  row.MinOrder,
		MaxAmount: row.MaxAmount,
	}
	if row.ExpiresAt != nil {
		coupon.ExpiresAt = *row.ExpiresAt
	}
	return coupon, nil
}

// addOnsTotal sums the numeric values of the add-ons map. Keys are add-on
// labels, values their prices.
func addOnsTotal(addOns types.JSONMap) decimal.Decimal {
	total := decimal.Zero
	for _, v := range addOns {
		switch n := v.(type) {
		case float64:
			total = total.Add(decimal.NewFromFloat(n))
		case int:
			total = total.Add(decimal.NewFromInt(int64(n)))
		case int64:
			total = total.Add(decimal.NewFromInt(n))
		}
	}
	return total
}

// snapshotLines freezes the priced cart into the draft's JSON payload. The
// webhook materializes order items from this snapshot, never from the live
// cart, so later cart edits cannot change what was paid for.
func snapshotLines(cartLines []models.CartItem, priced []pricing.Line) types.JSONMap {
	rows := make([]any, 0, len(cartLines))
	for i, cl := range cartLines {
		row := map[string]any{
			"item_id":         cl.ItemID.String(),
			"name":            priced[i].Name,
			"quantity":        cl.Quantity,
			"unit_price":      priced[i].UnitPrice.String(),
			"add_ons_price":   priced[i].AddOnsPrice.String(),
			"personalization": cl.Personalization,
		}
		if cl.VariantID != nil {
			row["variant_id"] = cl.VariantID.String()
		}
		if len(cl.AddOns) > 0 {
			row["add_ons"] = map[string]any(cl.AddOns)
		}
		rows = append(rows, row)
	}
	return types.JSONMap{"lines": rows}
}
