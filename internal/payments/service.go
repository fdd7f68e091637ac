package payments

import (
	"context"
	"errors"
	"time"

	"github.com/giftlane/giftlane-backend/internal/orders"
	"github.com/giftlane/giftlane-backend/internal/reservation"
	"github.com/giftlane/giftlane-backend/pkg/db"
	"github.com/giftlane/giftlane-backend/pkg/db/models"
	"github.com/giftlane/giftlane-backend/pkg/enums"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
	"github.com/giftlane/giftlane-backend/pkg/razorpay"
	"github.com/giftlane/giftlane-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// amountToleranceMinor is the largest accepted drift, in paise, between the
// draft's grand total and the amount the gateway reports as captured.
const amountToleranceMinor = 50

// replayCacheTTL bounds how long a processed gateway order stays in the
// redis fast path. Redeliveries past this window fall through to the
// database checks.
const replayCacheTTL = 24 * time.Hour

// replayCache is the redis slice the webhook fast path uses. The cache is
// advisory only: the unique index on gateway_order_id remains the authority.
type replayCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	IdempotencyKey(scope, id string) string
}

// refunder is the slice of the gateway client the orchestrator needs.
type refunder interface {
	Refund(ctx context.Context, gatewayPaymentID string, amountMinor int64, notes map[string]any) (string, error)
}

// walletOps covers the wallet writes payments performs: the debit when a
// draft that applied wallet credit materializes, and the credit when a
// refund returns that credit.
type walletOps interface {
	Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID, meta types.JSONMap) error
	Credit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, txType enums.WalletTransactionType, orderID *uuid.UUID, meta types.JSONMap) error
}

// CaptureEvent is the parsed payment-captured webhook payload.
type CaptureEvent struct {
	EventID          string
	GatewayOrderID   string
	GatewayPaymentID string
	AmountMinor      int64
}

// CaptureResult reports what the webhook delivery amounted to. Replay and
// Anomaly both acknowledge upstream; only a fresh materialization carries a
// newly created order.
type CaptureResult struct {
	Order   *models.Order
	Replay  bool
	Anomaly string
}

// Service materializes paid drafts into orders and orchestrates refunds.
type Service struct {
	db             *gorm.DB
	orders         *orders.Service
	wallet         walletOps
	gateway        refunder
	logg           *logger.Logger
	cache          replayCache
	acceptDeadline time.Duration
	designDeadline time.Duration
	now            func() time.Time
}

func NewService(db *gorm.DB, ordersSvc *orders.Service, wallet walletOps, gateway refunder, logg *logger.Logger, acceptDeadline, designDeadline time.Duration) (*Service, error) {
	if db == nil {
		return nil, errors.New("payments.NewService: db is required")
	}
	if ordersSvc == nil {
		return nil, errors.New("payments.NewService: orders service is required")
	}
	if wallet == nil {
		return nil, errors.New("payments.NewService: wallet is required")
	}
	if gateway == nil {
		return nil, errors.New("payments.NewService: gateway is required")
	}
	if logg == nil {
		return nil, errors.New("payments.NewService: logger is required")
	}
	if acceptDeadline <= 0 {
		acceptDeadline = 5 * time.Minute
	}
	if designDeadline <= 0 {
		designDeadline = 24 * time.Hour
	}
	return &Service{
		db:             db,
		orders:         ordersSvc,
		wallet:         wallet,
		gateway:        gateway,
		logg:           logg,
		acceptDeadline: acceptDeadline,
		designDeadline: designDeadline,
		now:            time.Now,
	}, nil
}

// WithReplayCache installs the redis fast path for webhook redeliveries.
// Without it every delivery goes straight to the database.
func (s *Service) WithReplayCache(cache replayCache) *Service {
	s.cache = cache
	return s
}

// ConfirmCapture turns a captured payment into an order, exactly once per
// gateway order. Redeliveries find the existing order and report a replay;
// payloads that reference no draft or carry a wrong amount are recorded as
// anomalies and acknowledged without creating anything. The caller always
// acks the webhook on a nil error.
func (s *Service) ConfirmCapture(ctx context.Context, ev CaptureEvent) (*CaptureResult, error) {
	if ev.GatewayOrderID == "" || ev.GatewayPaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing gateway references")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"gateway_order_id": ev.GatewayOrderID,
		"event_id":         ev.EventID,
	})

	// Fast path: a redelivery of an already-processed capture resolves from
	// the cache without touching the draft tables. Any cache miss or failure
	// falls through to the database checks.
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, s.cache.IdempotencyKey("payment-capture", ev.GatewayOrderID)); err == nil && cached != "" {
			if id, perr := uuid.Parse(cached); perr == nil {
				if existing, ferr := s.orders.Repo().FindByID(ctx, id); ferr == nil {
					s.logg.Info(ctx, "payment webhook replay served from cache")
					return &CaptureResult{Order: existing, Replay: true}, nil
				}
			}
		}
	}

	if existing, err := s.orders.Repo().FindByGatewayOrderID(ctx, ev.GatewayOrderID); err == nil {
		s.logg.Info(ctx, "payment webhook replay, order already exists")
		s.rememberCapture(ctx, ev.GatewayOrderID, existing.ID)
		return &CaptureResult{Order: existing, Replay: true}, nil
	} else if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	var draft models.DraftOrder
	err := s.db.WithContext(ctx).Where("gateway_order_id = ?", ev.GatewayOrderID).Take(&draft).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(ctx, "payment captured for unknown draft order")
			return &CaptureResult{Anomaly: "no draft order for gateway reference"}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load draft order")
	}

	expectedMinor := razorpay.ToMinorUnits(draft.GrandTotal)
	drift := expectedMinor - ev.AmountMinor
	if drift < 0 {
		drift = -drift
	}
	if drift > amountToleranceMinor {
		s.logg.Warn(ctx, "payment amount does not match draft total")
		return &CaptureResult{Anomaly: "captured amount does not match draft total"}, nil
	}

	order, err := s.materialize(ctx, &draft, ev)
	if err != nil {
		// A concurrent delivery inserted first; the unique index on
		// gateway_order_id collapses the race onto one order.
		if isUniqueViolation(err) {
			existing, ferr := s.orders.Repo().FindByGatewayOrderID(ctx, ev.GatewayOrderID)
			if ferr != nil {
				return nil, ferr
			}
			s.logg.Info(ctx, "payment webhook race, order created by concurrent delivery")
			s.rememberCapture(ctx, ev.GatewayOrderID, existing.ID)
			return &CaptureResult{Order: existing, Replay: true}, nil
		}
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "order created from captured payment")
	s.rememberCapture(ctx, ev.GatewayOrderID, order.ID)
	return &CaptureResult{Order: order}, nil
}

// rememberCapture records the processed capture in the redis fast path,
// best effort.
func (s *Service) rememberCapture(ctx context.Context, gatewayOrderID string, orderID uuid.UUID) {
	if s.cache == nil {
		return
	}
	key := s.cache.IdempotencyKey("payment-capture", gatewayOrderID)
	if err := s.cache.Set(ctx, key, orderID.String(), replayCacheTTL); err != nil {
		s.logg.Warn(ctx, "failed to cache processed capture")
	}
}

// materialize creates the order, its items, the wallet debit, the first
// history row, and consumes the draft and cart, all in one transaction.
func (s *Service) materialize(ctx context.Context, draft *models.DraftOrder, ev CaptureEvent) (*models.Order, error) {
	now := s.now().UTC()
	items, hasPersonalization, err := itemsFromSnapshot(draft)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderNumber:        orders.NewOrderNumber(now),
		UserID:             draft.UserID,
		OwnerKey:           draft.OwnerKey,
		PartnerID:          draft.PartnerID,
		AddressID:          draft.AddressID,
		Status:             enums.OrderStatusPlaced,
		PaymentStatus:      enums.PaymentStatusCaptured,
		GatewayOrderID:     draft.GatewayOrderID,
		GatewayPaymentID:   &ev.GatewayPaymentID,
		Subtotal:           draft.Subtotal,
		Tax:                draft.Tax,
		DeliveryFee:        draft.DeliveryFee,
		PlatformFee:        draft.PlatformFee,
		Discount:           draft.Discount,
		WalletApplied:      draft.WalletApplied,
		GrandTotal:         draft.GrandTotal,
		CouponCode:         draft.CouponCode,
		GSTIN:              draft.GSTIN,
		HasPersonalization: hasPersonalization,
		AcceptDeadline:     now.Add(s.acceptDeadline),
		DeliveryMode:       enums.DeliveryModeCourier,
		Items:              items,
	}
	if hasPersonalization {
		dd := now.Add(s.designDeadline)
		order.DesignDeadline = &dd
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orders.Repo().WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		if draft.WalletApplied.IsPositive() {
			if draft.UserID == nil {
				return pkgerrors.New(pkgerrors.CodeIntegrity, "draft applied wallet credit without a user")
			}
			err := s.wallet.Debit(ctx, tx, *draft.UserID, draft.WalletApplied, &order.ID,
				types.JSONMap{"gateway_order_id": draft.GatewayOrderID})
			if err != nil {
				return err
			}
		}
		placed := enums.OrderStatusPlaced
		entry := &models.OrderStatusHistory{
			OrderID:     order.ID,
			Type:        enums.HistoryEntryStatusChange,
			Title:       "Order placed",
			Description: "payment captured",
			ToStatus:    &placed,
			Metadata: types.JSONMap{
				"gateway_payment_id": ev.GatewayPaymentID,
				"event_id":           ev.EventID,
			},
		}
		if err := s.orders.Repo().WithTx(tx).AddHistory(ctx, entry); err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Delete(&models.DraftOrder{}, "id = ?", draft.ID).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume draft order")
		}
		if err := reservation.ReleaseForOwner(ctx, tx, draft.OwnerKey); err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Delete(&models.CartItem{}, "owner_key = ?", draft.OwnerKey).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// CancelWithRefund refunds the gateway payment and cancels the order. A
// failed refund never blocks the cancellation: the order still cancels, the
// payment moves to refund_pending and the failure is recorded for manual
// follow-up.
func (s *Service) CancelWithRefund(ctx context.Context, orderID uuid.UUID, actor, reason string) (*models.Order, error) {
	order, err := s.orders.Repo().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is already terminal").
			WithDetails(map[string]any{"status": order.Status.String()})
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	refunded := s.refund(ctx, order, reason)

	to := enums.OrderStatusCancelled
	if refunded {
		to = enums.OrderStatusRefunded
	}
	updated, err := s.orders.Transition(ctx, orders.TransitionInput{
		OrderID: order.ID,
		To:      to,
		Actor:   actor,
		Reason:  reason,
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// refund attempts the gateway refund and the wallet credit, reporting whether
// the money side fully completed. All failure paths leave a ledger row.
func (s *Service) refund(ctx context.Context, order *models.Order, reason string) bool {
	amountMinor := razorpay.ToMinorUnits(order.GrandTotal)
	refunded := true

	if order.GatewayPaymentID != nil && amountMinor > 0 {
		refundID, err := s.gateway.Refund(ctx, *order.GatewayPaymentID, amountMinor, map[string]any{
			"order_number": order.OrderNumber,
			"reason":       reason,
		})
		if err != nil {
			refunded = false
			s.logg.Error(ctx, "gateway refund failed", err)
			s.setPaymentStatus(ctx, order.ID, enums.PaymentStatusRefundPending, nil)
			recErr := s.orders.RecordEvent(ctx, order.ID, enums.HistoryEntryRefundFailed,
				"Refund failed", "refund pending, manual follow-up required",
				types.JSONMap{"reason": reason})
			if recErr != nil {
				s.logg.Error(ctx, "recording refund failure", recErr)
			}
		} else {
			s.setPaymentStatus(ctx, order.ID, enums.PaymentStatusRefunded, &refundID)
			recErr := s.orders.RecordEvent(ctx, order.ID, enums.HistoryEntryRefundIssued,
				"Refund issued", "gateway refund completed",
				types.JSONMap{"gateway_refund_id": refundID, "amount_minor": amountMinor})
			if recErr != nil {
				s.logg.Error(ctx, "recording refund", recErr)
			}
		}
	}

	if order.WalletApplied.IsPositive() && order.UserID != nil {
		err := s.wallet.Credit(ctx, s.db, *order.UserID, order.WalletApplied,
			enums.WalletTransactionRefund, &order.ID,
			types.JSONMap{"reason": reason})
		if err != nil {
			refunded = false
			s.logg.Error(ctx, "wallet refund credit failed", err)
		}
	}
	return refunded
}

func (s *Service) setPaymentStatus(ctx context.Context, orderID uuid.UUID, ps enums.PaymentStatus, refundID *string) {
	updates := map[string]any{"payment_status": ps}
	if refundID != nil {
		updates["gateway_refund_id"] = *refundID
	}
	err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Updates(updates).Error
	if err != nil {
		s.logg.Error(ctx, "updating payment status", err)
	}
}

// itemsFromSnapshot rebuilds order items from the draft's frozen lines.
func itemsFromSnapshot(draft *models.DraftOrder) ([]models.OrderItem, bool, error) {
	raw, ok := draft.Lines["lines"].([]any)
	if !ok || len(raw) == 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeIntegrity, "draft order snapshot has no lines")
	}
	items := make([]models.OrderItem, 0, len(raw))
	hasPersonalization := false
	for _, entry := range raw {
		line, ok := entry.(map[string]any)
		if !ok {
			return nil, false, pkgerrors.New(pkgerrors.CodeIntegrity, "draft order snapshot is malformed")
		}
		itemID, err := uuid.Parse(str(line["item_id"]))
		if err != nil {
			return nil, false, pkgerrors.New(pkgerrors.CodeIntegrity, "draft order snapshot has an invalid item id")
		}
		qty := intValue(line["quantity"])
		if qty <= 0 {
			return nil, false, pkgerrors.New(pkgerrors.CodeIntegrity, "draft order snapshot has an invalid quantity")
		}
		unit, err := decimal.NewFromString(str(line["unit_price"]))
		if err != nil {
			return nil, false, pkgerrors.New(pkgerrors.CodeIntegrity, "draft order snapshot has an invalid price")
		}
		addOnsPrice := decimal.Zero
		if s := str(line["add_ons_price"]); s != "" {
			if v, err := decimal.NewFromString(s); err == nil {
				addOnsPrice = v
			}
		}

		item := models.OrderItem{
			ItemID:    itemID,
			Name:      str(line["name"]),
			Quantity:  qty,
			UnitPrice: unit,
			LineTotal: unit.Add(addOnsPrice).Mul(decimal.NewFromInt(int64(qty))),
		}
		if vid := str(line["variant_id"]); vid != "" {
			if parsed, err := uuid.Parse(vid); err == nil {
				item.VariantID = &parsed
			}
		}
		if addOns, ok := line["add_ons"].(map[string]any); ok {
			item.AddOns = types.JSONMap(addOns)
		}
		if personalized, _ := line["personalization"].(bool); personalized {
			item.Personalization = true
			item.PersonalizationStatus = enums.PersonalizationStatusPendingDetails
			hasPersonalization = true
		}
		items = append(items, item)
	}
	return items, hasPersonalization, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func intValue(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	default:
		return 0
	}
}

func isUniqueViolation(err error) bool {
	return db.IsUniqueViolation(err, "gateway_order_id")
}
