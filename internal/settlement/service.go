package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/giftlane/giftlane-backend/internal/orders"
	"github.com/giftlane/giftlane-backend/pkg/db/models"
	"github.com/giftlane/giftlane-backend/pkg/enums"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
	"github.com/giftlane/giftlane-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// walletCreditor is the wallet slice settlement needs for cashback.
type walletCreditor interface {
	Credit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, txType enums.WalletTransactionType, orderID *uuid.UUID, meta types.JSONMap) error
}

// Params fix the settlement and cashback rates per deployment.
type Params struct {
	DefaultCommissionRate decimal.Decimal
	GatewayFeeRate        decimal.Decimal
	PlatformFee           decimal.Decimal
	CashbackRate          decimal.Decimal
	CashbackMin           decimal.Decimal
	CashbackMax           decimal.Decimal
}

// Breakdown is the computed settlement for one order.
type Breakdown struct {
	Basis      decimal.Decimal
	Commission decimal.Decimal
	GatewayFee decimal.Decimal
	Net        decimal.Decimal
}

// Service computes the partner payout when an order is delivered and grants
// the customer's cashback. Settlement is write-once per order; the guard
// lives in the orders repository, so retries and replayed courier webhooks
// settle nothing twice.
type Service struct {
	db     *gorm.DB
	orders *orders.Service
	wallet walletCreditor
	logg   *logger.Logger
	params Params
	now    func() time.Time
}

func NewService(db *gorm.DB, ordersSvc *orders.Service, wallet walletCreditor, logg *logger.Logger, params Params) (*Service, error) {
	if db == nil {
		return nil, errors.New("settlement.NewService: db is required")
	}
	if ordersSvc == nil {
		return nil, errors.New("settlement.NewService: orders service is required")
	}
	if wallet == nil {
		return nil, errors.New("settlement.NewService: wallet is required")
	}
	if logg == nil {
		return nil, errors.New("settlement.NewService: logger is required")
	}
	return &Service{db: db, orders: ordersSvc, wallet: wallet, logg: logg, params: params, now: time.Now}, nil
}

// Settle records the payout amounts for a delivered order, exactly once.
// Cashback runs after the payout is locked in and its failure never unwinds
// the settlement.
func (s *Service) Settle(ctx context.Context, orderID uuid.UUID) (*Breakdown, error) {
	order, err := s.orders.Repo().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only delivered orders settle").
			WithDetails(map[string]any{"status": order.Status.String()})
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	rate, err := s.commissionRate(ctx, order.PartnerID)
	if err != nil {
		return nil, err
	}
	breakdown := s.Compute(order, rate)

	won, err := s.orders.Repo().MarkSettled(ctx, order.ID, breakdown.Commission, breakdown.Net, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !won {
		s.logg.Info(ctx, "order already settled, skipping")
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "order already settled")
	}

	err = s.orders.RecordEvent(ctx, order.ID, enums.HistoryEntrySettlement,
		"Settlement computed", "partner payout recorded",
		types.JSONMap{
			"commission_rate": rate.String(),
			"commission":      breakdown.Commission.String(),
			"gateway_fee":     breakdown.GatewayFee.String(),
			"net":             breakdown.Net.String(),
		})
	if err != nil {
		s.logg.Error(ctx, "recording settlement", err)
	}

	s.grantCashback(ctx, order)
	return &breakdown, nil
}

// Compute derives the payout from the order's frozen amounts. The basis is
// the discounted merchandise value; the net is the full collected total less
// the platform's cuts, floored at zero.
func (s *Service) Compute(order *models.Order, commissionRate decimal.Decimal) Breakdown {
	basis := order.Subtotal.Sub(order.Discount)
	if basis.IsNegative() {
		basis = decimal.Zero
	}
	commission := basis.Mul(commissionRate).Round(2)
	total := order.GrandTotal.Add(order.WalletApplied)
	gatewayFee := order.GrandTotal.Mul(s.params.GatewayFeeRate).Round(2)

	net := total.Sub(commission).Sub(gatewayFee).Sub(s.params.PlatformFee)
	if net.IsNegative() {
		net = decimal.Zero
	}
	return Breakdown{Basis: basis, Commission: commission, GatewayFee: gatewayFee, Net: net.Round(2)}
}

func (s *Service) commissionRate(ctx context.Context, partnerID uuid.UUID) (decimal.Decimal, error) {
	var partner models.PartnerProfile
	err := s.db.WithContext(ctx).Where("id = ?", partnerID).Take(&partner).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.params.DefaultCommissionRate, nil
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load partner")
	}
	if partner.CommissionRate.IsPositive() {
		return partner.CommissionRate, nil
	}
	return s.params.DefaultCommissionRate, nil
}

// grantCashback credits a bounded percentage of the order total. Guests and
// zero-rate deployments get nothing; failures are logged and swallowed.
func (s *Service) grantCashback(ctx context.Context, order *models.Order) {
	if order.UserID == nil || !s.params.CashbackRate.IsPositive() {
		return
	}
	total := order.GrandTotal.Add(order.WalletApplied)
	amount := total.Mul(s.params.CashbackRate).Round(2)
	if amount.LessThan(s.params.CashbackMin) {
		amount = s.params.CashbackMin
	}
	if s.params.CashbackMax.IsPositive() && amount.GreaterThan(s.params.CashbackMax) {
		amount = s.params.CashbackMax
	}
	if !amount.IsPositive() {
		return
	}

	err := s.wallet.Credit(ctx, s.db, *order.UserID, amount, enums.WalletTransactionCashback, &order.ID,
		types.JSONMap{"order_number": order.OrderNumber})
	if err != nil {
		s.logg.Error(ctx, "cashback credit failed", err)
		return
	}
	err = s.orders.RecordEvent(ctx, order.ID, enums.HistoryEntryCashback,
		"Cashback credited", "delivery cashback added to wallet",
		types.JSONMap{"amount": amount.String()})
	if err != nil {
		s.logg.Error(ctx, "recording cashback", err)
	}
}
