package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/giftlane/giftlane-backend/internal/orders"
	"github.com/giftlane/giftlane-backend/pkg/courier"
	"github.com/giftlane/giftlane-backend/pkg/db/models"
	"github.com/giftlane/giftlane-backend/pkg/enums"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
	"github.com/giftlane/giftlane-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// booker is the slice of the courier client dispatch needs.
type booker interface {
	CreateShipment(ctx context.Context, shipment courier.Shipment) (*courier.Booking, error)
	PickupName() string
}

// Service books courier pickups for packed orders. Booking is retried a fixed
// number of times; when every attempt fails the order falls back to manual
// delivery so packing is never blocked on the courier aggregator.
type Service struct {
	db           *gorm.DB
	orders       *orders.Service
	courier      booker
	logg         *logger.Logger
	maxAttempts  int
	retryDelay   time.Duration
	weightPerQty decimal.Decimal
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewService(db *gorm.DB, ordersSvc *orders.Service, courierClient booker, logg *logger.Logger, maxAttempts int, retryDelay time.Duration, weightPerQty decimal.Decimal) (*Service, error) {
	if db == nil {
		return nil, errors.New("dispatch.NewService: db is required")
	}
	if ordersSvc == nil {
		return nil, errors.New("dispatch.NewService: orders service is required")
	}
	if courierClient == nil {
		return nil, errors.New("dispatch.NewService: courier client is required")
	}
	if logg == nil {
		return nil, errors.New("dispatch.NewService: logger is required")
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if retryDelay <= 0 {
		retryDelay = 30 * time.Second
	}
	if weightPerQty.IsZero() {
		weightPerQty = decimal.NewFromFloat(0.35)
	}
	return &Service{
		db:           db,
		orders:       ordersSvc,
		courier:      courierClient,
		logg:         logg,
		maxAttempts:  maxAttempts,
		retryDelay:   retryDelay,
		weightPerQty: weightPerQty,
		sleep:        sleepCtx,
	}, nil
}

// Dispatch books a shipment for a PACKED order and advances it to
// DISPATCHED. An order that already carries an AWB is left alone, so repeated
// calls never double-book a pickup.
func (s *Service) Dispatch(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.Repo().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())

	if order.AWB != nil && *order.AWB != "" {
		s.logg.Info(ctx, "order already has a booking, dispatch skipped")
		return order, nil
	}
	if order.Status != enums.OrderStatusPacked {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only packed orders can be dispatched").
			WithDetails(map[string]any{"status": order.Status.String()})
	}

	shipment, err := s.buildShipment(ctx, order)
	if err != nil {
		return nil, err
	}

	booking, bookErr := s.bookWithRetries(ctx, order, *shipment)
	if bookErr != nil {
		return s.fallbackToManual(ctx, order, bookErr)
	}

	updates := map[string]any{
		"awb":           booking.AWB,
		"tracking_url":  booking.TrackingURL,
		"delivery_mode": enums.DeliveryModeCourier,
	}
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record courier booking")
	}

	updated, err := s.orders.Transition(ctx, orders.TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusDispatched,
		Actor:   "dispatch",
		Metadata: types.JSONMap{
			"awb":          booking.AWB,
			"tracking_url": booking.TrackingURL,
		},
	})
	if err != nil {
		return nil, err
	}
	updated.AWB = &booking.AWB
	updated.TrackingURL = &booking.TrackingURL
	return updated, nil
}

func (s *Service) bookWithRetries(ctx context.Context, order *models.Order, shipment courier.Shipment) (*courier.Booking, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		booking, err := s.courier.CreateShipment(ctx, shipment)
		if err == nil {
			return booking, nil
		}
		lastErr = err
		s.logg.Error(s.logg.WithField(ctx, "attempt", attempt), "courier booking attempt failed", err)
		if attempt < s.maxAttempts {
			if err := s.sleep(ctx, s.retryDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

// fallbackToManual records the exhausted retries and flips the order to
// manual delivery without touching its lifecycle status.
func (s *Service) fallbackToManual(ctx context.Context, order *models.Order, cause error) (*models.Order, error) {
	err := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", order.ID).
		Update("delivery_mode", enums.DeliveryModeManual).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "switch order to manual delivery")
	}
	recErr := s.orders.RecordEvent(ctx, order.ID, enums.HistoryEntryDispatchFailed,
		"Courier booking failed",
		fmt.Sprintf("all %d booking attempts failed; order switched to manual delivery", s.maxAttempts),
		types.JSONMap{"error": cause.Error()})
	if recErr != nil {
		s.logg.Error(ctx, "recording dispatch failure", recErr)
	}
	order.DeliveryMode = enums.DeliveryModeManual
	s.logg.Warn(ctx, "courier booking exhausted retries, order switched to manual delivery")
	return order, nil
}

// buildShipment resolves pickup and drop addresses and estimates the parcel
// weight from line quantities.
func (s *Service) buildShipment(ctx context.Context, order *models.Order) (*courier.Shipment, error) {
	var partner models.PartnerProfile
	err := s.db.WithContext(ctx).Where("id = ?", order.PartnerID).Take(&partner).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "order references an unknown partner")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load partner")
	}

	pickup, err := s.loadAddress(ctx, partner.PickupAddressID)
	if err != nil {
		return nil, err
	}
	drop, err := s.loadAddress(ctx, order.AddressID)
	if err != nil {
		return nil, err
	}

	totalQty := 0
	for _, item := range order.Items {
		totalQty += item.Quantity
	}
	if totalQty == 0 {
		totalQty = 1
	}

	return &courier.Shipment{
		ClientOrderID: order.OrderNumber,
		PickupName:    s.courier.PickupName(),
		PickupAddress: toCourierAddress(pickup),
		DropAddress:   toCourierAddress(drop),
		WeightKg:      s.weightPerQty.Mul(decimal.NewFromInt(int64(totalQty))),
	}, nil
}

func (s *Service) loadAddress(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	var addr models.Address
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&addr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeIntegrity, "order references an unknown address")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	return &addr, nil
}

func toCourierAddress(a *models.Address) courier.Address {
	return courier.Address{
		Name:    a.Name,
		Phone:   a.Phone,
		Line1:   a.Line1,
		Line2:   a.Line2,
		City:    a.City,
		State:   a.State,
		Pincode: a.Pincode,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
