package orders

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/giftlane/giftlane-backend/pkg/db/models"
	"github.com/giftlane/giftlane-backend/pkg/enums"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/logger"
	"github.com/giftlane/giftlane-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.OrderStatusHistory{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	repo, err := NewRepository(db)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	svc, err := NewService(repo, logger.New(logger.Options{Level: zerolog.Disabled, Output: io.Discard}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus, personalized bool) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:        NewOrderNumber(time.Now().UTC()),
		OwnerKey:           "user:u1",
		PartnerID:          uuid.New(),
		AddressID:          uuid.New(),
		Status:             status,
		PaymentStatus:      enums.PaymentStatusCaptured,
		GatewayOrderID:     "order_" + uuid.NewString()[:13],
		HasPersonalization: personalized,
		AcceptDeadline:     time.Now().UTC().Add(5 * time.Minute),
		DeliveryMode:       enums.DeliveryModeCourier,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestTransitionWritesStatusAndOneHistoryRow(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	order := seedOrder(t, db, enums.OrderStatusPlaced, false)

	updated, err := svc.Transition(ctx, TransitionInput{
		OrderID: order.ID,
		To:      enums.OrderStatusConfirmed,
		Actor:   "partner:p1",
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.Status != enums.OrderStatusConfirmed {
		t.Fatalf("expected confirmed, got %s", updated.Status)
	}

	rows, err := svc.Repo().History(ctx, order.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one history row, got %d", len(rows))
	}
	if rows[0].FromStatus == nil || *rows[0].FromStatus != enums.OrderStatusPlaced {
		t.Fatalf("history must record the old status")
	}
	if rows[0].ToStatus == nil || *rows[0].ToStatus != enums.OrderStatusConfirmed {
		t.Fatalf("history must record the new status")
	}
	if rows[0].Metadata["actor"] != "partner:p1" {
		t.Fatalf("history must record the actor, got %v", rows[0].Metadata)
	}
}

func TestTransitionKeepsMetadataReasonTag(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	order := seedOrder(t, db, enums.OrderStatusPlaced, false)

	_, err := svc.Transition(ctx, TransitionInput{
		OrderID:  order.ID,
		To:       enums.OrderStatusConfirmed,
		Actor:    "system",
		Reason:   "deadline passed, auto-confirmed",
		Metadata: types.JSONMap{"reason": "deadline_expired"},
	})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}

	rows, err := svc.Repo().History(ctx, order.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if rows[0].Metadata["reason"] != "deadline_expired" {
		t.Fatalf("prose reason must not clobber the metadata tag, got %v", rows[0].Metadata)
	}
	if rows[0].Description != "deadline passed, auto-confirmed" {
		t.Fatalf("prose reason must still land in the description, got %q", rows[0].Description)
	}
}

func TestTransitionLoserIsNoOp(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	order := seedOrder(t, db, enums.OrderStatusPlaced, false)

	// Two writers race the same PLACED order: the sweep wants to cancel it,
	// the partner wants to accept it. One swap wins, the other matches zero
	// rows and writes nothing.
	repo := svc.Repo()
	won, err := repo.UpdateStatusCAS(ctx, order.ID, enums.OrderStatusPlaced, enums.OrderStatusConfirmed, nil)
	if err != nil || !won {
		t.Fatalf("first swap must win: %v %v", won, err)
	}
	won, err = repo.UpdateStatusCAS(ctx, order.ID, enums.OrderStatusPlaced, enums.OrderStatusCancelled, nil)
	if err != nil {
		t.Fatalf("second swap: %v", err)
	}
	if won {
		t.Fatalf("second swap must lose")
	}

	var current models.Order
	if err := db.Where("id = ?", order.ID).Take(&current).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if current.Status != enums.OrderStatusConfirmed {
		t.Fatalf("loser must not overwrite, got %s", current.Status)
	}
}

func TestTransitionRejectsInvalidEdge(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	order := seedOrder(t, db, enums.OrderStatusPlaced, false)

	_, err := svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusPacked})
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}

	rows, _ := svc.Repo().History(ctx, order.ID)
	if len(rows) != 0 {
		t.Fatalf("rejected transition must not write history, got %d rows", len(rows))
	}
}

func TestTransitionToDeliveredStampsTimestamp(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	order := seedOrder(t, db, enums.OrderStatusOutForDelivery, false)

	updated, err := svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusDelivered})
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if updated.DeliveredAt == nil {
		t.Fatalf("delivered_at must be stamped")
	}
}

type recordingHook struct {
	calls []enums.OrderStatus
}

func (h *recordingHook) AfterTransition(_ context.Context, _ *models.Order, _, to enums.OrderStatus) {
	h.calls = append(h.calls, to)
}

func TestHooksRunAfterCommit(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	hook := &recordingHook{}
	svc.RegisterHook(hook)
	ctx := context.Background()
	order := seedOrder(t, db, enums.OrderStatusInProduction, false)

	if _, err := svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusPacked}); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if len(hook.calls) != 1 || hook.calls[0] != enums.OrderStatusPacked {
		t.Fatalf("hook must fire once with the new status, got %v", hook.calls)
	}

	// Failed transitions never reach the hooks.
	if _, err := svc.Transition(ctx, TransitionInput{OrderID: order.ID, To: enums.OrderStatusPlaced}); err == nil {
		t.Fatalf("expected failure")
	}
	if len(hook.calls) != 1 {
		t.Fatalf("hook must not fire on failed transitions")
	}
}

func TestApplyCourierEventAdvancesOrder(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	order := seedOrder(t, db, enums.OrderStatusDispatched, false)
	db.Model(&models.Order{}).Where("id = ?", order.ID).Update("awb", "AWB123456")

	updated, err := svc.ApplyCourierEvent(ctx, order.OrderNumber, enums.CourierStatusInTransit, nil)
	if err != nil {
		t.Fatalf("apply courier event: %v", err)
	}
	if updated.Status != enums.OrderStatusOutForDelivery {
		t.Fatalf("expected out_for_delivery, got %s", updated.Status)
	}

	// A repeated event loses the swap.
	_, err = svc.ApplyCourierEvent(ctx, order.OrderNumber, enums.CourierStatusInTransit, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for repeated event, got %v", err)
	}
}

func TestApplyCourierEventFailureRecordsManualFollowUp(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	order := seedOrder(t, db, enums.OrderStatusDispatched, false)
	db.Model(&models.Order{}).Where("id = ?", order.ID).Update("awb", "AWB999")

	updated, err := svc.ApplyCourierEvent(ctx, order.OrderNumber, enums.CourierStatusFailed, nil)
	if err != nil {
		t.Fatalf("apply courier event: %v", err)
	}
	if updated.Status != enums.OrderStatusDispatched {
		t.Fatalf("failed courier event must not change status, got %s", updated.Status)
	}
	rows, _ := svc.Repo().History(ctx, order.ID)
	if len(rows) != 1 || rows[0].Type != enums.HistoryEntrySystemAction {
		t.Fatalf("expected one system_action row, got %#v", rows)
	}
}

func TestMarkSettledIsWriteOnce(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	order := seedOrder(t, db, enums.OrderStatusDelivered, false)
	repo := svc.Repo()

	won, err := repo.MarkSettled(ctx, order.ID, decimal.NewFromInt(75), decimal.NewFromInt(400), time.Now().UTC())
	if err != nil || !won {
		t.Fatalf("first settlement must win: %v %v", won, err)
	}
	won, err = repo.MarkSettled(ctx, order.ID, decimal.NewFromInt(75), decimal.NewFromInt(400), time.Now().UTC())
	if err != nil {
		t.Fatalf("second settlement: %v", err)
	}
	if won {
		t.Fatalf("second settlement must be rejected by the write-once guard")
	}
}

func TestDeadlineQueries(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	repo := svc.Repo()

	expired := seedOrder(t, db, enums.OrderStatusPlaced, false)
	db.Model(&models.Order{}).Where("id = ?", expired.ID).
		Update("accept_deadline", time.Now().UTC().Add(-time.Minute))
	seedOrder(t, db, enums.OrderStatusPlaced, false)

	rows, err := repo.FindAcceptanceExpired(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("find acceptance expired: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != expired.ID {
		t.Fatalf("expected only the expired order, got %d rows", len(rows))
	}

	design := seedOrder(t, db, enums.OrderStatusPreviewReady, true)
	past := time.Now().UTC().Add(-time.Hour)
	db.Model(&models.Order{}).Where("id = ?", design.ID).Update("design_deadline", past)

	rows, err = repo.FindDesignExpired(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("find design expired: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != design.ID {
		t.Fatalf("expected only the design-expired order, got %d rows", len(rows))
	}
}
