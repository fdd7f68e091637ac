package cart

import (
	"context"
	"testing"
	"time"

	"github.com/giftlane/giftlane-backend/internal/reservation"
	"github.com/giftlane/giftlane-backend/pkg/db/models"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Item{}, &models.ItemVariant{}, &models.CartReservation{}, &models.CartItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	svc, err := NewService(db, 10*time.Minute)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedItem(t *testing.T, db *gorm.DB, stock int) *models.Item {
	t.Helper()
	item := &models.Item{PartnerID: uuid.New(), Name: "photo frame", StockQuantity: stock, Active: true}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

func TestAddCreatesLineWithHold(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	item := seedItem(t, db, 5)

	line, err := svc.Add(ctx, AddInput{OwnerKey: "user:u1", ItemID: item.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if line.ReservationID == nil {
		t.Fatalf("line must carry a reservation")
	}

	avail, err := reservation.Availability(ctx, db, item.ID, nil)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if avail != 3 {
		t.Fatalf("expected availability 3, got %d", avail)
	}
}

func TestAddMergesExistingLine(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	item := seedItem(t, db, 5)

	if _, err := svc.Add(ctx, AddInput{OwnerKey: "user:u1", ItemID: item.ID, Quantity: 1}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := svc.Add(ctx, AddInput{OwnerKey: "user:u1", ItemID: item.ID, Quantity: 2}); err != nil {
		t.Fatalf("second add: %v", err)
	}

	lines, err := svc.List(ctx, "user:u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected merged single line, got %d", len(lines))
	}
	if lines[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", lines[0].Quantity)
	}

	avail, _ := reservation.Availability(ctx, db, item.ID, nil)
	if avail != 2 {
		t.Fatalf("expected availability 2, got %d", avail)
	}
}

func TestAddFailsWholeWhenStockShort(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	item := seedItem(t, db, 2)

	if _, err := svc.Add(ctx, AddInput{OwnerKey: "user:u1", ItemID: item.ID, Quantity: 2}); err != nil {
		t.Fatalf("first add: %v", err)
	}

	_, err := svc.Add(ctx, AddInput{OwnerKey: "guest:g1", ItemID: item.ID, Quantity: 1})
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	lines, _ := svc.List(ctx, "guest:g1")
	if len(lines) != 0 {
		t.Fatalf("failed add must not leave a line, got %d", len(lines))
	}
}

func TestUpdateQuantityShrinkAndGrow(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	item := seedItem(t, db, 3)

	line, err := svc.Add(ctx, AddInput{OwnerKey: "user:u1", ItemID: item.ID, Quantity: 3})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	// Shrink works even with the whole stock held: old hold is released first.
	if err := svc.UpdateQuantity(ctx, "user:u1", line.ID, 1); err != nil {
		t.Fatalf("shrink: %v", err)
	}
	avail, _ := reservation.Availability(ctx, db, item.ID, nil)
	if avail != 2 {
		t.Fatalf("expected availability 2 after shrink, got %d", avail)
	}

	if err := svc.UpdateQuantity(ctx, "user:u1", line.ID, 3); err != nil {
		t.Fatalf("grow: %v", err)
	}
	avail, _ = reservation.Availability(ctx, db, item.ID, nil)
	if avail != 0 {
		t.Fatalf("expected availability 0 after grow, got %d", avail)
	}
}

func TestUpdateQuantityFailedGrowKeepsOldHold(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	item := seedItem(t, db, 3)

	line, err := svc.Add(ctx, AddInput{OwnerKey: "user:u1", ItemID: item.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	err = svc.UpdateQuantity(ctx, "user:u1", line.ID, 5)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	lines, _ := svc.List(ctx, "user:u1")
	if len(lines) != 1 || lines[0].Quantity != 2 {
		t.Fatalf("line must keep quantity 2 after failed grow")
	}
	avail, _ := reservation.Availability(ctx, db, item.ID, nil)
	if avail != 1 {
		t.Fatalf("old hold must survive failed grow, got availability %d", avail)
	}
}

func TestUpdateQuantityZeroRemovesLine(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	item := seedItem(t, db, 2)

	line, err := svc.Add(ctx, AddInput{OwnerKey: "user:u1", ItemID: item.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.UpdateQuantity(ctx, "user:u1", line.ID, 0); err != nil {
		t.Fatalf("update to zero: %v", err)
	}

	lines, _ := svc.List(ctx, "user:u1")
	if len(lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(lines))
	}
	avail, _ := reservation.Availability(ctx, db, item.ID, nil)
	if avail != 2 {
		t.Fatalf("expected availability restored to 2, got %d", avail)
	}
}

func TestRemoveReleasesHold(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	item := seedItem(t, db, 1)

	line, err := svc.Add(ctx, AddInput{OwnerKey: "user:u1", ItemID: item.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Remove(ctx, "user:u1", line.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if err := svc.Remove(ctx, "user:u1", line.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found on second remove, got %v", err)
	}

	avail, _ := reservation.Availability(ctx, db, item.ID, nil)
	if avail != 1 {
		t.Fatalf("expected availability 1, got %d", avail)
	}
}

func TestRemoveIsOwnerScoped(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	item := seedItem(t, db, 1)

	line, err := svc.Add(ctx, AddInput{OwnerKey: "user:u1", ItemID: item.ID, Quantity: 1})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Remove(ctx, "user:other", line.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found for foreign owner, got %v", err)
	}
}

func TestClear(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	item := seedItem(t, db, 5)

	if _, err := svc.Add(ctx, AddInput{OwnerKey: "user:u1", ItemID: item.ID, Quantity: 3}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Clear(ctx, "user:u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}

	lines, _ := svc.List(ctx, "user:u1")
	if len(lines) != 0 {
		t.Fatalf("expected empty cart, got %d lines", len(lines))
	}
	avail, _ := reservation.Availability(ctx, db, item.ID, nil)
	if avail != 5 {
		t.Fatalf("expected full availability after clear, got %d", avail)
	}
}

func TestSweepIdle(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	item := seedItem(t, db, 10)

	if _, err := svc.Add(ctx, AddInput{OwnerKey: "user:stale", ItemID: item.ID, Quantity: 2}); err != nil {
		t.Fatalf("add stale: %v", err)
	}
	// Backdate the stale cart past the idle cutoff.
	if err := db.Model(&models.CartItem{}).
		Where("owner_key = ?", "user:stale").
		Update("updated_at", time.Now().UTC().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if _, err := svc.Add(ctx, AddInput{OwnerKey: "user:fresh", ItemID: item.ID, Quantity: 1}); err != nil {
		t.Fatalf("add fresh: %v", err)
	}

	removed, err := svc.SweepIdle(ctx, time.Now().UTC().Add(-30*time.Minute), 50)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 idle line removed, got %d", removed)
	}

	fresh, _ := svc.List(ctx, "user:fresh")
	if len(fresh) != 1 {
		t.Fatalf("fresh cart must survive the sweep")
	}
	avail, _ := reservation.Availability(ctx, db, item.ID, nil)
	if avail != 9 {
		t.Fatalf("expected availability 9 after sweep, got %d", avail)
	}
}
