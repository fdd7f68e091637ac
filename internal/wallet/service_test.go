package wallet

import (
	"context"
	"testing"

	"github.com/giftlane/giftlane-backend/pkg/db/models"
	"github.com/giftlane/giftlane-backend/pkg/enums"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:wallet_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.WalletBalance{}, &models.WalletTransaction{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestCreditCreatesWalletAndLedgerRow(t *testing.T) {
	db := newTestDB(t)
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()
	userID := uuid.New()

	if err := svc.Credit(ctx, db, userID, decimal.NewFromInt(25), enums.WalletTransactionCashback, nil, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}

	bal, err := svc.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bal.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected balance 25, got %s", bal)
	}

	rows, err := svc.History(ctx, userID, 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(rows))
	}
	if rows[0].Type != enums.WalletTransactionCashback {
		t.Fatalf("expected cashback ledger row, got %s", rows[0].Type)
	}
}

func TestCreditAccumulates(t *testing.T) {
	db := newTestDB(t)
	svc, _ := NewService(db)
	ctx := context.Background()
	userID := uuid.New()

	if err := svc.Credit(ctx, db, userID, decimal.NewFromInt(10), enums.WalletTransactionCashback, nil, nil); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	orderID := uuid.New()
	if err := svc.Credit(ctx, db, userID, decimal.NewFromInt(15), enums.WalletTransactionRefund, &orderID, nil); err != nil {
		t.Fatalf("second credit: %v", err)
	}

	bal, err := svc.Balance(ctx, userID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bal.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("expected balance 25, got %s", bal)
	}
}

func TestDebitRejectsOverdraft(t *testing.T) {
	db := newTestDB(t)
	svc, _ := NewService(db)
	ctx := context.Background()
	userID := uuid.New()

	if err := svc.Credit(ctx, db, userID, decimal.NewFromInt(20), enums.WalletTransactionCashback, nil, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}

	err := svc.Debit(ctx, db, userID, decimal.NewFromInt(30), nil, nil)
	if !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict on overdraft, got %v", err)
	}

	bal, _ := svc.Balance(ctx, userID)
	if !bal.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("balance must be untouched after failed debit, got %s", bal)
	}
	rows, _ := svc.History(ctx, userID, 10)
	if len(rows) != 1 {
		t.Fatalf("failed debit must not write a ledger row, got %d rows", len(rows))
	}
}

func TestDebitRecordsNegativeAmount(t *testing.T) {
	db := newTestDB(t)
	svc, _ := NewService(db)
	ctx := context.Background()
	userID := uuid.New()

	if err := svc.Credit(ctx, db, userID, decimal.NewFromInt(50), enums.WalletTransactionCashback, nil, nil); err != nil {
		t.Fatalf("credit: %v", err)
	}
	orderID := uuid.New()
	if err := svc.Debit(ctx, db, userID, decimal.NewFromInt(30), &orderID, nil); err != nil {
		t.Fatalf("debit: %v", err)
	}

	bal, _ := svc.Balance(ctx, userID)
	if !bal.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected balance 20, got %s", bal)
	}
	rows, _ := svc.History(ctx, userID, 10)
	if len(rows) != 2 {
		t.Fatalf("expected 2 ledger rows, got %d", len(rows))
	}
	var debit *models.WalletTransaction
	for i := range rows {
		if rows[i].Type == enums.WalletTransactionSpend {
			debit = &rows[i]
		}
	}
	if debit == nil {
		t.Fatalf("missing spend ledger row")
	}
	if !debit.Amount.Equal(decimal.NewFromInt(-30)) {
		t.Fatalf("expected ledger amount -30, got %s", debit.Amount)
	}
}

func TestBalanceForUnknownUserIsZero(t *testing.T) {
	db := newTestDB(t)
	svc, _ := NewService(db)

	bal, err := svc.Balance(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !bal.IsZero() {
		t.Fatalf("expected zero balance, got %s", bal)
	}
}

func TestCreditValidation(t *testing.T) {
	db := newTestDB(t)
	svc, _ := NewService(db)
	ctx := context.Background()

	if err := svc.Credit(ctx, db, uuid.New(), decimal.Zero, enums.WalletTransactionCashback, nil, nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for zero credit, got %v", err)
	}
	if err := svc.Credit(ctx, db, uuid.New(), decimal.NewFromInt(5), enums.WalletTransactionType("bogus"), nil, nil); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for bad type, got %v", err)
	}
}
