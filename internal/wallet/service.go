package wallet

import (
	"context"
	"errors"

	"github.com/giftlane/giftlane-backend/pkg/db/models"
	"github.com/giftlane/giftlane-backend/pkg/enums"
	pkgerrors "github.com/giftlane/giftlane-backend/pkg/errors"
	"github.com/giftlane/giftlane-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service maintains per-user wallet balances. Every balance change writes an
// immutable ledger row in the same transaction, so the balance is always
// explainable as the sum of its transactions.
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) (*Service, error) {
	if db == nil {
		return nil, errors.New("wallet.NewService: db is required")
	}
	return &Service{db: db}, nil
}

// Balance returns the user's current credit, zero for users with no wallet row.
func (s *Service) Balance(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	var row models.WalletBalance
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet balance")
	}
	return row.Balance, nil
}

// Credit adds funds inside the caller's transaction. Used for cashback on
// delivery and for refund credits.
func (s *Service) Credit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, txType enums.WalletTransactionType, orderID *uuid.UUID, meta types.JSONMap) error {
	if amount.IsNegative() || amount.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}
	if !txType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid wallet transaction type")
	}
	err := tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance": gorm.Expr("wallet_balances.balance + ?", amount),
		}),
	}).Create(&models.WalletBalance{UserID: userID, Balance: amount}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert wallet balance")
	}
	return s.record(ctx, tx, userID, amount, txType, orderID, meta)
}

// Debit removes funds inside the caller's transaction, failing when the
// balance does not cover the amount. The conditional update is the only
// overdraft guard, so concurrent spends cannot take the balance negative.
func (s *Service) Debit(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, orderID *uuid.UUID, meta types.JSONMap) error {
	if amount.IsNegative() || amount.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "debit amount must be positive")
	}
	res := tx.WithContext(ctx).
		Model(&models.WalletBalance{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "debit wallet balance")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient wallet balance")
	}
	return s.record(ctx, tx, userID, amount.Neg(), enums.WalletTransactionSpend, orderID, meta)
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal, txType enums.WalletTransactionType, orderID *uuid.UUID, meta types.JSONMap) error {
	entry := &models.WalletTransaction{
		UserID:   userID,
		OrderID:  orderID,
		Type:     txType,
		Amount:   amount,
		Metadata: meta,
	}
	if err := tx.WithContext(ctx).Create(entry).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record wallet transaction")
	}
	return nil
}

// History lists the user's most recent ledger rows, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.WalletTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var rows []models.WalletTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}
	return rows, nil
}
