package repository

import (
	"context"
	"errors"
	"fmt"

	"aviator/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func (r *Repository) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", userID, err)
	}

	return &user, nil
}

func (r *Repository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by telegram id %d: %w", telegramID, err)
	}

	return &user, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *Repository) GetUsersWithDepositAddress(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	err := r.db.WithContext(ctx).Where("deposit_address <> ''").Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get users with deposit address: %w", err)
	}
	return users, nil
}

// CreditBalance adds amountUSD to the user's ledger balance. When tx is nil
// the repository's own handle is used.
func (r *Repository) CreditBalance(ctx context.Context, tx *gorm.DB, userID int64, amountUSD decimal.Decimal) error {
	db := r.db
	if tx != nil {
		db = tx
	}

	res := db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("balance_usd", gorm.Expr("balance_usd + ?", amountUSD))

	if res.Error != nil {
		return fmt.Errorf("failed to credit user %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d not found for credit", userID)
	}
	return nil
}

var ErrInsufficientBalance = errors.New("insufficient balance")

// DebitBalance subtracts amountUSD from the user's ledger balance, guarding
// against overdraft at the database level.
func (r *Repository) DebitBalance(ctx context.Context, tx *gorm.DB, userID int64, amountUSD decimal.Decimal) error {
	db := r.db
	if tx != nil {
		db = tx
	}

	res := db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND balance_usd >= ?", userID, amountUSD).
		Update("balance_usd", gorm.Expr("balance_usd - ?", amountUSD))

	if res.Error != nil {
		return fmt.Errorf("failed to debit user %d: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	return nil
}
