package repository

import (
	"context"
	"errors"
	"fmt"

	"aviator/internal/models"

	"gorm.io/gorm"
)

func (r *Repository) GetDeposit(ctx context.Context, txSignature string) (*models.Deposit, error) {
	var deposit models.Deposit
	err := r.db.WithContext(ctx).Where("tx_signature = ?", txSignature).First(&deposit).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit %s: %w", txSignature, err)
	}

	return &deposit, nil
}

func (r *Repository) CreateDeposit(ctx context.Context, deposit *models.Deposit) error {
	return r.db.WithContext(ctx).Create(deposit).Error
}

func (r *Repository) GetUncreditedDeposits(ctx context.Context) ([]*models.Deposit, error) {
	var deposits []*models.Deposit
	err := r.db.WithContext(ctx).
		Where("credited = ?", false).
		Order("created_at ASC").
		Find(&deposits).Error

	if err != nil {
		return nil, fmt.Errorf("failed to get uncredited deposits: %w", err)
	}
	return deposits, nil
}

func (r *Repository) UpdateDepositConfirmations(ctx context.Context, txSignature string, confirmations uint64) error {
	err := r.db.WithContext(ctx).
		Model(&models.Deposit{}).
		Where("tx_signature = ?", txSignature).
		Update("confirmations", confirmations).Error

	if err != nil {
		return fmt.Errorf("failed to update deposit confirmations: %w", err)
	}
	return nil
}

// MarkDepositCredited flips the credited flag inside the crediting
// transaction. The guard keeps a deposit from being credited twice.
func (r *Repository) MarkDepositCredited(ctx context.Context, tx *gorm.DB, txSignature string) error {
	db := r.db
	if tx != nil {
		db = tx
	}

	res := db.WithContext(ctx).
		Model(&models.Deposit{}).
		Where("tx_signature = ? AND credited = ?", txSignature, false).
		Update("credited", true)

	if res.Error != nil {
		return fmt.Errorf("failed to mark deposit credited: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.New("deposit already credited")
	}
	return nil
}
