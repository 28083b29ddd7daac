package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aviator/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func (r *Repository) CreateWithdrawal(ctx context.Context, withdrawal *models.WithdrawalRequest) error {
	return r.db.WithContext(ctx).Create(withdrawal).Error
}

func (r *Repository) GetWithdrawalByID(ctx context.Context, id uint) (*models.WithdrawalRequest, error) {
	var withdrawal models.WithdrawalRequest
	err := r.db.WithContext(ctx).
		Preload("Approvals").
		Where("id = ?", id).
		First(&withdrawal).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get withdrawal %d: %w", id, err)
	}

	return &withdrawal, nil
}

func (r *Repository) GetPendingWithdrawals(ctx context.Context) ([]*models.WithdrawalRequest, error) {
	var withdrawals []*models.WithdrawalRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", models.WithdrawalStatusPending).
		Order("created_at ASC").
		Find(&withdrawals).Error

	if err != nil {
		return nil, fmt.Errorf("failed to get pending withdrawals: %w", err)
	}
	return withdrawals, nil
}

// SumConfirmedWithdrawalsToday returns the total confirmed amount the user
// already withdrew in the given currency since local midnight. Feeds the
// daily-limit check.
func (r *Repository) SumConfirmedWithdrawalsToday(ctx context.Context, userID int64, currency string, now time.Time) (decimal.Decimal, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&models.WithdrawalRequest{}).
		Where("user_id = ? AND currency = ? AND status = ? AND created_at >= ?",
			userID, currency, models.WithdrawalStatusConfirmed, dayStart).
		Select("COALESCE(SUM(amount),0)").
		Scan(&sum).Error

	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum confirmed withdrawals: %w", err)
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func (r *Repository) UpdateWithdrawalStatus(ctx context.Context, tx *gorm.DB, id uint, status string) error {
	db := r.db
	if tx != nil {
		db = tx
	}

	err := db.WithContext(ctx).
		Model(&models.WithdrawalRequest{}).
		Where("id = ?", id).
		Update("status", status).Error

	if err != nil {
		return fmt.Errorf("failed to update withdrawal status: %w", err)
	}
	return nil
}

func (r *Repository) MarkWithdrawalConfirmed(ctx context.Context, tx *gorm.DB, id uint, txSignature string) error {
	db := r.db
	if tx != nil {
		db = tx
	}

	err := db.WithContext(ctx).
		Model(&models.WithdrawalRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       models.WithdrawalStatusConfirmed,
			"tx_signature": txSignature,
		}).Error

	if err != nil {
		return fmt.Errorf("failed to confirm withdrawal %d: %w", id, err)
	}
	return nil
}

func (r *Repository) MarkWithdrawalRejected(ctx context.Context, id uint, reason string) error {
	err := r.db.WithContext(ctx).
		Model(&models.WithdrawalRequest{}).
		Where("id = ? AND status = ?", id, models.WithdrawalStatusPending).
		Updates(map[string]interface{}{
			"status":        models.WithdrawalStatusRejected,
			"reject_reason": reason,
		}).Error

	if err != nil {
		return fmt.Errorf("failed to reject withdrawal %d: %w", id, err)
	}
	return nil
}

// ExpirePendingWithdrawals marks every pending request past its deadline as
// expired and returns how many rows were touched.
func (r *Repository) ExpirePendingWithdrawals(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.WithdrawalRequest{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", models.WithdrawalStatusPending, now).
		Update("status", models.WithdrawalStatusExpired)

	if res.Error != nil {
		return 0, fmt.Errorf("failed to expire pending withdrawals: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *Repository) CreateApproval(ctx context.Context, approval *models.WithdrawalApproval) error {
	return r.db.WithContext(ctx).Create(approval).Error
}

func (r *Repository) CountApprovals(ctx context.Context, requestID uint) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WithdrawalApproval{}).
		Where("request_id = ?", requestID).
		Count(&count).Error

	if err != nil {
		return 0, fmt.Errorf("failed to count approvals for request %d: %w", requestID, err)
	}
	return int(count), nil
}
