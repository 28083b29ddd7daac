package repository

import (
	"context"
	"errors"
	"fmt"

	"aviator/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func (r *Repository) CreateBet(ctx context.Context, tx *gorm.DB, bet *models.Bet) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.WithContext(ctx).Create(bet).Error
}

func (r *Repository) GetActiveBetsByRound(ctx context.Context, roundID uint) ([]*models.Bet, error) {
	var bets []*models.Bet
	err := r.db.WithContext(ctx).
		Where("round_id = ? AND status = ?", roundID, models.BetStatusActive).
		Order("id ASC").
		Find(&bets).Error

	if err != nil {
		return nil, fmt.Errorf("failed to get active bets for round %d: %w", roundID, err)
	}
	return bets, nil
}

func (r *Repository) GetActiveBetByUser(ctx context.Context, roundID uint, userID int64) (*models.Bet, error) {
	var bet models.Bet
	err := r.db.WithContext(ctx).
		Where("round_id = ? AND user_id = ? AND status = ?", roundID, userID, models.BetStatusActive).
		First(&bet).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active bet: %w", err)
	}

	return &bet, nil
}

// SetBetCashOut records the cash-out multiplier exactly once. The guard on
// cash_out_multiplier keeps a double cash-out from overwriting the first.
func (r *Repository) SetBetCashOut(ctx context.Context, betID uint, multiplier float64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Bet{}).
		Where("id = ? AND status = ? AND cash_out_multiplier IS NULL", betID, models.BetStatusActive).
		Update("cash_out_multiplier", multiplier)

	if res.Error != nil {
		return fmt.Errorf("failed to set cash out for bet %d: %w", betID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.New("bet already cashed out or resolved")
	}
	return nil
}

// ResolveBet moves an active bet to its terminal status. Resolved bets are
// immutable: the status guard makes a second resolution a no-op error.
func (r *Repository) ResolveBet(ctx context.Context, tx *gorm.DB, betID uint, status string, payout decimal.Decimal) error {
	db := r.db
	if tx != nil {
		db = tx
	}

	res := db.WithContext(ctx).
		Model(&models.Bet{}).
		Where("id = ? AND status = ?", betID, models.BetStatusActive).
		Updates(map[string]interface{}{
			"status": status,
			"payout": payout,
		})

	if res.Error != nil {
		return fmt.Errorf("failed to resolve bet %d: %w", betID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.New("bet already resolved")
	}
	return nil
}
