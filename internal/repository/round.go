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

func (r *Repository) CreateRound(ctx context.Context, round *models.Round) error {
	return r.db.WithContext(ctx).Create(round).Error
}

func (r *Repository) GetRoundByID(ctx context.Context, id uint) (*models.Round, error) {
	var round models.Round
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&round).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round %d: %w", id, err)
	}

	return &round, nil
}

// GetCurrentRound returns the latest round that has not crashed yet.
func (r *Repository) GetCurrentRound(ctx context.Context) (*models.Round, error) {
	var round models.Round
	err := r.db.WithContext(ctx).
		Where("status IN ?", []string{models.RoundStatusOpen, models.RoundStatusLocked}).
		Order("id DESC").
		First(&round).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current round: %w", err)
	}

	return &round, nil
}

// AddRoundTotals bumps the aggregate wager figures inside the bet-placement
// transaction. Only valid while the round is still open.
func (r *Repository) AddRoundTotals(ctx context.Context, tx *gorm.DB, roundID uint, amount decimal.Decimal) error {
	db := r.db
	if tx != nil {
		db = tx
	}

	res := db.WithContext(ctx).
		Model(&models.Round{}).
		Where("id = ? AND status = ?", roundID, models.RoundStatusOpen).
		Updates(map[string]interface{}{
			"total_bet_amount": gorm.Expr("total_bet_amount + ?", amount),
			"total_bet_count":  gorm.Expr("total_bet_count + 1"),
		})

	if res.Error != nil {
		return fmt.Errorf("failed to update round totals: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.New("round is not open for betting")
	}
	return nil
}

// LockRound fixes the crash point. The status guard makes the transition
// one-shot: a second lock attempt affects no rows.
func (r *Repository) LockRound(ctx context.Context, roundID uint, crashPoint float64, lockedAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Round{}).
		Where("id = ? AND status = ?", roundID, models.RoundStatusOpen).
		Updates(map[string]interface{}{
			"status":      models.RoundStatusLocked,
			"crash_point": crashPoint,
			"nonce":       roundID,
			"locked_at":   lockedAt,
		})

	if res.Error != nil {
		return fmt.Errorf("failed to lock round %d: %w", roundID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.New("round already locked")
	}
	return nil
}

func (r *Repository) FinishRound(ctx context.Context, tx *gorm.DB, roundID uint, result string, crashedAt time.Time) error {
	db := r.db
	if tx != nil {
		db = tx
	}

	res := db.WithContext(ctx).
		Model(&models.Round{}).
		Where("id = ? AND status = ?", roundID, models.RoundStatusLocked).
		Updates(map[string]interface{}{
			"status":     models.RoundStatusCrashed,
			"result":     result,
			"crashed_at": crashedAt,
		})

	if res.Error != nil {
		return fmt.Errorf("failed to finish round %d: %w", roundID, res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.New("round is not in flight")
	}
	return nil
}
