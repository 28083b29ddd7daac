package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aviator/internal/models"
	"aviator/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNoOpenRound     = errors.New("no round is open for betting")
	ErrNoRoundInFlight = errors.New("no round is in flight")
	ErrRoundCrashed    = errors.New("the round already crashed")
)

type Repository interface {
	CreateRound(ctx context.Context, round *models.Round) error
	GetRoundByID(ctx context.Context, id uint) (*models.Round, error)
	GetCurrentRound(ctx context.Context) (*models.Round, error)
	AddRoundTotals(ctx context.Context, tx *gorm.DB, roundID uint, amount decimal.Decimal) error
	LockRound(ctx context.Context, roundID uint, crashPoint float64, lockedAt time.Time) error
	FinishRound(ctx context.Context, tx *gorm.DB, roundID uint, result string, crashedAt time.Time) error

	CreateBet(ctx context.Context, tx *gorm.DB, bet *models.Bet) error
	GetActiveBetsByRound(ctx context.Context, roundID uint) ([]*models.Bet, error)
	GetActiveBetByUser(ctx context.Context, roundID uint, userID int64) (*models.Bet, error)
	SetBetCashOut(ctx context.Context, betID uint, multiplier float64) error
	ResolveBet(ctx context.Context, tx *gorm.DB, betID uint, status string, payout decimal.Decimal) error

	GetUser(ctx context.Context, userID int64) (*models.User, error)
	DebitBalance(ctx context.Context, tx *gorm.DB, userID int64, amountUSD decimal.Decimal) error
	CreditBalance(ctx context.Context, tx *gorm.DB, userID int64, amountUSD decimal.Decimal) error

	BeginTransaction(ctx context.Context) (*gorm.DB, error)
	Commit(tx *gorm.DB) error
	Rollback(tx *gorm.DB)

	RecordAudit(ctx context.Context, event string, userID int64, details string)
}

// Service runs the round lifecycle: open, take bets, lock with a crash
// point, resolve.
type Service struct {
	repo          Repository
	selector      *Selector
	logger        *utils.Logger
	bettingWindow time.Duration
	cooldown      time.Duration
}

func NewService(repo Repository, logger *utils.Logger, bettingWindow, cooldown time.Duration) *Service {
	return &Service{
		repo:          repo,
		selector:      NewSelector(nil),
		logger:        logger,
		bettingWindow: bettingWindow,
		cooldown:      cooldown,
	}
}

// OpenRound creates a fresh round with a published seed commitment.
func (s *Service) OpenRound(ctx context.Context) (*models.Round, error) {
	seed, err := GenerateServerSeed()
	if err != nil {
		return nil, err
	}

	round := &models.Round{
		Ref:            uuid.New().String(),
		Seed:           seed,
		SeedHash:       SeedHash(seed),
		Status:         models.RoundStatusOpen,
		TotalBetAmount: decimal.Zero,
		Result:         "pending",
		StartedAt:      time.Now(),
	}

	if err := s.repo.CreateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("failed to create round: %w", err)
	}

	s.logger.Infof("Round %s opened, commitment %s", round.Ref, round.SeedHash)
	return round, nil
}

// PlaceBet debits the wager from the user's balance and registers the bet
// on the currently open round, all inside one database transaction.
func (s *Service) PlaceBet(ctx context.Context, userID int64, amount decimal.Decimal) (*models.Bet, error) {
	if !amount.IsPositive() {
		return nil, errors.New("bet amount must be positive")
	}

	round, err := s.repo.GetCurrentRound(ctx)
	if err != nil {
		return nil, err
	}
	if round == nil || round.Status != models.RoundStatusOpen {
		return nil, ErrNoOpenRound
	}

	existing, err := s.repo.GetActiveBetByUser(ctx, round.ID, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New("a bet is already placed on this round")
	}

	tx, err := s.repo.BeginTransaction(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DebitBalance(ctx, tx, userID, amount); err != nil {
		s.repo.Rollback(tx)
		return nil, err
	}

	bet := &models.Bet{
		RoundID:   round.ID,
		UserID:    userID,
		Amount:    amount,
		Status:    models.BetStatusActive,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateBet(ctx, tx, bet); err != nil {
		s.repo.Rollback(tx)
		return nil, fmt.Errorf("failed to create bet: %w", err)
	}

	if err := s.repo.AddRoundTotals(ctx, tx, round.ID, amount); err != nil {
		s.repo.Rollback(tx)
		return nil, err
	}

	if err := s.repo.Commit(tx); err != nil {
		return nil, err
	}

	s.repo.RecordAudit(ctx, "bet_placed", userID,
		fmt.Sprintf("round=%s amount=%s", round.Ref, amount.String()))
	return bet, nil
}

// LockRound fixes the crash point from the bets accumulated so far. The
// draw runs on the committed seed, so it can be verified after the reveal.
func (s *Service) LockRound(ctx context.Context, roundID uint) (*models.Round, error) {
	round, err := s.repo.GetRoundByID(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if round == nil || round.Status != models.RoundStatusOpen {
		return nil, ErrNoOpenRound
	}

	entropy := FairEntropy{
		ServerSeed: round.Seed,
		ClientSeed: round.Ref,
		Nonce:      int(round.ID),
	}
	crashPoint, err := NewSelector(entropy).SelectCrashMultiplier(round.TotalBetAmount, round.TotalBetCount)
	if err != nil {
		return nil, fmt.Errorf("failed to select crash multiplier: %w", err)
	}

	now := time.Now()
	if err := s.repo.LockRound(ctx, round.ID, crashPoint, now); err != nil {
		return nil, err
	}

	round.Status = models.RoundStatusLocked
	round.CrashPoint = crashPoint
	round.Nonce = entropy.Nonce
	round.LockedAt = &now

	s.logger.Infof("Round %s locked: %d bets, %s wagered, crash at %.2fx",
		round.Ref, round.TotalBetCount, round.TotalBetAmount.String(), crashPoint)
	return round, nil
}

// CashOut records the multiplier a player bailed out at. A cash-out above
// the crash point means the plane was already gone; it is rejected and the
// bet rides to its loss.
func (s *Service) CashOut(ctx context.Context, userID int64, multiplier float64) (*models.Bet, error) {
	if multiplier < 1.0 {
		return nil, errors.New("cash-out multiplier must be at least 1.00")
	}

	round, err := s.repo.GetCurrentRound(ctx)
	if err != nil {
		return nil, err
	}
	if round == nil || round.Status != models.RoundStatusLocked {
		return nil, ErrNoRoundInFlight
	}
	if multiplier > round.CrashPoint {
		return nil, ErrRoundCrashed
	}

	bet, err := s.repo.GetActiveBetByUser(ctx, round.ID, userID)
	if err != nil {
		return nil, err
	}
	if bet == nil {
		return nil, errors.New("no active bet on this round")
	}

	if err := s.repo.SetBetCashOut(ctx, bet.ID, multiplier); err != nil {
		return nil, err
	}
	bet.CashOutMultiplier = &multiplier

	s.repo.RecordAudit(ctx, "bet_cashed_out", userID,
		fmt.Sprintf("round=%s bet=%d multiplier=%.2f", round.Ref, bet.ID, multiplier))
	return bet, nil
}

// ResolveRound settles every active bet against the crash point and credits
// winners, all in one transaction. The payout floor zeroes every payout when
// the crash sits at or below 1.20x.
func (s *Service) ResolveRound(ctx context.Context, roundID uint) error {
	round, err := s.repo.GetRoundByID(ctx, roundID)
	if err != nil {
		return err
	}
	if round == nil || round.Status != models.RoundStatusLocked {
		return ErrNoRoundInFlight
	}

	bets, err := s.repo.GetActiveBetsByRound(ctx, round.ID)
	if err != nil {
		return err
	}

	tx, err := s.repo.BeginTransaction(ctx)
	if err != nil {
		return err
	}

	var winners, losers int
	for _, bet := range bets {
		status, payout := SettleBet(bet.Amount, bet.CashOutMultiplier, round.CrashPoint)

		if err := s.repo.ResolveBet(ctx, tx, bet.ID, status, payout); err != nil {
			s.repo.Rollback(tx)
			return err
		}

		if status == models.BetStatusWon {
			winners++
			if payout.IsPositive() {
				if err := s.repo.CreditBalance(ctx, tx, bet.UserID, payout); err != nil {
					s.repo.Rollback(tx)
					return err
				}
			}
		} else {
			losers++
		}
	}

	if err := s.repo.FinishRound(ctx, tx, round.ID, FormatResult(round.CrashPoint), time.Now()); err != nil {
		s.repo.Rollback(tx)
		return err
	}

	if err := s.repo.Commit(tx); err != nil {
		return err
	}

	s.repo.RecordAudit(ctx, "round_resolved", 0,
		fmt.Sprintf("round=%s crash=%.2f won=%d lost=%d seed=%s", round.Ref, round.CrashPoint, winners, losers, round.Seed))
	s.logger.Infof("Round %s crashed at %.2fx: %d won, %d lost", round.Ref, round.CrashPoint, winners, losers)
	return nil
}

// Tick advances the round state machine. Driven by the scheduler: opens a
// round when none is live, locks it once the betting window closes and
// resolves it when the curve reaches the crash point.
func (s *Service) Tick(ctx context.Context) error {
	round, err := s.repo.GetCurrentRound(ctx)
	if err != nil {
		return err
	}

	now := time.Now()

	switch {
	case round == nil:
		_, err := s.OpenRound(ctx)
		return err
	case round.Status == models.RoundStatusOpen:
		if now.Sub(round.StartedAt) >= s.bettingWindow {
			_, err := s.LockRound(ctx, round.ID)
			return err
		}
	case round.Status == models.RoundStatusLocked:
		if round.LockedAt != nil && now.Sub(*round.LockedAt) >= FlightDuration(round.CrashPoint)+s.cooldown {
			return s.ResolveRound(ctx, round.ID)
		}
	}

	return nil
}
