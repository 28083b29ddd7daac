package jobs

import (
	"context"

	"aviator/internal/game"
	"aviator/internal/service"
	"aviator/utils"

	"github.com/robfig/cron/v3"
)

// Scheduler drives the recurring work: the round state machine, deposit
// confirmation polling and the withdrawal expiry sweep.
type Scheduler struct {
	cron        *cron.Cron
	game        *game.Service
	deposits    *service.DepositService
	withdrawals *service.WithdrawalService
	logger      *utils.Logger
}

func NewScheduler(
	gameService *game.Service,
	deposits *service.DepositService,
	withdrawals *service.WithdrawalService,
	logger *utils.Logger,
) *Scheduler {
	return &Scheduler{
		cron:        cron.New(cron.WithSeconds()),
		game:        gameService,
		deposits:    deposits,
		withdrawals: withdrawals,
		logger:      logger,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("*/2 * * * * *", s.tickRound); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 * * * * *", s.pollDeposits); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 */10 * * * *", s.expireWithdrawals); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("⏰ Scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) tickRound() {
	if err := s.game.Tick(context.Background()); err != nil {
		s.logger.Errorf("Round tick failed: %v", err)
	}
}

func (s *Scheduler) pollDeposits() {
	if err := s.deposits.Poll(context.Background()); err != nil {
		s.logger.Errorf("Deposit poll failed: %v", err)
	}
}

func (s *Scheduler) expireWithdrawals() {
	if err := s.withdrawals.ExpireStale(context.Background()); err != nil {
		s.logger.Errorf("Withdrawal expiry sweep failed: %v", err)
	}
}
