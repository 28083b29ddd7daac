package service

import (
	"context"
	"fmt"
	"time"

	"aviator/config"
	"aviator/internal/models"
	"aviator/utils"
)

// DepositService watches user deposit addresses and credits the ledger
// once a transaction has enough confirmations behind it.
type DepositService struct {
	repo   Repository
	chain  ChainClient
	rates  RateSource
	cfg    *config.Config
	logger *utils.Logger
}

func NewDepositService(repo Repository, chain ChainClient, rates RateSource, cfg *config.Config, logger *utils.Logger) *DepositService {
	return &DepositService{
		repo:   repo,
		chain:  chain,
		rates:  rates,
		cfg:    cfg,
		logger: logger,
	}
}

// Confirmations is the finality proxy: blocks produced after the
// transaction's inclusion slot.
func (s *DepositService) Confirmations(currentSlot, inclusionSlot uint64) uint64 {
	if currentSlot <= inclusionSlot {
		return 0
	}
	return currentSlot - inclusionSlot
}

// IsFinalized reports whether a transaction cleared the confirmation
// threshold.
func (s *DepositService) IsFinalized(currentSlot, inclusionSlot uint64) bool {
	return s.Confirmations(currentSlot, inclusionSlot) >= s.cfg.RequiredConfirmations
}

// Poll scans deposit addresses for new transactions, then credits every
// recorded deposit that reached finality. Safe to run repeatedly: deposits
// are keyed by signature and credited at most once.
func (s *DepositService) Poll(ctx context.Context) error {
	currentSlot, err := s.chain.CurrentSlot(ctx)
	if err != nil {
		return fmt.Errorf("failed to read current slot: %w", err)
	}

	if err := s.scanAddresses(ctx); err != nil {
		return err
	}
	return s.creditFinalized(ctx, currentSlot)
}

func (s *DepositService) scanAddresses(ctx context.Context) error {
	users, err := s.repo.GetUsersWithDepositAddress(ctx)
	if err != nil {
		return err
	}

	for _, user := range users {
		sigs, err := s.chain.SignaturesForAddress(ctx, user.DepositAddress, 20)
		if err != nil {
			s.logger.Errorf("Failed to list signatures for %s: %v", user.DepositAddress, err)
			continue
		}

		for _, sig := range sigs {
			if sig.Failed {
				continue
			}

			existing, err := s.repo.GetDeposit(ctx, sig.Signature)
			if err != nil {
				s.logger.Errorf("Failed to look up deposit %s: %v", sig.Signature, err)
				continue
			}
			if existing != nil {
				continue
			}

			amount, currency, err := s.chain.DepositAmount(ctx, sig.Signature, user.DepositAddress)
			if err != nil {
				s.logger.Errorf("Failed to read deposit amount for %s: %v", sig.Signature, err)
				continue
			}
			if !amount.IsPositive() {
				continue
			}

			deposit := &models.Deposit{
				TxSignature: sig.Signature,
				UserID:      user.ID,
				Address:     user.DepositAddress,
				Currency:    currency,
				Amount:      amount,
				Slot:        sig.Slot,
				CreatedAt:   time.Now(),
			}
			if err := s.repo.CreateDeposit(ctx, deposit); err != nil {
				s.logger.Errorf("Failed to record deposit %s: %v", sig.Signature, err)
				continue
			}
			s.logger.Infof("Recorded deposit %s: %s %s for user %d", sig.Signature, amount.String(), currency, user.ID)
		}
	}

	return nil
}

func (s *DepositService) creditFinalized(ctx context.Context, currentSlot uint64) error {
	deposits, err := s.repo.GetUncreditedDeposits(ctx)
	if err != nil {
		return err
	}

	for _, deposit := range deposits {
		confirmations := s.Confirmations(currentSlot, deposit.Slot)
		if confirmations != deposit.Confirmations {
			if err := s.repo.UpdateDepositConfirmations(ctx, deposit.TxSignature, confirmations); err != nil {
				s.logger.Errorf("Failed to update confirmations for %s: %v", deposit.TxSignature, err)
			}
		}
		if confirmations < s.cfg.RequiredConfirmations {
			continue
		}

		amountUSD := deposit.Amount.Mul(s.rates.USDRate(ctx, deposit.Currency))

		tx, err := s.repo.BeginTransaction(ctx)
		if err != nil {
			return err
		}
		if err := s.repo.MarkDepositCredited(ctx, tx, deposit.TxSignature); err != nil {
			s.repo.Rollback(tx)
			s.logger.Errorf("Failed to mark deposit %s credited: %v", deposit.TxSignature, err)
			continue
		}
		if err := s.repo.CreditBalance(ctx, tx, deposit.UserID, amountUSD); err != nil {
			s.repo.Rollback(tx)
			s.logger.Errorf("Failed to credit deposit %s: %v", deposit.TxSignature, err)
			continue
		}
		if err := s.repo.Commit(tx); err != nil {
			continue
		}

		s.repo.RecordAudit(ctx, "deposit_credited", deposit.UserID,
			fmt.Sprintf("signature=%s amount=%s %s usd=%s confirmations=%d",
				deposit.TxSignature, deposit.Amount.String(), deposit.Currency, amountUSD.StringFixed(2), confirmations))
		s.logger.Infof("Credited deposit %s: %s USD to user %d", deposit.TxSignature, amountUSD.StringFixed(2), deposit.UserID)
	}

	return nil
}
