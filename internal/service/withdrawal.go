package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"aviator/config"
	"aviator/internal/models"
	"aviator/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFees is the pre-classification gate: the ledger must
	// cover the amount plus the network fee.
	ErrInsufficientFees = errors.New("Insufficient balance for fees")

	ErrWithdrawalNotFound  = errors.New("withdrawal request not found")
	ErrAlreadyProcessed    = errors.New("withdrawal request already processed")
	ErrRequestExpired      = errors.New("withdrawal request expired")
	ErrDuplicateApproval   = errors.New("this admin already approved the request")
	ErrExecutionFailed     = errors.New("withdrawal execution failed")
	ErrUnsupportedCurrency = errors.New("unsupported withdrawal currency")
)

// WithdrawalService runs the withdrawal pipeline: security checks, tier
// classification and tier-specific execution.
type WithdrawalService struct {
	repo       Repository
	classifier *Classifier
	rates      RateSource
	chain      ChainClient
	fraud      FraudChecker
	notifier   Notifier
	cfg        *config.Config
	logger     *utils.Logger
	locks      *userLocks
}

func NewWithdrawalService(
	repo Repository,
	rates RateSource,
	chain ChainClient,
	fraud FraudChecker,
	cfg *config.Config,
	logger *utils.Logger,
) *WithdrawalService {
	if fraud == nil {
		fraud = NoopFraudChecker{}
	}
	return &WithdrawalService{
		repo:       repo,
		classifier: NewClassifier(cfg),
		rates:      rates,
		chain:      chain,
		fraud:      fraud,
		cfg:        cfg,
		logger:     logger,
		locks:      newUserLocks(),
	}
}

// SetNotifier wires the admin notification sink after construction; the
// bot needs the service and the service needs the bot.
func (s *WithdrawalService) SetNotifier(n Notifier) {
	s.notifier = n
}

// RequestWithdrawal validates, classifies and executes or parks a payout
// attempt. The returned CheckResult carries every failed check so the
// caller can present all problems at once; the error return is reserved
// for system failures and the balance/fee gate.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, userID int64, currency string, amount decimal.Decimal, toAddress string) (*models.WithdrawalRequest, *CheckResult, error) {
	if currency != models.CurrencySOL && currency != models.CurrencyUSDT {
		return nil, nil, ErrUnsupportedCurrency
	}
	if !amount.IsPositive() {
		return nil, nil, errors.New("withdrawal amount must be positive")
	}

	// Serialize per user: the daily-limit check is read-then-write and
	// must not race against a parallel request from the same user.
	lock := s.locks.lock(userID)
	defer lock.Unlock()

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, errors.New("user not found")
	}

	// The rate is read once and reused for every computation below, so a
	// mid-request ticker move cannot split the fee gate from the tier.
	rate := s.rates.USDRate(ctx, currency)

	if user.BalanceUSD.LessThan(RequiredBalanceUSD(s.cfg, currency, amount, rate)) {
		s.repo.RecordAudit(ctx, "withdrawal_blocked", userID,
			fmt.Sprintf("currency=%s amount=%s reason=%s", currency, amount.String(), ErrInsufficientFees))
		return nil, nil, ErrInsufficientFees
	}

	todayTotal, err := s.repo.SumConfirmedWithdrawalsToday(ctx, userID, currency, time.Now())
	if err != nil {
		return nil, nil, err
	}

	suspicious, err := s.fraud.IsSuspicious(ctx, userID, toAddress, amount)
	if err != nil {
		return nil, nil, fmt.Errorf("fraud check failed: %w", err)
	}

	result := s.classifier.Classify(ClassifyInput{
		UserID:     userID,
		ToAddress:  toAddress,
		Amount:     amount,
		Currency:   currency,
		TodayTotal: todayTotal,
		Suspicious: suspicious,
		RateUSD:    rate,
	})

	s.repo.RecordAudit(ctx, "withdrawal_check", userID, fmt.Sprintf(
		"currency=%s amount=%s amount_usd=%s risk=%d passed=%t reasons=%q",
		currency, amount.String(), result.AmountUSD.StringFixed(2), result.RiskScore, result.Passed,
		strings.Join(result.Reasons, "; ")))

	withdrawal := &models.WithdrawalRequest{
		Ref:       uuid.New().String(),
		UserID:    userID,
		Currency:  currency,
		Amount:    amount,
		AmountUSD: result.AmountUSD,
		ToAddress: toAddress,
		RiskScore: result.RiskScore,
		Reasons:   strings.Join(result.Reasons, "; "),
		CreatedAt: time.Now(),
	}

	if !result.Passed {
		withdrawal.Status = models.WithdrawalStatusRejected
		withdrawal.RejectReason = withdrawal.Reasons
		if err := s.repo.CreateWithdrawal(ctx, withdrawal); err != nil {
			return nil, &result, err
		}
		return withdrawal, &result, nil
	}

	withdrawal.ApprovalTier = result.Tier
	withdrawal.Status = models.WithdrawalStatusPending

	if result.Tier != models.TierAuto {
		expiresAt := time.Now().Add(time.Duration(s.cfg.ApprovalExpiryHours) * time.Hour)
		withdrawal.ExpiresAt = &expiresAt
	}

	if err := s.repo.CreateWithdrawal(ctx, withdrawal); err != nil {
		return nil, &result, err
	}

	if result.Tier == models.TierAuto {
		if err := s.execute(ctx, withdrawal); err != nil {
			return withdrawal, &result, err
		}
		return withdrawal, &result, nil
	}

	s.logger.Infof("Withdrawal #%d (%s, %s USD) parked for %s approval",
		withdrawal.ID, withdrawal.Ref, withdrawal.AmountUSD.StringFixed(2), result.Tier)
	if s.notifier != nil {
		s.notifier.WithdrawalPending(withdrawal)
	}
	return withdrawal, &result, nil
}

// execute broadcasts the transfer and settles the ledger. Fail closed: the
// ledger is debited only after the broadcast succeeded, and any failure or
// timeout leaves the balance untouched with the request marked failed.
func (s *WithdrawalService) execute(ctx context.Context, withdrawal *models.WithdrawalRequest) error {
	broadcastCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.BroadcastTimeoutSec)*time.Second)
	defer cancel()

	signature, err := s.chain.Transfer(broadcastCtx, withdrawal.ToAddress, withdrawal.Amount, withdrawal.Currency)
	if err != nil {
		s.logger.Errorf("Broadcast failed for withdrawal #%d: %v", withdrawal.ID, err)
		if stErr := s.repo.UpdateWithdrawalStatus(ctx, nil, withdrawal.ID, models.WithdrawalStatusFailed); stErr != nil {
			s.logger.Errorf("Failed to mark withdrawal #%d failed: %v", withdrawal.ID, stErr)
		}
		withdrawal.Status = models.WithdrawalStatusFailed
		s.repo.RecordAudit(ctx, "withdrawal_failed", withdrawal.UserID,
			fmt.Sprintf("ref=%s error=%v", withdrawal.Ref, err))
		return ErrExecutionFailed
	}

	tx, err := s.repo.BeginTransaction(ctx)
	if err != nil {
		return err
	}

	if err := s.repo.DebitBalance(ctx, tx, withdrawal.UserID, withdrawal.AmountUSD); err != nil {
		s.repo.Rollback(tx)
		// The transfer is already on chain; this needs an operator.
		s.logger.Errorf("CRITICAL: broadcast %s succeeded but ledger debit failed for withdrawal #%d: %v",
			signature, withdrawal.ID, err)
		return err
	}

	if err := s.repo.MarkWithdrawalConfirmed(ctx, tx, withdrawal.ID, signature); err != nil {
		s.repo.Rollback(tx)
		return err
	}

	if err := s.repo.Commit(tx); err != nil {
		return err
	}

	withdrawal.Status = models.WithdrawalStatusConfirmed
	withdrawal.TxSignature = signature
	s.repo.RecordAudit(ctx, "withdrawal_confirmed", withdrawal.UserID,
		fmt.Sprintf("ref=%s signature=%s amount_usd=%s", withdrawal.Ref, signature, withdrawal.AmountUSD.StringFixed(2)))
	s.logger.Infof("Withdrawal #%d confirmed: %s", withdrawal.ID, signature)
	return nil
}

// Approve records an admin sign-off. A manual-tier request executes on the
// first approval; a multi_sig request waits for the configured number of
// distinct approvers.
func (s *WithdrawalService) Approve(ctx context.Context, requestID uint, approver string) (*models.WithdrawalRequest, error) {
	withdrawal, err := s.repo.GetWithdrawalByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if withdrawal == nil {
		return nil, ErrWithdrawalNotFound
	}
	if withdrawal.Status != models.WithdrawalStatusPending {
		return withdrawal, ErrAlreadyProcessed
	}

	if withdrawal.ExpiresAt != nil && time.Now().After(*withdrawal.ExpiresAt) {
		if err := s.repo.UpdateWithdrawalStatus(ctx, nil, withdrawal.ID, models.WithdrawalStatusExpired); err != nil {
			return withdrawal, err
		}
		withdrawal.Status = models.WithdrawalStatusExpired
		s.repo.RecordAudit(ctx, "withdrawal_expired", withdrawal.UserID, "ref="+withdrawal.Ref)
		return withdrawal, ErrRequestExpired
	}

	for _, a := range withdrawal.Approvals {
		if a.Approver == approver {
			return withdrawal, ErrDuplicateApproval
		}
	}

	if err := s.repo.CreateApproval(ctx, &models.WithdrawalApproval{
		RequestID: withdrawal.ID,
		Approver:  approver,
		CreatedAt: time.Now(),
	}); err != nil {
		return withdrawal, fmt.Errorf("failed to record approval: %w", err)
	}
	s.repo.RecordAudit(ctx, "withdrawal_approval", withdrawal.UserID,
		fmt.Sprintf("ref=%s approver=%s", withdrawal.Ref, approver))

	needed := 1
	if withdrawal.ApprovalTier == models.TierMultiSig {
		needed = s.cfg.MultiSigApprovals
	}

	count, err := s.repo.CountApprovals(ctx, withdrawal.ID)
	if err != nil {
		return withdrawal, err
	}
	if count < needed {
		s.logger.Infof("Withdrawal #%d has %d of %d required approvals", withdrawal.ID, count, needed)
		return withdrawal, nil
	}

	if err := s.repo.UpdateWithdrawalStatus(ctx, nil, withdrawal.ID, models.WithdrawalStatusApproved); err != nil {
		return withdrawal, err
	}
	withdrawal.Status = models.WithdrawalStatusApproved

	lock := s.locks.lock(withdrawal.UserID)
	defer lock.Unlock()

	if err := s.execute(ctx, withdrawal); err != nil {
		return withdrawal, err
	}
	return withdrawal, nil
}

// Reject closes a pending request. Nothing was ever debited for a pending
// request, so there is nothing to refund.
func (s *WithdrawalService) Reject(ctx context.Context, requestID uint, approver, reason string) error {
	withdrawal, err := s.repo.GetWithdrawalByID(ctx, requestID)
	if err != nil {
		return err
	}
	if withdrawal == nil {
		return ErrWithdrawalNotFound
	}
	if withdrawal.Status != models.WithdrawalStatusPending {
		return ErrAlreadyProcessed
	}

	if err := s.repo.MarkWithdrawalRejected(ctx, withdrawal.ID, reason); err != nil {
		return err
	}

	s.repo.RecordAudit(ctx, "withdrawal_rejected", withdrawal.UserID,
		fmt.Sprintf("ref=%s approver=%s reason=%q", withdrawal.Ref, approver, reason))
	s.logger.Infof("Withdrawal #%d rejected by %s: %s", withdrawal.ID, approver, reason)
	return nil
}

// ExpireStale sweeps pending requests past their deadline. Run from the
// scheduler.
func (s *WithdrawalService) ExpireStale(ctx context.Context) error {
	expired, err := s.repo.ExpirePendingWithdrawals(ctx, time.Now())
	if err != nil {
		return err
	}
	if expired > 0 {
		s.logger.Infof("Expired %d stale withdrawal requests", expired)
		s.repo.RecordAudit(ctx, "withdrawals_expired", 0, fmt.Sprintf("count=%d", expired))
	}
	return nil
}

func (s *WithdrawalService) PendingWithdrawals(ctx context.Context) ([]*models.WithdrawalRequest, error) {
	return s.repo.GetPendingWithdrawals(ctx)
}
