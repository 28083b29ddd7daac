package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"aviator/internal/models"
	"aviator/internal/solana"
	"aviator/utils"
)

// fakeRepo is an in-memory Repository shared by the payment service tests.
type fakeRepo struct {
	users       map[int64]*models.User
	withdrawals map[uint]*models.WithdrawalRequest
	approvals   []models.WithdrawalApproval
	deposits    map[string]*models.Deposit
	todayTotal  decimal.Decimal
	nextID      uint
	audits      []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		users:       make(map[int64]*models.User),
		withdrawals: make(map[uint]*models.WithdrawalRequest),
		deposits:    make(map[string]*models.Deposit),
	}
}

func (r *fakeRepo) GetUser(_ context.Context, userID int64) (*models.User, error) {
	return r.users[userID], nil
}

func (r *fakeRepo) GetUsersWithDepositAddress(_ context.Context) ([]*models.User, error) {
	var out []*models.User
	for _, u := range r.users {
		if u.DepositAddress != "" {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreditBalance(_ context.Context, _ *gorm.DB, userID int64, amountUSD decimal.Decimal) error {
	user, ok := r.users[userID]
	if !ok {
		return errors.New("user not found")
	}
	user.BalanceUSD = user.BalanceUSD.Add(amountUSD)
	return nil
}

func (r *fakeRepo) DebitBalance(_ context.Context, _ *gorm.DB, userID int64, amountUSD decimal.Decimal) error {
	user, ok := r.users[userID]
	if !ok || user.BalanceUSD.LessThan(amountUSD) {
		return errors.New("insufficient balance")
	}
	user.BalanceUSD = user.BalanceUSD.Sub(amountUSD)
	return nil
}

func (r *fakeRepo) CreateWithdrawal(_ context.Context, withdrawal *models.WithdrawalRequest) error {
	r.nextID++
	withdrawal.ID = r.nextID
	r.withdrawals[withdrawal.ID] = withdrawal
	return nil
}

func (r *fakeRepo) GetWithdrawalByID(_ context.Context, id uint) (*models.WithdrawalRequest, error) {
	withdrawal, ok := r.withdrawals[id]
	if !ok {
		return nil, nil
	}
	copied := *withdrawal
	copied.Approvals = nil
	for _, a := range r.approvals {
		if a.RequestID == id {
			copied.Approvals = append(copied.Approvals, a)
		}
	}
	return &copied, nil
}

func (r *fakeRepo) GetPendingWithdrawals(_ context.Context) ([]*models.WithdrawalRequest, error) {
	var out []*models.WithdrawalRequest
	for _, w := range r.withdrawals {
		if w.Status == models.WithdrawalStatusPending {
			out = append(out, w)
		}
	}
	return out, nil
}

func (r *fakeRepo) SumConfirmedWithdrawalsToday(_ context.Context, _ int64, _ string, _ time.Time) (decimal.Decimal, error) {
	return r.todayTotal, nil
}

func (r *fakeRepo) UpdateWithdrawalStatus(_ context.Context, _ *gorm.DB, id uint, status string) error {
	withdrawal, ok := r.withdrawals[id]
	if !ok {
		return errors.New("withdrawal not found")
	}
	withdrawal.Status = status
	return nil
}

func (r *fakeRepo) MarkWithdrawalConfirmed(_ context.Context, _ *gorm.DB, id uint, txSignature string) error {
	withdrawal, ok := r.withdrawals[id]
	if !ok {
		return errors.New("withdrawal not found")
	}
	withdrawal.Status = models.WithdrawalStatusConfirmed
	withdrawal.TxSignature = txSignature
	return nil
}

func (r *fakeRepo) MarkWithdrawalRejected(_ context.Context, id uint, reason string) error {
	withdrawal, ok := r.withdrawals[id]
	if !ok || withdrawal.Status != models.WithdrawalStatusPending {
		return errors.New("withdrawal is not pending")
	}
	withdrawal.Status = models.WithdrawalStatusRejected
	withdrawal.RejectReason = reason
	return nil
}

func (r *fakeRepo) ExpirePendingWithdrawals(_ context.Context, now time.Time) (int64, error) {
	var count int64
	for _, w := range r.withdrawals {
		if w.Status == models.WithdrawalStatusPending && w.ExpiresAt != nil && now.After(*w.ExpiresAt) {
			w.Status = models.WithdrawalStatusExpired
			count++
		}
	}
	return count, nil
}

func (r *fakeRepo) CreateApproval(_ context.Context, approval *models.WithdrawalApproval) error {
	for _, a := range r.approvals {
		if a.RequestID == approval.RequestID && a.Approver == approval.Approver {
			return errors.New("duplicate approval")
		}
	}
	r.approvals = append(r.approvals, *approval)
	return nil
}

func (r *fakeRepo) CountApprovals(_ context.Context, requestID uint) (int, error) {
	count := 0
	for _, a := range r.approvals {
		if a.RequestID == requestID {
			count++
		}
	}
	return count, nil
}

func (r *fakeRepo) GetDeposit(_ context.Context, txSignature string) (*models.Deposit, error) {
	return r.deposits[txSignature], nil
}

func (r *fakeRepo) CreateDeposit(_ context.Context, deposit *models.Deposit) error {
	if _, ok := r.deposits[deposit.TxSignature]; ok {
		return errors.New("deposit already recorded")
	}
	r.deposits[deposit.TxSignature] = deposit
	return nil
}

func (r *fakeRepo) GetUncreditedDeposits(_ context.Context) ([]*models.Deposit, error) {
	var out []*models.Deposit
	for _, d := range r.deposits {
		if !d.Credited {
			out = append(out, d)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateDepositConfirmations(_ context.Context, txSignature string, confirmations uint64) error {
	deposit, ok := r.deposits[txSignature]
	if !ok {
		return errors.New("deposit not found")
	}
	deposit.Confirmations = confirmations
	return nil
}

func (r *fakeRepo) MarkDepositCredited(_ context.Context, _ *gorm.DB, txSignature string) error {
	deposit, ok := r.deposits[txSignature]
	if !ok || deposit.Credited {
		return errors.New("deposit missing or already credited")
	}
	deposit.Credited = true
	return nil
}

func (r *fakeRepo) BeginTransaction(_ context.Context) (*gorm.DB, error) { return nil, nil }
func (r *fakeRepo) Commit(_ *gorm.DB) error                             { return nil }
func (r *fakeRepo) Rollback(_ *gorm.DB)                                 {}

func (r *fakeRepo) RecordAudit(_ context.Context, event string, userID int64, details string) {
	r.audits = append(r.audits, fmt.Sprintf("%s:%d:%s", event, userID, details))
}

func (r *fakeRepo) hasAudit(event string) bool {
	for _, a := range r.audits {
		if len(a) >= len(event) && a[:len(event)] == event {
			return true
		}
	}
	return false
}

// fakeChain records broadcasts and serves canned chain state.
type fakeChain struct {
	transferErr error
	transfers   []string
	slot        uint64
	sigs        map[string][]solana.SignatureInfo
	amounts     map[string]struct {
		amount   decimal.Decimal
		currency string
	}
}

func (c *fakeChain) Transfer(_ context.Context, to string, amount decimal.Decimal, currency string) (string, error) {
	if c.transferErr != nil {
		return "", c.transferErr
	}
	c.transfers = append(c.transfers, fmt.Sprintf("%s:%s:%s", to, amount.String(), currency))
	return fmt.Sprintf("sig-%d", len(c.transfers)), nil
}

func (c *fakeChain) CurrentSlot(_ context.Context) (uint64, error) {
	return c.slot, nil
}

func (c *fakeChain) SignaturesForAddress(_ context.Context, address string, _ int) ([]solana.SignatureInfo, error) {
	return c.sigs[address], nil
}

func (c *fakeChain) DepositAmount(_ context.Context, signature, _ string) (decimal.Decimal, string, error) {
	entry, ok := c.amounts[signature]
	if !ok {
		return decimal.Zero, "", errors.New("transaction not found")
	}
	return entry.amount, entry.currency, nil
}

// fixedRates serves constant conversion rates.
type fixedRates struct{}

func (fixedRates) USDRate(_ context.Context, currency string) decimal.Decimal {
	if currency == models.CurrencySOL {
		return decimal.NewFromInt(100)
	}
	return decimal.NewFromInt(1)
}

type recordingNotifier struct {
	pending []*models.WithdrawalRequest
}

func (n *recordingNotifier) WithdrawalPending(w *models.WithdrawalRequest) {
	n.pending = append(n.pending, w)
}

func newWithdrawalFixture() (*WithdrawalService, *fakeRepo, *fakeChain, *recordingNotifier) {
	repo := newFakeRepo()
	chain := &fakeChain{}
	notifier := &recordingNotifier{}
	svc := NewWithdrawalService(repo, fixedRates{}, chain, nil, testConfig(), utils.InitLogger())
	svc.SetNotifier(notifier)
	return svc, repo, chain, notifier
}

func TestRequestWithdrawalAutoExecutes(t *testing.T) {
	svc, repo, chain, notifier := newWithdrawalFixture()
	repo.users[1] = &models.User{ID: 1, BalanceUSD: decimal.NewFromInt(200)}
	ctx := context.Background()

	withdrawal, result, err := svc.RequestWithdrawal(ctx, 1, models.CurrencyUSDT, decimal.NewFromInt(50), validAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Passed || result.Tier != models.TierAuto {
		t.Fatalf("result = %+v, want passed auto", result)
	}

	if withdrawal.Status != models.WithdrawalStatusConfirmed {
		t.Errorf("status = %s, want confirmed", withdrawal.Status)
	}
	if withdrawal.TxSignature == "" {
		t.Error("confirmed withdrawal must carry the broadcast signature")
	}
	if withdrawal.ExpiresAt != nil {
		t.Error("auto-tier requests never expire")
	}
	if len(chain.transfers) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(chain.transfers))
	}
	if got := repo.users[1].BalanceUSD; !got.Equal(decimal.NewFromInt(150)) {
		t.Errorf("balance = %s, want 150", got)
	}
	if len(notifier.pending) != 0 {
		t.Error("auto-tier requests must not page the admins")
	}
	if !repo.hasAudit("withdrawal_check") || !repo.hasAudit("withdrawal_confirmed") {
		t.Errorf("missing audit events: %v", repo.audits)
	}
}

func TestRequestWithdrawalFailClosed(t *testing.T) {
	svc, repo, chain, _ := newWithdrawalFixture()
	repo.users[1] = &models.User{ID: 1, BalanceUSD: decimal.NewFromInt(200)}
	chain.transferErr = errors.New("rpc unavailable")
	ctx := context.Background()

	withdrawal, _, err := svc.RequestWithdrawal(ctx, 1, models.CurrencyUSDT, decimal.NewFromInt(50), validAddr)
	if !errors.Is(err, ErrExecutionFailed) {
		t.Fatalf("expected ErrExecutionFailed, got %v", err)
	}

	if withdrawal.Status != models.WithdrawalStatusFailed {
		t.Errorf("status = %s, want failed", withdrawal.Status)
	}
	// The broadcast never happened, so the ledger must be untouched.
	if got := repo.users[1].BalanceUSD; !got.Equal(decimal.NewFromInt(200)) {
		t.Errorf("balance = %s, want unchanged 200", got)
	}
	if !repo.hasAudit("withdrawal_failed") {
		t.Errorf("missing failure audit: %v", repo.audits)
	}
}

func TestRequestWithdrawalFeeGate(t *testing.T) {
	svc, repo, chain, _ := newWithdrawalFixture()
	// Exactly the amount: the network fee pushes the requirement past it.
	repo.users[1] = &models.User{ID: 1, BalanceUSD: decimal.NewFromInt(50)}
	ctx := context.Background()

	_, _, err := svc.RequestWithdrawal(ctx, 1, models.CurrencyUSDT, decimal.NewFromInt(50), validAddr)
	if !errors.Is(err, ErrInsufficientFees) {
		t.Fatalf("expected ErrInsufficientFees, got %v", err)
	}
	if err.Error() != "Insufficient balance for fees" {
		t.Errorf("message = %q", err.Error())
	}

	if len(repo.withdrawals) != 0 {
		t.Error("the fee gate must block before any request is persisted")
	}
	if len(chain.transfers) != 0 {
		t.Error("nothing may broadcast behind the fee gate")
	}
	if !repo.hasAudit("withdrawal_blocked") {
		t.Errorf("missing blocked audit: %v", repo.audits)
	}
}

func TestRequestWithdrawalRejectedOnFailedChecks(t *testing.T) {
	svc, repo, chain, _ := newWithdrawalFixture()
	repo.users[1] = &models.User{ID: 1, BalanceUSD: decimal.NewFromInt(200)}
	ctx := context.Background()

	withdrawal, result, err := svc.RequestWithdrawal(ctx, 1, models.CurrencyUSDT, decimal.NewFromInt(50), "bad")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Passed {
		t.Fatal("invalid address must fail the checks")
	}

	if withdrawal.Status != models.WithdrawalStatusRejected {
		t.Errorf("status = %s, want rejected", withdrawal.Status)
	}
	if withdrawal.RejectReason != ReasonInvalidAddress {
		t.Errorf("reject reason = %q, want %q", withdrawal.RejectReason, ReasonInvalidAddress)
	}
	if withdrawal.RiskScore != 50 {
		t.Errorf("risk score = %d, want 50", withdrawal.RiskScore)
	}
	if len(chain.transfers) != 0 {
		t.Error("rejected requests must not broadcast")
	}
	if got := repo.users[1].BalanceUSD; !got.Equal(decimal.NewFromInt(200)) {
		t.Errorf("balance = %s, want unchanged 200", got)
	}
}

func TestManualTierParksThenApproves(t *testing.T) {
	svc, repo, chain, notifier := newWithdrawalFixture()
	repo.users[1] = &models.User{ID: 1, BalanceUSD: decimal.NewFromInt(1000)}
	ctx := context.Background()

	withdrawal, result, err := svc.RequestWithdrawal(ctx, 1, models.CurrencyUSDT, decimal.NewFromInt(500), validAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Tier != models.TierManual {
		t.Fatalf("tier = %s, want manual", result.Tier)
	}

	if withdrawal.Status != models.WithdrawalStatusPending {
		t.Errorf("status = %s, want pending", withdrawal.Status)
	}
	if withdrawal.ExpiresAt == nil {
		t.Fatal("parked requests must carry an expiry")
	}
	if want := time.Now().Add(24 * time.Hour); withdrawal.ExpiresAt.Sub(want) > time.Minute {
		t.Errorf("expiry %s too far from now+24h", withdrawal.ExpiresAt)
	}
	if len(notifier.pending) != 1 {
		t.Fatalf("expected 1 admin notification, got %d", len(notifier.pending))
	}
	if len(chain.transfers) != 0 {
		t.Fatal("nothing may broadcast before approval")
	}

	approved, err := svc.Approve(ctx, withdrawal.ID, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if approved.Status != models.WithdrawalStatusConfirmed {
		t.Errorf("status = %s, want confirmed", approved.Status)
	}
	if len(chain.transfers) != 1 {
		t.Errorf("expected 1 broadcast, got %d", len(chain.transfers))
	}
	if got := repo.users[1].BalanceUSD; !got.Equal(decimal.NewFromInt(500)) {
		t.Errorf("balance = %s, want 500", got)
	}

	if _, err := svc.Approve(ctx, withdrawal.ID, "bob"); !errors.Is(err, ErrAlreadyProcessed) {
		t.Errorf("expected ErrAlreadyProcessed after execution, got %v", err)
	}
}

func TestMultiSigNeedsDistinctApprovers(t *testing.T) {
	svc, repo, chain, _ := newWithdrawalFixture()
	repo.users[1] = &models.User{ID: 1, BalanceUSD: decimal.NewFromInt(3000)}
	ctx := context.Background()

	withdrawal, result, err := svc.RequestWithdrawal(ctx, 1, models.CurrencyUSDT, decimal.NewFromInt(2000), validAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Tier != models.TierMultiSig {
		t.Fatalf("tier = %s, want multi_sig", result.Tier)
	}

	first, err := svc.Approve(ctx, withdrawal.ID, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Status != models.WithdrawalStatusPending {
		t.Errorf("status after 1 of 2 approvals = %s, want pending", first.Status)
	}
	if len(chain.transfers) != 0 {
		t.Fatal("one approval must not trigger the broadcast")
	}

	if _, err := svc.Approve(ctx, withdrawal.ID, "alice"); !errors.Is(err, ErrDuplicateApproval) {
		t.Fatalf("expected ErrDuplicateApproval, got %v", err)
	}

	second, err := svc.Approve(ctx, withdrawal.ID, "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Status != models.WithdrawalStatusConfirmed {
		t.Errorf("status = %s, want confirmed", second.Status)
	}
	if len(chain.transfers) != 1 {
		t.Errorf("expected 1 broadcast, got %d", len(chain.transfers))
	}
	if got := repo.users[1].BalanceUSD; !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("balance = %s, want 1000", got)
	}
}

func TestApproveExpiredRequest(t *testing.T) {
	svc, repo, chain, _ := newWithdrawalFixture()
	repo.users[1] = &models.User{ID: 1, BalanceUSD: decimal.NewFromInt(1000)}
	ctx := context.Background()

	withdrawal, _, err := svc.RequestWithdrawal(ctx, 1, models.CurrencyUSDT, decimal.NewFromInt(500), validAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	past := time.Now().Add(-time.Hour)
	repo.withdrawals[withdrawal.ID].ExpiresAt = &past

	if _, err := svc.Approve(ctx, withdrawal.ID, "alice"); !errors.Is(err, ErrRequestExpired) {
		t.Fatalf("expected ErrRequestExpired, got %v", err)
	}
	if repo.withdrawals[withdrawal.ID].Status != models.WithdrawalStatusExpired {
		t.Errorf("status = %s, want expired", repo.withdrawals[withdrawal.ID].Status)
	}
	if len(chain.transfers) != 0 {
		t.Error("expired requests must not broadcast")
	}
	if got := repo.users[1].BalanceUSD; !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("balance = %s, want unchanged 1000", got)
	}
}

func TestRejectPendingRequest(t *testing.T) {
	svc, repo, chain, _ := newWithdrawalFixture()
	repo.users[1] = &models.User{ID: 1, BalanceUSD: decimal.NewFromInt(1000)}
	ctx := context.Background()

	withdrawal, _, err := svc.RequestWithdrawal(ctx, 1, models.CurrencyUSDT, decimal.NewFromInt(500), validAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Reject(ctx, withdrawal.ID, "alice", "looks off"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := repo.withdrawals[withdrawal.ID]
	if stored.Status != models.WithdrawalStatusRejected || stored.RejectReason != "looks off" {
		t.Errorf("stored = %s/%q", stored.Status, stored.RejectReason)
	}
	if len(chain.transfers) != 0 {
		t.Error("rejected requests must not broadcast")
	}
	if got := repo.users[1].BalanceUSD; !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("balance = %s, want unchanged 1000", got)
	}

	if err := svc.Reject(ctx, withdrawal.ID, "bob", "again"); !errors.Is(err, ErrAlreadyProcessed) {
		t.Errorf("expected ErrAlreadyProcessed, got %v", err)
	}
}

func TestRequestWithdrawalInputValidation(t *testing.T) {
	svc, repo, _, _ := newWithdrawalFixture()
	repo.users[1] = &models.User{ID: 1, BalanceUSD: decimal.NewFromInt(1000)}
	ctx := context.Background()

	if _, _, err := svc.RequestWithdrawal(ctx, 1, "BTC", decimal.NewFromInt(10), validAddr); !errors.Is(err, ErrUnsupportedCurrency) {
		t.Errorf("expected ErrUnsupportedCurrency, got %v", err)
	}
	if _, _, err := svc.RequestWithdrawal(ctx, 1, models.CurrencySOL, decimal.Zero, validAddr); err == nil {
		t.Error("expected error for zero amount")
	}
	if _, _, err := svc.RequestWithdrawal(ctx, 99, models.CurrencySOL, decimal.NewFromInt(1), validAddr); err == nil {
		t.Error("expected error for unknown user")
	}
}

func TestExpireStale(t *testing.T) {
	svc, repo, _, _ := newWithdrawalFixture()
	repo.users[1] = &models.User{ID: 1, BalanceUSD: decimal.NewFromInt(1000)}
	ctx := context.Background()

	withdrawal, _, err := svc.RequestWithdrawal(ctx, 1, models.CurrencyUSDT, decimal.NewFromInt(500), validAddr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	past := time.Now().Add(-time.Minute)
	repo.withdrawals[withdrawal.ID].ExpiresAt = &past

	if err := svc.ExpireStale(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.withdrawals[withdrawal.ID].Status != models.WithdrawalStatusExpired {
		t.Errorf("status = %s, want expired", repo.withdrawals[withdrawal.ID].Status)
	}
}
