package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"aviator/internal/models"
	"aviator/internal/solana"
	"aviator/utils"
)

func newDepositFixture() (*DepositService, *fakeRepo, *fakeChain) {
	repo := newFakeRepo()
	chain := &fakeChain{
		sigs: make(map[string][]solana.SignatureInfo),
		amounts: make(map[string]struct {
			amount   decimal.Decimal
			currency string
		}),
	}
	svc := NewDepositService(repo, chain, fixedRates{}, testConfig(), utils.InitLogger())
	return svc, repo, chain
}

func TestConfirmations(t *testing.T) {
	svc, _, _ := newDepositFixture()

	tests := []struct {
		current, inclusion, want uint64
	}{
		{105, 100, 5},
		{100, 100, 0},
		{99, 100, 0},
		{132, 100, 32},
	}
	for _, tt := range tests {
		if got := svc.Confirmations(tt.current, tt.inclusion); got != tt.want {
			t.Errorf("Confirmations(%d, %d) = %d, want %d", tt.current, tt.inclusion, got, tt.want)
		}
	}
}

func TestIsFinalized(t *testing.T) {
	svc, _, _ := newDepositFixture()

	if svc.IsFinalized(131, 100) {
		t.Error("31 confirmations must not be final")
	}
	if !svc.IsFinalized(132, 100) {
		t.Error("32 confirmations must be final")
	}
}

func TestPollCreditsFinalizedDeposits(t *testing.T) {
	svc, repo, chain := newDepositFixture()
	ctx := context.Background()

	repo.users[1] = &models.User{ID: 1, BalanceUSD: decimal.Zero, DepositAddress: "DepositAddr11111111111111111111111111111"}

	chain.slot = 1000
	chain.sigs[repo.users[1].DepositAddress] = []solana.SignatureInfo{
		{Signature: "sig-final", Slot: 900},
		{Signature: "sig-fresh", Slot: 990},
		{Signature: "sig-failed", Slot: 950, Failed: true},
	}
	chain.amounts["sig-final"] = struct {
		amount   decimal.Decimal
		currency string
	}{decimal.NewFromInt(2), models.CurrencySOL}
	chain.amounts["sig-fresh"] = struct {
		amount   decimal.Decimal
		currency string
	}{decimal.NewFromInt(10), models.CurrencyUSDT}

	if err := svc.Poll(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := repo.deposits["sig-failed"]; ok {
		t.Error("failed transactions must not be recorded")
	}

	final := repo.deposits["sig-final"]
	if final == nil || !final.Credited {
		t.Fatal("deposit with 100 confirmations must be credited")
	}
	// 2 SOL at the fixed 100 USD rate.
	if got := repo.users[1].BalanceUSD; !got.Equal(decimal.NewFromInt(200)) {
		t.Errorf("balance = %s, want 200", got)
	}

	fresh := repo.deposits["sig-fresh"]
	if fresh == nil {
		t.Fatal("fresh deposit must be recorded")
	}
	if fresh.Credited {
		t.Error("10 confirmations must not credit")
	}
	if fresh.Confirmations != 10 {
		t.Errorf("confirmations = %d, want 10", fresh.Confirmations)
	}

	// A second poll with the same chain state must not double-credit.
	if err := svc.Poll(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := repo.users[1].BalanceUSD; !got.Equal(decimal.NewFromInt(200)) {
		t.Errorf("balance after repoll = %s, want 200", got)
	}

	// Once the chain advances past the threshold the fresh deposit clears.
	chain.slot = 990 + 32
	if err := svc.Poll(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.deposits["sig-fresh"].Credited {
		t.Error("deposit must credit once it reaches the threshold")
	}
	if got := repo.users[1].BalanceUSD; !got.Equal(decimal.NewFromInt(210)) {
		t.Errorf("balance = %s, want 210", got)
	}

	if !repo.hasAudit("deposit_credited") {
		t.Errorf("missing credit audit: %v", repo.audits)
	}
}
