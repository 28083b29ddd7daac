package service

import (
	"context"
	"sync"
	"time"

	"aviator/internal/models"
	"aviator/internal/solana"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Repository is the persistence surface the payment services need.
type Repository interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	GetUsersWithDepositAddress(ctx context.Context) ([]*models.User, error)
	CreditBalance(ctx context.Context, tx *gorm.DB, userID int64, amountUSD decimal.Decimal) error
	DebitBalance(ctx context.Context, tx *gorm.DB, userID int64, amountUSD decimal.Decimal) error

	CreateWithdrawal(ctx context.Context, withdrawal *models.WithdrawalRequest) error
	GetWithdrawalByID(ctx context.Context, id uint) (*models.WithdrawalRequest, error)
	GetPendingWithdrawals(ctx context.Context) ([]*models.WithdrawalRequest, error)
	SumConfirmedWithdrawalsToday(ctx context.Context, userID int64, currency string, now time.Time) (decimal.Decimal, error)
	UpdateWithdrawalStatus(ctx context.Context, tx *gorm.DB, id uint, status string) error
	MarkWithdrawalConfirmed(ctx context.Context, tx *gorm.DB, id uint, txSignature string) error
	MarkWithdrawalRejected(ctx context.Context, id uint, reason string) error
	ExpirePendingWithdrawals(ctx context.Context, now time.Time) (int64, error)
	CreateApproval(ctx context.Context, approval *models.WithdrawalApproval) error
	CountApprovals(ctx context.Context, requestID uint) (int, error)

	GetDeposit(ctx context.Context, txSignature string) (*models.Deposit, error)
	CreateDeposit(ctx context.Context, deposit *models.Deposit) error
	GetUncreditedDeposits(ctx context.Context) ([]*models.Deposit, error)
	UpdateDepositConfirmations(ctx context.Context, txSignature string, confirmations uint64) error
	MarkDepositCredited(ctx context.Context, tx *gorm.DB, txSignature string) error

	BeginTransaction(ctx context.Context) (*gorm.DB, error)
	Commit(tx *gorm.DB) error
	Rollback(tx *gorm.DB)

	RecordAudit(ctx context.Context, event string, userID int64, details string)
}

// ChainClient is the blockchain collaborator consumed by the payment
// services: broadcasting treasury transfers and reading chain state.
type ChainClient interface {
	Transfer(ctx context.Context, to string, amount decimal.Decimal, currency string) (string, error)
	CurrentSlot(ctx context.Context) (uint64, error)
	SignaturesForAddress(ctx context.Context, address string, limit int) ([]solana.SignatureInfo, error)
	DepositAmount(ctx context.Context, signature, address string) (decimal.Decimal, string, error)
}

// FraudChecker is the external suspicious-activity heuristic.
type FraudChecker interface {
	IsSuspicious(ctx context.Context, userID int64, toAddress string, amount decimal.Decimal) (bool, error)
}

// NoopFraudChecker clears everything. The real heuristic lives in an
// external service; this stands in until one is wired.
type NoopFraudChecker struct{}

func (NoopFraudChecker) IsSuspicious(context.Context, int64, string, decimal.Decimal) (bool, error) {
	return false, nil
}

// Notifier announces withdrawal lifecycle events to the admin channel.
type Notifier interface {
	WithdrawalPending(withdrawal *models.WithdrawalRequest)
}

// userLocks serializes check-and-create per user so parallel requests
// cannot slip past the daily-limit read.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*sync.Mutex)}
}

func (u *userLocks) lock(userID int64) *sync.Mutex {
	u.mu.Lock()
	l, ok := u.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		u.locks[userID] = l
	}
	u.mu.Unlock()

	l.Lock()
	return l
}
