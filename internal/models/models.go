package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	CurrencySOL  = "SOL"
	CurrencyUSDT = "USDT"
)

// Round statuses.
const (
	RoundStatusOpen    = "open"
	RoundStatusLocked  = "locked"
	RoundStatusCrashed = "crashed"
)

// Bet statuses.
const (
	BetStatusActive = "active"
	BetStatusWon    = "won"
	BetStatusLost   = "lost"
)

// Withdrawal approval tiers.
const (
	TierAuto     = "auto"
	TierManual   = "manual"
	TierMultiSig = "multi_sig"
)

// Withdrawal statuses.
const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusApproved  = "approved"
	WithdrawalStatusRejected  = "rejected"
	WithdrawalStatusExpired   = "expired"
	WithdrawalStatusConfirmed = "confirmed"
	WithdrawalStatusFailed    = "failed"
)

type User struct {
	ID             int64           `gorm:"primaryKey" json:"id"`
	TelegramID     int64           `gorm:"uniqueIndex" json:"telegram_id"`
	BalanceUSD     decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"balance_usd"`
	DepositAddress string          `gorm:"size:64;index" json:"deposit_address"`
	IsAdmin        bool            `json:"is_admin"`
	CreatedAt      time.Time       `json:"created_at"`

	Bets        []Bet               `gorm:"foreignKey:UserID" json:"bets,omitempty"`
	Withdrawals []WithdrawalRequest `gorm:"foreignKey:UserID" json:"withdrawals,omitempty"`
}

// Round is one play cycle. CrashPoint is computed once, at lock, from the
// bets accumulated during the betting window and is immutable afterward.
type Round struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Ref            string          `gorm:"uniqueIndex;size:36" json:"ref"`
	Seed           string          `gorm:"size:64" json:"-"`
	SeedHash       string          `gorm:"size:64" json:"seed_hash"`
	Nonce          int             `json:"nonce"`
	Status         string          `gorm:"size:16;index;default:open" json:"status"`
	TotalBetAmount decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"total_bet_amount"`
	TotalBetCount  int             `gorm:"default:0" json:"total_bet_count"`
	CrashPoint     float64         `json:"crash_point"`
	Result         string          `gorm:"size:16;default:pending" json:"result"` // "pending", formatted multiplier, or "0"
	StartedAt      time.Time       `json:"started_at"`
	LockedAt       *time.Time      `json:"locked_at"`
	CrashedAt      *time.Time      `json:"crashed_at"`

	Bets []Bet `gorm:"foreignKey:RoundID" json:"bets,omitempty"`
}

type Bet struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	RoundID           uint            `gorm:"index" json:"round_id"`
	UserID            int64           `gorm:"index" json:"user_id"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,8)" json:"amount"`
	CashOutMultiplier *float64        `json:"cash_out_multiplier"`
	Payout            decimal.Decimal `gorm:"type:decimal(20,8);default:0" json:"payout"`
	Status            string          `gorm:"size:8;index;default:active" json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
}

type WithdrawalRequest struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Ref          string          `gorm:"uniqueIndex;size:36" json:"ref"`
	UserID       int64           `gorm:"index" json:"user_id"`
	Currency     string          `gorm:"size:8" json:"currency"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,8)" json:"amount"`
	AmountUSD    decimal.Decimal `gorm:"type:decimal(20,8)" json:"amount_usd"`
	ToAddress    string          `gorm:"size:64" json:"to_address"`
	ApprovalTier string          `gorm:"size:16" json:"approval_tier"`
	Status       string          `gorm:"size:16;index;default:pending" json:"status"`
	RiskScore    int             `json:"risk_score"`
	Reasons      string          `gorm:"size:512" json:"reasons"` // semicolon-joined failed check reasons
	TxSignature  string          `gorm:"size:128" json:"tx_signature"`
	RejectReason string          `gorm:"size:255" json:"reject_reason"`
	ExpiresAt    *time.Time      `json:"expires_at"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`

	Approvals []WithdrawalApproval `gorm:"foreignKey:RequestID" json:"approvals,omitempty"`
}

// WithdrawalApproval is a single admin sign-off on a pending request.
// multi_sig requests need several of them from distinct approvers.
type WithdrawalApproval struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RequestID uint      `gorm:"index:idx_request_approver,unique" json:"request_id"`
	Approver  string    `gorm:"size:64;index:idx_request_approver,unique" json:"approver"`
	CreatedAt time.Time `json:"created_at"`
}

type Deposit struct {
	TxSignature   string          `gorm:"primaryKey;size:128" json:"tx_signature"`
	UserID        int64           `gorm:"index" json:"user_id"`
	Address       string          `gorm:"size:64" json:"address"`
	Currency      string          `gorm:"size:8" json:"currency"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,8)" json:"amount"`
	Slot          uint64          `json:"slot"` // inclusion slot
	Confirmations uint64          `json:"confirmations"`
	Credited      bool            `gorm:"index" json:"credited"`
	CreatedAt     time.Time       `json:"created_at"`
}

type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Ref       string    `gorm:"size:36;index" json:"ref"`
	Event     string    `gorm:"size:64;index" json:"event"`
	UserID    int64     `gorm:"index" json:"user_id"`
	Details   string    `gorm:"size:1024" json:"details"`
	CreatedAt time.Time `json:"created_at"`
}
