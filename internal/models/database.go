package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountStatus gates withdrawals. Frozen and banned accounts can still
// receive deposits and payout credits.
type AccountStatus string

const (
	StatusActive AccountStatus = "active"
	StatusFrozen AccountStatus = "frozen"
	StatusBanned AccountStatus = "banned"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case StatusActive, StatusFrozen, StatusBanned:
		return true
	}
	return false
}

// Tier is a denormalized attribute returned alongside balance queries.
type Tier string

const (
	TierFree     Tier = "free"
	TierStandard Tier = "standard"
	TierVIP      Tier = "vip"
)

// OperationType classifies a balance-affecting event.
type OperationType string

const (
	OpDeposit    OperationType = "deposit"
	OpWithdrawal OperationType = "withdrawal"
	OpBetPlaced  OperationType = "bet_placed"
	OpBetWon     OperationType = "bet_won"
	OpBetLost    OperationType = "bet_lost"
)

// Effect returns the signed balance delta for an unsigned amount under this
// operation's sign convention. bet_lost is a settlement marker with no effect.
func (op OperationType) Effect(amount decimal.Decimal) decimal.Decimal {
	switch op {
	case OpDeposit, OpBetWon:
		return amount
	case OpWithdrawal, OpBetPlaced:
		return amount.Neg()
	default:
		return decimal.Zero
	}
}

func (op OperationType) Valid() bool {
	switch op {
	case OpDeposit, OpWithdrawal, OpBetPlaced, OpBetWon, OpBetLost:
		return true
	}
	return false
}

// Balance represents current per-(user, currency) state (hot data)
type Balance struct {
	Id          string          `db:"id"`
	UserAddress string          `db:"user_address"`
	Currency    string          `db:"currency"`
	Balance     decimal.Decimal `db:"balance"`
	Status      AccountStatus   `db:"status"`
	Tier        Tier            `db:"tier"`
	LastAuditId string          `db:"last_audit_id"`
	Version     int64           `db:"version"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}

// AuditEntry represents one immutable balance-affecting event (cold data)
type AuditEntry struct {
	Id              string          `db:"id"`
	UserAddress     string          `db:"user_address"`
	Currency        string          `db:"currency"`
	OperationType   OperationType   `db:"operation_type"`
	Amount          decimal.Decimal `db:"amount"`
	BalanceBefore   decimal.Decimal `db:"balance_before"`
	BalanceAfter    decimal.Decimal `db:"balance_after"`
	TransactionHash string          `db:"transaction_hash"` // empty for pure off-chain ops
	BetId           string          `db:"bet_id"`
	CreatedAt       time.Time       `db:"created_at"`
}

// Bet is the slice of a bet the ledger cares about. Bet resolution is owned
// by the game engine; the ledger only sees the deduct and credit calls.
type Bet struct {
	Id          string
	UserAddress string
	Currency    string
	Amount      decimal.Decimal
	Won         bool
	Payout      decimal.Decimal
	CreatedAt   time.Time
}

// CurrencyTotal aggregates held balances per currency for admin reporting.
type CurrencyTotal struct {
	Currency     string
	TotalBalance decimal.Decimal
	UserCount    int
}

// WinStreak is the longest run of consecutive bet_won entries for a user.
type WinStreak struct {
	UserAddress string
	Currency    string
	Streak      int
}
