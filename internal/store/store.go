package store

import (
	"context"
	"errors"
	"time"

	"house-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared by every store implementation. Callers classify
// them with errors.Is; everything not covered below is wrapped in
// ErrServiceUnavailable and safe to retry (procedures are transactional,
// a failed apply leaves no partial mutation).
var (
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrAccountRestricted      = errors.New("account restricted")
	ErrServiceUnavailable     = errors.New("service unavailable")
)

// ApplyEntryParams describes one atomic balance mutation plus its audit
// record. Amount is unsigned; OperationType carries the sign convention.
type ApplyEntryParams struct {
	UserAddress   string
	Currency      string
	OperationType models.OperationType
	Amount        decimal.Decimal

	// TransactionHash anchors the entry to an on-chain transaction. When
	// non-empty the (currency, hash) pair is unique, making replays no-ops.
	TransactionHash string

	// BetId correlates bet_placed / bet_won / bet_lost entries.
	BetId string

	// RequireActive rejects the mutation when the account is frozen or
	// banned. Set only by the withdrawal procedure.
	RequireActive bool
}

// LedgerStore is the contract for the balance store and audit log. All
// mutations flow through ApplyEntry and SetAccountStatus; everything else
// is read-only.
type LedgerStore interface {
	// ApplyEntry performs one read-modify-write of a balance row together
	// with its audit insert inside a single transaction. The returned entry
	// carries BalanceBefore/BalanceAfter as committed.
	ApplyEntry(ctx context.Context, params ApplyEntryParams) (*models.AuditEntry, error)

	// GetBalance returns the balance row, or a zero-value default (free
	// tier, active, nil UpdatedAt) when no row exists. Missing rows are
	// never an error.
	GetBalance(ctx context.Context, userAddress, currency string) (*models.BalanceView, error)
	GetAllBalances(ctx context.Context, userAddress string) ([]models.Balance, error)

	// SetAccountStatus is the administrative active/frozen/banned toggle.
	SetAccountStatus(ctx context.Context, userAddress, currency string, status models.AccountStatus) error

	// Audit log reads.
	GetAuditHistory(ctx context.Context, userAddress, currency string, limit, offset int) ([]models.AuditEntry, error)
	GetTransactionFeed(ctx context.Context, operationTypes []models.OperationType, since time.Time, limit int) ([]models.AuditEntry, error)
	HasAuditEntryForTx(ctx context.Context, currency, transactionHash string) (bool, error)
	GetMostRecentAuditTime(ctx context.Context) (time.Time, error)

	// Reporting (admin surface, read-only).
	GetCurrencyTotals(ctx context.Context) ([]models.CurrencyTotal, error)
	GetWinStreaks(ctx context.Context, minStreak int) ([]models.WinStreak, error)

	// ReconcileBalance verifies a balance row equals the algebraic sum of
	// its audit entries.
	ReconcileBalance(ctx context.Context, userAddress, currency string) error

	Close()
}
