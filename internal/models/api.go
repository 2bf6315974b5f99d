package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OperationResult is the uniform response of every ledger procedure.
type OperationResult struct {
	Success    bool            `json:"success"`
	Error      string          `json:"error,omitempty"`
	NewBalance decimal.Decimal `json:"new_balance"`
	TxHash     string          `json:"tx_hash,omitempty"`

	// Duplicate is set when an idempotent replay was detected; the balance
	// reflects the already-applied state and no new audit entry was written.
	Duplicate bool `json:"duplicate,omitempty"`

	// ReconcileRequired marks the asymmetric withdrawal failure path: funds
	// left the treasury but the ledger state is (or may be) out of sync.
	ReconcileRequired bool `json:"reconcile_required,omitempty"`
}

// BalanceView is the read-only balance query response. Missing rows are not
// an error; they come back as zero balance, free tier, nil UpdatedAt.
type BalanceView struct {
	UserAddress string          `json:"user_address"`
	Currency    string          `json:"currency"`
	Balance     decimal.Decimal `json:"balance"`
	Tier        Tier            `json:"tier"`
	Status      AccountStatus   `json:"status"`
	UpdatedAt   *time.Time      `json:"updated_at"`
}
