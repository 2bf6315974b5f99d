package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"house-ledger-go/internal/models"
	"house-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ApplyEntry atomically mutates one balance row and appends its audit entry.
// Sequence: duplicate precheck, begin, read-or-create row, status gate,
// non-negative balance check, audit insert, version-guarded balance update,
// commit. A failure anywhere rolls the whole thing back.
func (s *Service) ApplyEntry(ctx context.Context, params store.ApplyEntryParams) (*models.AuditEntry, error) {
	zap.L().Info("Applying ledger entry",
		zap.String("user_address", params.UserAddress),
		zap.String("currency", params.Currency),
		zap.String("operation", string(params.OperationType)),
		zap.String("amount", params.Amount.String()),
		zap.String("transaction_hash", params.TransactionHash))

	// Fast-path duplicate check. The partial unique index on
	// (currency, transaction_hash) backstops the race between this check
	// and the insert below.
	if params.TransactionHash != "" {
		var existingId string
		err := s.db.QueryRowContext(ctx, queryCheckDuplicateTx, params.Currency, params.TransactionHash).Scan(&existingId)
		if err == nil {
			zap.L().Warn("Duplicate transaction hash detected, skipping",
				zap.String("transaction_hash", params.TransactionHash),
				zap.String("existing_audit_id", existingId))
			return nil, fmt.Errorf("%w: transaction_hash %s already recorded", store.ErrDuplicateTransaction, params.TransactionHash)
		} else if err != sql.ErrNoRows {
			return nil, fmt.Errorf("%w: duplicate check failed: %v", store.ErrServiceUnavailable, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to begin transaction: %v", store.ErrServiceUnavailable, err)
	}
	defer tx.Rollback()

	var (
		rowId          string
		balanceStr     string
		status         string
		tier           string
		version        int64
		updatedAt      time.Time
		currentBalance decimal.Decimal
	)

	err = tx.QueryRowContext(ctx, queryGetBalanceRow, params.UserAddress, params.Currency).
		Scan(&rowId, &balanceStr, &status, &tier, &version, &updatedAt)
	if err == sql.ErrNoRows {
		// Lazily create the identity anchor with a zero balance.
		rowId = uuid.New().String()
		currentBalance = decimal.Zero
		status = string(models.StatusActive)
		version = 1

		_, err = tx.ExecContext(ctx, queryInsertBalanceRow,
			rowId, params.UserAddress, params.Currency, "0",
			string(models.StatusActive), string(models.TierFree), 1)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to create balance row: %v", store.ErrServiceUnavailable, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("%w: failed to read balance row: %v", store.ErrServiceUnavailable, err)
	} else {
		currentBalance, err = decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance '%s': %w", balanceStr, err)
		}
	}

	if params.RequireActive && models.AccountStatus(status) != models.StatusActive {
		return nil, fmt.Errorf("%w: account is %s", store.ErrAccountRestricted, status)
	}

	newBalance := currentBalance.Add(params.OperationType.Effect(params.Amount))
	if newBalance.IsNegative() {
		return nil, fmt.Errorf("%w: balance=%s, requested=%s",
			store.ErrInsufficientBalance, currentBalance.String(), params.Amount.String())
	}

	entry := &models.AuditEntry{
		Id:              uuid.New().String(),
		UserAddress:     params.UserAddress,
		Currency:        params.Currency,
		OperationType:   params.OperationType,
		Amount:          params.Amount,
		BalanceBefore:   currentBalance,
		BalanceAfter:    newBalance,
		TransactionHash: params.TransactionHash,
		BetId:           params.BetId,
		CreatedAt:       time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, queryInsertAuditEntry,
		entry.Id, entry.UserAddress, entry.Currency, string(entry.OperationType),
		entry.Amount.String(), entry.BalanceBefore.String(), entry.BalanceAfter.String(),
		nullable(entry.TransactionHash), nullable(entry.BetId), entry.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: transaction_hash %s already recorded", store.ErrDuplicateTransaction, params.TransactionHash)
		}
		return nil, fmt.Errorf("%w: failed to insert audit entry: %v", store.ErrServiceUnavailable, err)
	}

	result, err := tx.ExecContext(ctx, queryUpdateBalanceRow,
		newBalance.String(), entry.Id, params.UserAddress, params.Currency, version)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to update balance: %v", store.ErrServiceUnavailable, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to check rows affected: %v", store.ErrServiceUnavailable, err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: failed to commit: %v", store.ErrServiceUnavailable, err)
	}

	zap.L().Info("Ledger entry applied",
		zap.String("audit_id", entry.Id),
		zap.String("user_address", params.UserAddress),
		zap.String("currency", params.Currency),
		zap.String("operation", string(params.OperationType)),
		zap.String("old_balance", currentBalance.String()),
		zap.String("new_balance", newBalance.String()))

	return entry, nil
}

// SetAccountStatus is administrative only; the ledger never calls it. The
// row is created if absent so an account can be frozen before its first
// deposit.
func (s *Service) SetAccountStatus(ctx context.Context, userAddress, currency string, status models.AccountStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid account status: %q", status)
	}

	result, err := s.db.ExecContext(ctx, querySetAccountStatus, string(status), userAddress, currency)
	if err != nil {
		return fmt.Errorf("%w: failed to set account status: %v", store.ErrServiceUnavailable, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to check rows affected: %v", store.ErrServiceUnavailable, err)
	}
	if rowsAffected == 0 {
		_, err = s.db.ExecContext(ctx, queryInsertBalanceRow,
			uuid.New().String(), userAddress, currency, "0",
			string(status), string(models.TierFree), 1)
		if err != nil {
			return fmt.Errorf("%w: failed to create balance row for status change: %v", store.ErrServiceUnavailable, err)
		}
	}

	zap.L().Info("Account status updated",
		zap.String("user_address", userAddress),
		zap.String("currency", currency),
		zap.String("status", string(status)))
	return nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
