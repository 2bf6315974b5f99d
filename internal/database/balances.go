package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"house-ledger-go/internal/models"
	"house-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetBalance returns the current balance view for (user, currency). A
// missing row is not an error: it means a zero balance with free tier and
// no UpdatedAt.
func (s *Service) GetBalance(ctx context.Context, userAddress, currency string) (*models.BalanceView, error) {
	var (
		rowId      string
		balanceStr string
		status     string
		tier       string
		version    int64
		updatedAt  time.Time
	)

	err := s.db.QueryRowContext(ctx, queryGetBalanceRow, userAddress, currency).
		Scan(&rowId, &balanceStr, &status, &tier, &version, &updatedAt)
	if err == sql.ErrNoRows {
		return &models.BalanceView{
			UserAddress: userAddress,
			Currency:    currency,
			Balance:     decimal.Zero,
			Tier:        models.TierFree,
			Status:      models.StatusActive,
			UpdatedAt:   nil,
		}, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance",
			zap.String("user_address", userAddress),
			zap.String("currency", currency),
			zap.Error(err))
		return nil, fmt.Errorf("%w: failed to get balance: %v", store.ErrServiceUnavailable, err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance '%s': %w", balanceStr, err)
	}

	return &models.BalanceView{
		UserAddress: userAddress,
		Currency:    currency,
		Balance:     balance,
		Tier:        models.Tier(tier),
		Status:      models.AccountStatus(status),
		UpdatedAt:   &updatedAt,
	}, nil
}

// GetAllBalances returns every balance row for a user, one per currency.
func (s *Service) GetAllBalances(ctx context.Context, userAddress string) ([]models.Balance, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAllBalances, userAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get balances: %v", store.ErrServiceUnavailable, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var balances []models.Balance
	for rows.Next() {
		var b models.Balance
		var balanceStr string
		err := rows.Scan(&b.Id, &b.UserAddress, &b.Currency, &balanceStr,
			&b.Status, &b.Tier, &b.LastAuditId, &b.Version, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}

		b.Balance, err = decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance '%s': %w", balanceStr, err)
		}

		balances = append(balances, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating balance rows: %v", store.ErrServiceUnavailable, err)
	}

	return balances, nil
}

// ReconcileBalance verifies that the balance row equals the algebraic sum
// of all audit entries for the pair, using exact decimal arithmetic.
func (s *Service) ReconcileBalance(ctx context.Context, userAddress, currency string) error {
	view, err := s.GetBalance(ctx, userAddress, currency)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryReconcileEntries, userAddress, currency)
	if err != nil {
		return fmt.Errorf("%w: failed to load audit entries: %v", store.ErrServiceUnavailable, err)
	}
	defer rows.Close()

	calculated := decimal.Zero
	for rows.Next() {
		var opType, amountStr string
		if err := rows.Scan(&opType, &amountStr); err != nil {
			return fmt.Errorf("failed to scan audit entry: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
		}
		calculated = calculated.Add(models.OperationType(opType).Effect(amount))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: error iterating audit entries: %v", store.ErrServiceUnavailable, err)
	}

	if !view.Balance.Equal(calculated) {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_address", userAddress),
			zap.String("currency", currency),
			zap.String("current_balance", view.Balance.String()),
			zap.String("calculated_balance", calculated.String()),
			zap.String("difference", view.Balance.Sub(calculated).String()))
		return fmt.Errorf("balance mismatch: current=%s, calculated=%s",
			view.Balance.String(), calculated.String())
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("user_address", userAddress),
		zap.String("currency", currency),
		zap.String("balance", view.Balance.String()))
	return nil
}
