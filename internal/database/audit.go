package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"house-ledger-go/internal/models"
	"house-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetAuditHistory returns paginated audit entries for a (user, currency),
// newest first.
func (s *Service) GetAuditHistory(ctx context.Context, userAddress, currency string, limit, offset int) ([]models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAuditHistory, userAddress, currency, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get audit history: %v", store.ErrServiceUnavailable, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	return scanAuditEntries(rows)
}

// GetTransactionFeed returns recent audit entries of the given operation
// types since a point in time, newest first. Used by the admin transaction
// feed (deposits and withdrawals).
func (s *Service) GetTransactionFeed(ctx context.Context, operationTypes []models.OperationType, since time.Time, limit int) ([]models.AuditEntry, error) {
	if len(operationTypes) == 0 {
		return nil, fmt.Errorf("at least one operation type is required")
	}

	placeholders := make([]string, len(operationTypes))
	args := make([]interface{}, 0, len(operationTypes)+2)
	for i, op := range operationTypes {
		placeholders[i] = "?"
		args = append(args, string(op))
	}
	args = append(args, since, limit)

	query := fmt.Sprintf(`
		SELECT id, user_address, currency, operation_type, amount,
		       balance_before, balance_after,
		       COALESCE(transaction_hash, ''), COALESCE(bet_id, ''), created_at
		FROM balance_audit_log
		WHERE operation_type IN (%s) AND created_at >= ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get transaction feed: %v", store.ErrServiceUnavailable, err)
	}
	defer rows.Close()

	return scanAuditEntries(rows)
}

// HasAuditEntryForTx reports whether an entry anchored to this on-chain
// transaction already exists.
func (s *Service) HasAuditEntryForTx(ctx context.Context, currency, transactionHash string) (bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, queryCheckDuplicateTx, currency, transactionHash).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: duplicate lookup failed: %v", store.ErrServiceUnavailable, err)
	}
	return true, nil
}

// GetMostRecentAuditTime returns the newest on-chain-anchored entry time,
// used by the listener's startup recovery window.
func (s *Service) GetMostRecentAuditTime(ctx context.Context) (time.Time, error) {
	var timestampStr sql.NullString
	err := s.db.QueryRowContext(ctx, queryGetMostRecentAuditTime).Scan(&timestampStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: failed to get most recent audit time: %v", store.ErrServiceUnavailable, err)
	}

	if !timestampStr.Valid || timestampStr.String == "" {
		// No anchored entries yet, start from 2 hours ago.
		return time.Now().UTC().Add(-2 * time.Hour), nil
	}

	return parseSQLiteTime(timestampStr.String)
}

// GetCurrencyTotals aggregates held balances and user counts per currency.
func (s *Service) GetCurrencyTotals(ctx context.Context) ([]models.CurrencyTotal, error) {
	rows, err := s.db.QueryContext(ctx, queryAllBalanceRows)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load balance rows: %v", store.ErrServiceUnavailable, err)
	}
	defer rows.Close()

	totals := make(map[string]*models.CurrencyTotal)
	var order []string
	for rows.Next() {
		var currency, balanceStr string
		if err := rows.Scan(&currency, &balanceStr); err != nil {
			return nil, fmt.Errorf("failed to scan balance row: %w", err)
		}
		balance, err := decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance '%s': %w", balanceStr, err)
		}

		t, ok := totals[currency]
		if !ok {
			t = &models.CurrencyTotal{Currency: currency, TotalBalance: decimal.Zero}
			totals[currency] = t
			order = append(order, currency)
		}
		t.TotalBalance = t.TotalBalance.Add(balance)
		t.UserCount++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating balance rows: %v", store.ErrServiceUnavailable, err)
	}

	result := make([]models.CurrencyTotal, 0, len(order))
	for _, currency := range order {
		result = append(result, *totals[currency])
	}
	return result, nil
}

// GetWinStreaks scans bet settlement entries in order and reports users
// whose longest run of consecutive wins reaches minStreak.
func (s *Service) GetWinStreaks(ctx context.Context, minStreak int) ([]models.WinStreak, error) {
	rows, err := s.db.QueryContext(ctx, queryWinStreakEntries)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load settlement entries: %v", store.ErrServiceUnavailable, err)
	}
	defer rows.Close()

	var (
		streaks          []models.WinStreak
		curUser, curCurr string
		run, best        int
	)

	flush := func() {
		if curUser != "" && best >= minStreak {
			streaks = append(streaks, models.WinStreak{UserAddress: curUser, Currency: curCurr, Streak: best})
		}
	}

	for rows.Next() {
		var user, currency, opType string
		if err := rows.Scan(&user, &currency, &opType); err != nil {
			return nil, fmt.Errorf("failed to scan settlement entry: %w", err)
		}

		if user != curUser || currency != curCurr {
			flush()
			curUser, curCurr = user, currency
			run, best = 0, 0
		}

		if models.OperationType(opType) == models.OpBetWon {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 0
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating settlement entries: %v", store.ErrServiceUnavailable, err)
	}
	flush()

	return streaks, nil
}

func scanAuditEntries(rows *sql.Rows) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var amountStr, beforeStr, afterStr string
		err := rows.Scan(&e.Id, &e.UserAddress, &e.Currency, &e.OperationType,
			&amountStr, &beforeStr, &afterStr, &e.TransactionHash, &e.BetId, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		if e.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
		}
		if e.BalanceBefore, err = decimal.NewFromString(beforeStr); err != nil {
			return nil, fmt.Errorf("failed to parse balance_before '%s': %w", beforeStr, err)
		}
		if e.BalanceAfter, err = decimal.NewFromString(afterStr); err != nil {
			return nil, fmt.Errorf("failed to parse balance_after '%s': %w", afterStr, err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}
	return entries, nil
}

// parseSQLiteTime handles the timestamp formats SQLite may hand back.
func parseSQLiteTime(value string) (time.Time, error) {
	layouts := []string{
		"2006-01-02 15:04:05.999999-07:00",
		"2006-01-02 15:04:05-07:00",
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse timestamp %q", value)
}
