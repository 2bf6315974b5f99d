/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"house-ledger-go/internal/chain"
	"house-ledger-go/internal/metrics"
	"house-ledger-go/internal/models"
	"house-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// maxPrecision is the finest amount granularity the ledger accepts.
const maxPrecision = 8

// Service exposes the ledger procedures: every balance mutation in the
// system flows through one of its methods, each of which performs a single
// atomic transaction against the balance store and audit log.
type Service struct {
	db              store.LedgerStore
	registry        *chain.Registry
	feeRate         decimal.Decimal
	transferTimeout time.Duration

	// reconcileLog is the dedicated channel for the one genuinely unsafe
	// state: funds moved on-chain but the ledger write did not land.
	reconcileLog *zap.Logger
}

func NewService(db store.LedgerStore, registry *chain.Registry, cfg models.LedgerConfig) *Service {
	return &Service{
		db:              db,
		registry:        registry,
		feeRate:         cfg.WithdrawalFeeRate,
		transferTimeout: cfg.TransferTimeout,
		reconcileLog:    zap.L().Named("reconcile"),
	}
}

// Deposit credits a confirmed on-chain deposit. Idempotent per txHash:
// replays (client call and event listener both firing) return the current
// balance with Duplicate set and write no second audit entry.
func (s *Service) Deposit(ctx context.Context, userAddress, currency string, amount decimal.Decimal, txHash string) (*models.OperationResult, error) {
	addr, rejected := s.validateTarget(userAddress, currency, amount)
	if rejected != nil {
		metrics.Operations.WithLabelValues("deposit", metrics.OutcomeRejected).Inc()
		return rejected, nil
	}
	if txHash == "" {
		metrics.Operations.WithLabelValues("deposit", metrics.OutcomeRejected).Inc()
		return failure("missing transaction hash"), nil
	}

	entry, err := s.db.ApplyEntry(ctx, store.ApplyEntryParams{
		UserAddress:     addr,
		Currency:        currency,
		OperationType:   models.OpDeposit,
		Amount:          amount,
		TransactionHash: txHash,
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateTransaction) {
			view, verr := s.db.GetBalance(ctx, addr, currency)
			if verr != nil {
				metrics.Operations.WithLabelValues("deposit", metrics.OutcomeError).Inc()
				return failure("balance lookup failed after duplicate deposit"), nil
			}
			zap.L().Info("Duplicate deposit replay, no-op",
				zap.String("user_address", addr),
				zap.String("currency", currency),
				zap.String("tx_hash", txHash))
			metrics.Operations.WithLabelValues("deposit", metrics.OutcomeDuplicate).Inc()
			return &models.OperationResult{
				Success:    true,
				Duplicate:  true,
				NewBalance: view.Balance,
				TxHash:     txHash,
			}, nil
		}

		zap.L().Error("Deposit failed",
			zap.String("user_address", addr),
			zap.String("currency", currency),
			zap.String("amount", amount.String()),
			zap.Error(err))
		metrics.Operations.WithLabelValues("deposit", metrics.OutcomeError).Inc()
		return failure(err.Error()), nil
	}

	metrics.Operations.WithLabelValues("deposit", metrics.OutcomeSuccess).Inc()
	return &models.OperationResult{
		Success:    true,
		NewBalance: entry.BalanceAfter,
		TxHash:     txHash,
	}, nil
}

// DeductForBet debits the stake when a bet is placed. A missing balance
// row means a zero balance, which is insufficient by definition.
func (s *Service) DeductForBet(ctx context.Context, userAddress, currency string, amount decimal.Decimal) (*models.OperationResult, error) {
	addr, rejected := s.validateTarget(userAddress, currency, amount)
	if rejected != nil {
		metrics.Operations.WithLabelValues("bet_deduct", metrics.OutcomeRejected).Inc()
		return rejected, nil
	}

	entry, err := s.db.ApplyEntry(ctx, store.ApplyEntryParams{
		UserAddress:   addr,
		Currency:      currency,
		OperationType: models.OpBetPlaced,
		Amount:        amount,
	})
	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, store.ErrInsufficientBalance) {
			outcome = metrics.OutcomeRejected
		}
		metrics.Operations.WithLabelValues("bet_deduct", outcome).Inc()
		return failure(err.Error()), nil
	}

	metrics.Operations.WithLabelValues("bet_deduct", metrics.OutcomeSuccess).Inc()
	return &models.OperationResult{Success: true, NewBalance: entry.BalanceAfter}, nil
}

// CreditForPayout credits a winning bet. The house pays out freely; there
// is no sufficiency check.
func (s *Service) CreditForPayout(ctx context.Context, userAddress, currency string, amount decimal.Decimal, betId string) (*models.OperationResult, error) {
	addr, rejected := s.validateTarget(userAddress, currency, amount)
	if rejected != nil {
		metrics.Operations.WithLabelValues("bet_credit", metrics.OutcomeRejected).Inc()
		return rejected, nil
	}
	if betId == "" {
		metrics.Operations.WithLabelValues("bet_credit", metrics.OutcomeRejected).Inc()
		return failure("missing bet id"), nil
	}

	entry, err := s.db.ApplyEntry(ctx, store.ApplyEntryParams{
		UserAddress:   addr,
		Currency:      currency,
		OperationType: models.OpBetWon,
		Amount:        amount,
		BetId:         betId,
	})
	if err != nil {
		metrics.Operations.WithLabelValues("bet_credit", metrics.OutcomeError).Inc()
		return failure(err.Error()), nil
	}

	metrics.Operations.WithLabelValues("bet_credit", metrics.OutcomeSuccess).Inc()
	return &models.OperationResult{Success: true, NewBalance: entry.BalanceAfter}, nil
}

// RecordBetLoss appends a zero-effect bet_lost marker so settlement
// history (and streak reporting) sees losses as well as wins.
func (s *Service) RecordBetLoss(ctx context.Context, userAddress, currency, betId string) (*models.OperationResult, error) {
	adapter, err := s.registry.ForCurrency(currency)
	if err != nil {
		return failure(err.Error()), nil
	}
	if !adapter.ValidateAddress(userAddress) {
		return failure("invalid wallet address format"), nil
	}
	if betId == "" {
		return failure("missing bet id"), nil
	}

	entry, err := s.db.ApplyEntry(ctx, store.ApplyEntryParams{
		UserAddress:   adapter.NormalizeAddress(userAddress),
		Currency:      currency,
		OperationType: models.OpBetLost,
		Amount:        decimal.Zero,
		BetId:         betId,
	})
	if err != nil {
		return failure(err.Error()), nil
	}

	return &models.OperationResult{Success: true, NewBalance: entry.BalanceAfter}, nil
}

// Withdraw moves value out to the user's on-chain address in two phases.
// Phase 1 validates and performs the chain transfer without holding any
// balance lock (the transfer dominates latency). Phase 2 deducts the full
// pre-fee amount from the ledger; only the net (amount minus the house
// fee) went on-chain. A phase-2 failure after a successful transfer still
// reports success, flagged for manual reconciliation, because an on-chain
// transfer cannot be reversed.
func (s *Service) Withdraw(ctx context.Context, userAddress, currency string, amount decimal.Decimal) (*models.OperationResult, error) {
	addr, rejected := s.validateTarget(userAddress, currency, amount)
	if rejected != nil {
		metrics.Operations.WithLabelValues("withdraw", metrics.OutcomeRejected).Inc()
		return rejected, nil
	}
	adapter, _ := s.registry.ForCurrency(currency)

	// Phase 1 preflight. The same conditions are re-checked atomically in
	// phase 2; this check exists so an obviously doomed request never
	// reaches the chain.
	view, err := s.db.GetBalance(ctx, addr, currency)
	if err != nil {
		metrics.Operations.WithLabelValues("withdraw", metrics.OutcomeError).Inc()
		return failure(err.Error()), nil
	}
	if view.Status != models.StatusActive {
		metrics.Operations.WithLabelValues("withdraw", metrics.OutcomeRejected).Inc()
		return failure(fmt.Sprintf("account is %s, withdrawals are disabled", view.Status)), nil
	}
	if view.Balance.LessThan(amount) {
		metrics.Operations.WithLabelValues("withdraw", metrics.OutcomeRejected).Inc()
		return failure(fmt.Sprintf("insufficient balance: balance=%s, requested=%s",
			view.Balance.String(), amount.String())), nil
	}

	fee := amount.Mul(s.feeRate)
	net := amount.Sub(fee)

	zap.L().Info("Processing withdrawal",
		zap.String("user_address", addr),
		zap.String("currency", currency),
		zap.String("amount", amount.String()),
		zap.String("fee", fee.String()),
		zap.String("net", net.String()))

	transferCtx, cancel := context.WithTimeout(ctx, s.transferTimeout)
	defer cancel()

	txRef, err := adapter.TransferOut(transferCtx, addr, net)
	if err != nil {
		if errors.Is(err, chain.ErrTransferUnknown) {
			// The transfer may have gone through. No ledger mutation has
			// happened; a human has to determine the outcome before the
			// user retries.
			s.reconcileLog.Error("Withdrawal transfer outcome unknown",
				zap.String("user_address", addr),
				zap.String("currency", currency),
				zap.String("amount", amount.String()),
				zap.String("net", net.String()),
				zap.Error(err))
			metrics.ReconcileRequired.Inc()
			metrics.Operations.WithLabelValues("withdraw", metrics.OutcomeReconcile).Inc()
			return &models.OperationResult{
				Success:           false,
				Error:             "transfer outcome unknown, funds may have moved; manual reconciliation required",
				ReconcileRequired: true,
			}, nil
		}

		// Definite failure before any ledger mutation: fully retryable.
		zap.L().Error("Withdrawal transfer failed",
			zap.String("user_address", addr),
			zap.String("currency", currency),
			zap.String("amount", amount.String()),
			zap.Error(err))
		metrics.Operations.WithLabelValues("withdraw", metrics.OutcomeError).Inc()
		return failure(fmt.Sprintf("withdrawal failed: %v", err)), nil
	}

	// Phase 2: deduct the FULL amount; the fee stays with the house.
	entry, err := s.db.ApplyEntry(ctx, store.ApplyEntryParams{
		UserAddress:     addr,
		Currency:        currency,
		OperationType:   models.OpWithdrawal,
		Amount:          amount,
		TransactionHash: txRef,
		RequireActive:   true,
	})
	if err != nil {
		// Funds already left the treasury; reversing the transfer is not
		// possible, so the caller still gets success, and the gap goes to
		// the reconciliation channel.
		s.reconcileLog.Error("Funds sent but ledger update failed",
			zap.String("user_address", addr),
			zap.String("currency", currency),
			zap.String("amount", amount.String()),
			zap.String("net", net.String()),
			zap.String("tx_hash", txRef),
			zap.Error(err))
		metrics.ReconcileRequired.Inc()
		metrics.Operations.WithLabelValues("withdraw", metrics.OutcomeReconcile).Inc()
		return &models.OperationResult{
			Success:           true,
			TxHash:            txRef,
			Error:             "funds sent but balance update failed; manual reconciliation required",
			ReconcileRequired: true,
			NewBalance:        view.Balance,
		}, nil
	}

	metrics.Operations.WithLabelValues("withdraw", metrics.OutcomeSuccess).Inc()
	return &models.OperationResult{
		Success:    true,
		TxHash:     txRef,
		NewBalance: entry.BalanceAfter,
	}, nil
}

// GetBalance returns the balance view for a user; a missing row is a zero
// balance, never an error.
func (s *Service) GetBalance(ctx context.Context, userAddress, currency string) (*models.BalanceView, error) {
	adapter, err := s.registry.ForCurrency(currency)
	if err != nil {
		return nil, err
	}
	if !adapter.ValidateAddress(userAddress) {
		return nil, fmt.Errorf("%w: %s", chain.ErrInvalidAddress, userAddress)
	}
	return s.db.GetBalance(ctx, adapter.NormalizeAddress(userAddress), currency)
}

// validateTarget runs the shared precondition checks. It returns the
// normalized address, or a rejection result if any check fails. Rejections
// happen before any store access and have no side effects.
func (s *Service) validateTarget(userAddress, currency string, amount decimal.Decimal) (string, *models.OperationResult) {
	adapter, err := s.registry.ForCurrency(currency)
	if err != nil {
		return "", failure(err.Error())
	}
	if !adapter.ValidateAddress(userAddress) {
		return "", failure("invalid wallet address format")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return "", failure("amount must be greater than zero")
	}
	if !amount.Equal(amount.Truncate(maxPrecision)) {
		return "", failure(fmt.Sprintf("amount exceeds maximum precision of 1e-%d", maxPrecision))
	}
	return adapter.NormalizeAddress(userAddress), nil
}

func failure(msg string) *models.OperationResult {
	return &models.OperationResult{
		Success:    false,
		Error:      msg,
		NewBalance: decimal.Zero,
	}
}
