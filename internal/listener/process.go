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

package listener

import (
	"context"
	"time"

	"house-ledger-go/internal/metrics"
	"house-ledger-go/internal/models"

	"go.uber.org/zap"
)

type retryItem struct {
	event    models.ChainEvent
	attempts int
}

// handleEvent applies one stream event. Failures that might be transient
// (store unavailable, ledger error) go to the bounded retry queue; replays
// and validation failures are terminal.
func (l *ChainListener) handleEvent(ctx context.Context, event models.ChainEvent, attempts int) {
	if event.TxHash == "" {
		zap.L().Warn("Dropping event without transaction hash",
			zap.String("currency", event.Currency),
			zap.String("event_type", event.EventType))
		metrics.ListenerEvents.WithLabelValues("invalid").Inc()
		return
	}

	// Fast-path replay check. The audit log's unique index is the source
	// of truth; this only saves a round trip on reconnect replays.
	if l.txCache.Seen(ctx, event.Currency, event.TxHash) {
		metrics.ListenerEvents.WithLabelValues("duplicate").Inc()
		return
	}

	switch event.EventType {
	case models.ChainEventDeposit:
		l.handleDeposit(ctx, event, attempts)
	case models.ChainEventWithdrawal:
		l.confirmWithdrawal(ctx, event)
	default:
		zap.L().Warn("Dropping event with unknown type",
			zap.String("event_type", event.EventType),
			zap.String("currency", event.Currency),
			zap.String("tx_hash", event.TxHash))
		metrics.ListenerEvents.WithLabelValues("invalid").Inc()
	}
}

func (l *ChainListener) handleDeposit(ctx context.Context, event models.ChainEvent, attempts int) {
	result, err := l.ledgerService.Deposit(ctx, event.UserAddress, event.Currency, event.Amount, event.TxHash)
	if err != nil || !result.Success {
		reason := ""
		if err != nil {
			reason = err.Error()
		} else {
			reason = result.Error
		}
		zap.L().Error("Deposit event failed, queueing retry",
			zap.String("currency", event.Currency),
			zap.String("tx_hash", event.TxHash),
			zap.Int("attempts", attempts),
			zap.String("reason", reason))
		l.enqueueRetry(event, attempts)
		return
	}

	l.txCache.Mark(ctx, event.Currency, event.TxHash)

	if result.Duplicate {
		metrics.ListenerEvents.WithLabelValues("duplicate").Inc()
		return
	}

	zap.L().Info("Deposit credited from chain event",
		zap.String("user_address", event.UserAddress),
		zap.String("currency", event.Currency),
		zap.String("amount", event.Amount.String()),
		zap.String("tx_hash", event.TxHash))
	metrics.ListenerEvents.WithLabelValues("credited").Inc()
}

// confirmWithdrawal cross-checks an observed on-chain withdrawal against
// the audit log. The ledger deducted at withdrawal time; an on-chain
// withdrawal with no matching entry means funds left the treasury outside
// the ledger's knowledge.
func (l *ChainListener) confirmWithdrawal(ctx context.Context, event models.ChainEvent) {
	found, err := l.dbService.HasAuditEntryForTx(ctx, event.Currency, event.TxHash)
	if err != nil {
		zap.L().Error("Withdrawal confirmation check failed",
			zap.String("currency", event.Currency),
			zap.String("tx_hash", event.TxHash),
			zap.Error(err))
		metrics.ListenerEvents.WithLabelValues("error").Inc()
		return
	}

	if !found {
		l.reconcile.Error("On-chain withdrawal with no ledger entry",
			zap.String("user_address", event.UserAddress),
			zap.String("currency", event.Currency),
			zap.String("amount", event.Amount.String()),
			zap.String("tx_hash", event.TxHash))
		metrics.ReconcileRequired.Inc()
		metrics.ListenerEvents.WithLabelValues("unmatched").Inc()
		return
	}

	l.txCache.Mark(ctx, event.Currency, event.TxHash)
	metrics.ListenerEvents.WithLabelValues("confirmed").Inc()
}

// enqueueRetry adds the event to the bounded retry queue. A full queue
// drops the event rather than blocking the read loop; the deposit is not
// lost, it is re-credited when the operator replays the stream.
func (l *ChainListener) enqueueRetry(event models.ChainEvent, attempts int) {
	if attempts+1 >= l.cfg.MaxRetryAttempts {
		l.alerts.Error("Deposit event exhausted retries, giving up",
			zap.String("currency", event.Currency),
			zap.String("tx_hash", event.TxHash),
			zap.Int("attempts", attempts+1))
		metrics.ListenerEvents.WithLabelValues("dropped").Inc()
		return
	}

	select {
	case l.retryQueue <- retryItem{event: event, attempts: attempts + 1}:
	default:
		l.alerts.Error("Retry queue full, dropping event",
			zap.String("currency", event.Currency),
			zap.String("tx_hash", event.TxHash))
		metrics.ListenerEvents.WithLabelValues("dropped").Inc()
	}
}

func (l *ChainListener) runRetryWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-l.retryQueue:
			select {
			case <-ctx.Done():
				return
			case <-time.After(l.cfg.RetryDelay):
			}
			l.handleEvent(ctx, item.event, item.attempts)
		}
	}
}
