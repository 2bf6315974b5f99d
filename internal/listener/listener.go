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
	"encoding/json"
	"time"

	"house-ledger-go/internal/cache"
	"house-ledger-go/internal/ledger"
	"house-ledger-go/internal/metrics"
	"house-ledger-go/internal/models"
	"house-ledger-go/internal/store"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// streamConn is the subset of *websocket.Conn the listener uses.
type streamConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

type dialFunc func(ctx context.Context, url string) (streamConn, error)

func defaultDial(ctx context.Context, url string) (streamConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Config contains the chain event listener dependencies.
type Config struct {
	LedgerService *ledger.Service
	DbService     store.LedgerStore
	TxCache       *cache.ProcessedTxCache
	Streams       []models.ChainStream
	Settings      models.ListenerConfig
}

// ChainListener subscribes to each chain's treasury event stream and turns
// deposit events into ledger credits. One goroutine per stream; streams
// fail independently, and a stream that exhausts its reconnect budget
// halts with an alert while the others keep running.
type ChainListener struct {
	ledgerService *ledger.Service
	dbService     store.LedgerStore
	txCache       *cache.ProcessedTxCache
	streams       []models.ChainStream
	cfg           models.ListenerConfig

	retryQueue chan retryItem
	dial       dialFunc

	alerts    *zap.Logger
	reconcile *zap.Logger
}

func NewChainListener(cfg Config) *ChainListener {
	return &ChainListener{
		ledgerService: cfg.LedgerService,
		dbService:     cfg.DbService,
		txCache:       cfg.TxCache,
		streams:       cfg.Streams,
		cfg:           cfg.Settings,
		retryQueue:    make(chan retryItem, cfg.Settings.RetryQueueSize),
		dial:          defaultDial,
		alerts:        zap.L().Named("alerts"),
		reconcile:     zap.L().Named("reconcile"),
	}
}

// Run blocks until ctx is cancelled or every stream has halted. A halted
// stream is a hard operational problem (deposits on that chain stop being
// credited), so the error propagates instead of being swallowed.
func (l *ChainListener) Run(ctx context.Context) error {
	// Events older than this are assumed already applied; the stream
	// gateway replays from here on subscribe.
	recoverFrom, err := l.dbService.GetMostRecentAuditTime(ctx)
	if err != nil {
		return err
	}
	zap.L().Info("Event recovery window established",
		zap.Time("recover_from", recoverFrom),
		zap.Int("streams", len(l.streams)))

	g, ctx := errgroup.WithContext(ctx)

	for _, stream := range l.streams {
		stream := stream
		g.Go(func() error {
			return l.runStream(ctx, stream)
		})
	}

	g.Go(func() error {
		l.runRetryWorker(ctx)
		return nil
	})

	return g.Wait()
}

// runStream is the per-stream connect/read/backoff state machine. The
// attempt counter resets on every successful subscription; only
// consecutive failures count against the reconnect budget.
func (l *ChainListener) runStream(ctx context.Context, stream models.ChainStream) error {
	attempts := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, err := l.dial(ctx, stream.StreamURL)
		if err != nil {
			attempts++
			metrics.ListenerReconnects.Inc()
			if attempts >= l.cfg.MaxReconnectAttempts {
				l.alerts.Error("Stream reconnect budget exhausted, halting stream",
					zap.String("currency", stream.Currency),
					zap.String("stream_url", stream.StreamURL),
					zap.Int("attempts", attempts),
					zap.Error(err))
				return err
			}

			delay := l.backoffDelay(attempts)
			zap.L().Warn("Stream connect failed, backing off",
				zap.String("currency", stream.Currency),
				zap.Int("attempt", attempts),
				zap.Duration("delay", delay),
				zap.Error(err))

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			continue
		}

		attempts = 0
		zap.L().Info("Subscribed to chain event stream",
			zap.String("currency", stream.Currency),
			zap.String("stream_url", stream.StreamURL))

		err = l.readLoop(ctx, conn, stream)
		_ = conn.Close()

		if ctx.Err() != nil {
			return nil
		}

		zap.L().Warn("Stream disconnected",
			zap.String("currency", stream.Currency),
			zap.Error(err))
	}
}

func (l *ChainListener) readLoop(ctx context.Context, conn streamConn, stream models.ChainStream) error {
	// Unblock ReadMessage on shutdown; gorilla reads have no context.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var event models.ChainEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			zap.L().Warn("Dropping malformed stream message",
				zap.String("currency", stream.Currency),
				zap.Error(err))
			metrics.ListenerEvents.WithLabelValues("invalid").Inc()
			continue
		}

		// The stream is per-currency; the payload's currency field is
		// advisory and must agree when present.
		if event.Currency == "" {
			event.Currency = stream.Currency
		} else if event.Currency != stream.Currency {
			zap.L().Warn("Dropping event with mismatched currency",
				zap.String("stream_currency", stream.Currency),
				zap.String("event_currency", event.Currency),
				zap.String("tx_hash", event.TxHash))
			metrics.ListenerEvents.WithLabelValues("invalid").Inc()
			continue
		}

		l.handleEvent(ctx, event, 0)
	}
}

func (l *ChainListener) backoffDelay(attempt int) time.Duration {
	delay := l.cfg.BaseReconnectDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= l.cfg.MaxReconnectDelay {
			return l.cfg.MaxReconnectDelay
		}
	}
	if delay > l.cfg.MaxReconnectDelay {
		return l.cfg.MaxReconnectDelay
	}
	return delay
}
