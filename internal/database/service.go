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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"house-ledger-go/internal/models"
	"house-ledger-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

// Service is the SQLite-backed balance store and audit log. The database
// transaction is the only serialization point: mutations to the same
// (user_address, currency) row are mutually exclusive via the optimistic
// version check, rows for different users proceed in parallel.
type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.InitSchema(); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

// NewServiceWithDB wraps an existing connection. Used by tests.
func NewServiceWithDB(db *sql.DB) *Service {
	return &Service{db: db}
}

// Ping backs the health endpoint.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) InitSchema() error {
	schema := `
	-- Balance rows: current state per (user_address, currency) - hot data.
	-- Rows are created lazily on first deposit or query and never deleted;
	-- zero-balance rows persist as identity anchors.
	CREATE TABLE IF NOT EXISTS user_balances (
		id TEXT PRIMARY KEY,
		user_address TEXT NOT NULL,
		currency TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'active',
		tier TEXT NOT NULL DEFAULT 'free',
		last_audit_id TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(user_address, currency)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_balances_user_currency ON user_balances(user_address, currency);
	CREATE INDEX IF NOT EXISTS idx_balances_user ON user_balances(user_address);

	-- Audit log: append-only, one row per balance-affecting event - cold data.
	CREATE TABLE IF NOT EXISTS balance_audit_log (
		id TEXT PRIMARY KEY,
		user_address TEXT NOT NULL,
		currency TEXT NOT NULL,
		operation_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		transaction_hash TEXT,
		bet_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- One ledger effect per on-chain transaction: replays of the same hash
	-- (client call and event listener both firing) hit this index.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_audit_currency_tx
		ON balance_audit_log(currency, transaction_hash)
		WHERE transaction_hash IS NOT NULL;

	CREATE INDEX IF NOT EXISTS idx_audit_user ON balance_audit_log(user_address);
	CREATE INDEX IF NOT EXISTS idx_audit_user_currency ON balance_audit_log(user_address, currency, created_at);
	CREATE INDEX IF NOT EXISTS idx_audit_op_created ON balance_audit_log(operation_type, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}
