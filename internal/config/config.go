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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"house-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	transferTimeout, err := getEnvDuration("CHAIN_TRANSFER_TIMEOUT", 75*time.Second)
	if err != nil {
		return nil, err
	}

	treasuryTimeout, err := getEnvDuration("TREASURY_HTTP_TIMEOUT", 90*time.Second)
	if err != nil {
		return nil, err
	}

	baseReconnectDelay, err := getEnvDuration("LISTENER_BASE_RECONNECT_DELAY", 1*time.Second)
	if err != nil {
		return nil, err
	}

	maxReconnectDelay, err := getEnvDuration("LISTENER_MAX_RECONNECT_DELAY", 30*time.Second)
	if err != nil {
		return nil, err
	}

	retryDelay, err := getEnvDuration("LISTENER_RETRY_DELAY", 5*time.Second)
	if err != nil {
		return nil, err
	}

	cacheTTL, err := getEnvDuration("REDIS_PROCESSED_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	feeRate, err := getEnvDecimal("WITHDRAWAL_FEE_RATE", decimal.NewFromFloat(0.02))
	if err != nil {
		return nil, err
	}
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("WITHDRAWAL_FEE_RATE must be in [0, 1), got %s", feeRate.String())
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "ledger.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Ledger: models.LedgerConfig{
			WithdrawalFeeRate: feeRate,
			TransferTimeout:   transferTimeout,
		},
		Treasury: models.TreasuryConfig{
			BaseURL: getEnvString("TREASURY_API_URL", "http://localhost:8090"),
			APIKey:  getEnvString("TREASURY_API_KEY", ""),
			Timeout: treasuryTimeout,
		},
		Listener: models.ListenerConfig{
			ChainsFile:           getEnvString("CHAINS_FILE", "chains.yaml"),
			MaxReconnectAttempts: getEnvInt("LISTENER_MAX_RECONNECT_ATTEMPTS", 10),
			BaseReconnectDelay:   baseReconnectDelay,
			MaxReconnectDelay:    maxReconnectDelay,
			RetryQueueSize:       getEnvInt("LISTENER_RETRY_QUEUE_SIZE", 100),
			MaxRetryAttempts:     getEnvInt("LISTENER_MAX_RETRY_ATTEMPTS", 3),
			RetryDelay:           retryDelay,
		},
		Redis: models.RedisConfig{
			Addr:     getEnvString("REDIS_ADDR", ""),
			Password: getEnvString("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      cacheTTL,
		},
		Metrics: models.MetricsConfig{
			Port: getEnvString("METRICS_PORT", "9091"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
		}
		return d, nil
	}
	return defaultValue, nil
}
