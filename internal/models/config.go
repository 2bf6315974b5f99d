package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig
	Ledger   LedgerConfig
	Treasury TreasuryConfig
	Listener ListenerConfig
	Redis    RedisConfig
	Metrics  MetricsConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// LedgerConfig holds ledger procedure settings
type LedgerConfig struct {
	// WithdrawalFeeRate is the house fee fraction retained on withdrawal
	// (0.02 = 2%). The full pre-fee amount is deducted from the ledger;
	// only the net goes on-chain.
	WithdrawalFeeRate decimal.Decimal

	// TransferTimeout bounds the on-chain transfer call. Expiry means the
	// outcome is unknown, not failed.
	TransferTimeout time.Duration
}

// TreasuryConfig holds treasury signer API settings
type TreasuryConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// ListenerConfig holds chain event listener settings
type ListenerConfig struct {
	ChainsFile string // chains.yaml manifest

	MaxReconnectAttempts int
	BaseReconnectDelay   time.Duration
	MaxReconnectDelay    time.Duration

	RetryQueueSize   int
	MaxRetryAttempts int
	RetryDelay       time.Duration
}

// RedisConfig holds the optional processed-event cache settings. An empty
// Addr disables the cache entirely.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// MetricsConfig holds the metrics/health endpoint settings.
type MetricsConfig struct {
	Port string
}
