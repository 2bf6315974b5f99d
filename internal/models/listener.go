package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Chain event types emitted by treasury contracts.
const (
	ChainEventDeposit    = "deposit"
	ChainEventWithdrawal = "withdrawal"
)

// ChainEvent is one on-chain treasury event delivered over a chain's event
// stream. Amount is in display units (the stream gateway already converts
// from base units).
type ChainEvent struct {
	EventType   string          `json:"event_type"`
	UserAddress string          `json:"user"`
	Currency    string          `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
	TxHash      string          `json:"tx_hash"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ChainStream describes one chain's event stream subscription.
type ChainStream struct {
	Currency  string // currency whose treasury this stream reports on
	StreamURL string // websocket endpoint
}
