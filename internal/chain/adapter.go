package chain

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Sentinel errors for outbound settlement.
var (
	// ErrTransferFailed means the chain definitively rejected the transfer.
	// No funds moved; the caller may retry freely.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrTransferUnknown means the outcome could not be determined (timeout
	// or ambiguous response). The transfer may have gone through; the
	// caller must treat it as requiring manual reconciliation.
	ErrTransferUnknown = errors.New("transfer outcome unknown")

	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrInvalidAddress      = errors.New("invalid address")
)

// Adapter executes outbound value transfers for one chain and validates its
// address format. Transfers are synchronous from the ledger's point of
// view; callers bound them with a context deadline.
type Adapter interface {
	// Chain returns the chain identifier (e.g. "tezos").
	Chain() string

	// ValidateAddress reports whether addr is well-formed for this chain.
	ValidateAddress(addr string) bool

	// NormalizeAddress returns the canonical casing for addr. Only called
	// on addresses that already validated.
	NormalizeAddress(addr string) string

	// TransferOut sends amount (display units) from the treasury to
	// toAddress and returns the chain transaction reference.
	TransferOut(ctx context.Context, toAddress string, amount decimal.Decimal) (string, error)
}

// Registry dispatches by the caller-supplied currency. Chain selection is
// always explicit: the legacy practice of inferring the chain from the
// address shape is ambiguous (a 64-char hex string is both an implicit
// NEAR account and a Sui address) and survives only in DetectChains as a
// non-authoritative hint for CLI output.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register binds a currency symbol to an adapter.
func (r *Registry) Register(currency string, adapter Adapter) {
	r.adapters[currency] = adapter
}

// ForCurrency returns the adapter handling the currency.
func (r *Registry) ForCurrency(currency string) (Adapter, error) {
	adapter, ok := r.adapters[currency]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
	}
	return adapter, nil
}

// Supports reports whether the currency has a registered adapter.
func (r *Registry) Supports(currency string) bool {
	_, ok := r.adapters[currency]
	return ok
}

// Currencies returns the registered currency symbols, sorted.
func (r *Registry) Currencies() []string {
	out := make([]string, 0, len(r.adapters))
	for c := range r.adapters {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// DetectChains returns every registered chain whose address format matches
// addr. Multiple matches are expected for some formats; this is a display
// hint, never an authoritative dispatch.
func (r *Registry) DetectChains(addr string) []string {
	var chains []string
	for _, currency := range r.Currencies() {
		adapter := r.adapters[currency]
		if adapter.ValidateAddress(addr) {
			chains = append(chains, adapter.Chain())
		}
	}
	return chains
}
