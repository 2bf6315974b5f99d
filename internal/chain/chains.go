package chain

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Address format rules per chain. A 64-char hex string deliberately
// matches both NEAR (implicit account) and Sui; dispatch is by currency,
// never by format.
var (
	evmAddressRe     = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	suiAddressRe     = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	tezosAddressRe   = regexp.MustCompile(`^(tz1|tz2|tz3|KT1)[a-zA-Z0-9]{33}$`)
	solanaAddressRe  = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
	stellarAddressRe = regexp.MustCompile(`^G[A-Z2-7]{55}$`)
	nearNamedRe      = regexp.MustCompile(`^([a-z0-9]+[-_])*[a-z0-9]+\.(near|testnet)$`)
	nearImplicitRe   = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
)

// nativeAdapter implements Adapter for a chain's native token, delegating
// the actual signing and broadcast to the treasury signer service.
type nativeAdapter struct {
	chain     string
	decimals  int32 // display unit -> base unit shift (XTZ: 6 for mutez)
	validate  func(addr string) bool
	normalize func(addr string) string
	treasury  *TreasuryClient
}

func (a *nativeAdapter) Chain() string { return a.chain }

func (a *nativeAdapter) ValidateAddress(addr string) bool {
	if addr == "" {
		return false
	}
	return a.validate(addr)
}

func (a *nativeAdapter) NormalizeAddress(addr string) string {
	if a.normalize == nil {
		return addr
	}
	return a.normalize(addr)
}

func (a *nativeAdapter) TransferOut(ctx context.Context, toAddress string, amount decimal.Decimal) (string, error) {
	// Convert to base units as an integer to avoid float precision issues
	// (mutez/lamports/wei on the wire, never display units).
	baseUnits := amount.Shift(a.decimals).Round(0).String()
	return a.treasury.Transfer(ctx, a.chain, toAddress, baseUnits)
}

func identity(addr string) string { return addr }

// NewBNBAdapter handles BNB Smart Chain (EVM hex addresses, 18 decimals).
func NewBNBAdapter(treasury *TreasuryClient) Adapter {
	return &nativeAdapter{
		chain:     "bnb",
		decimals:  18,
		validate:  evmAddressRe.MatchString,
		normalize: strings.ToLower,
		treasury:  treasury,
	}
}

// NewSolanaAdapter handles Solana (base58 addresses, lamports).
func NewSolanaAdapter(treasury *TreasuryClient) Adapter {
	return &nativeAdapter{
		chain:     "solana",
		decimals:  9,
		validate:  solanaAddressRe.MatchString,
		normalize: identity, // base58 is case-sensitive
		treasury:  treasury,
	}
}

// NewSuiAdapter handles Sui (0x + 64 hex, MIST).
func NewSuiAdapter(treasury *TreasuryClient) Adapter {
	return &nativeAdapter{
		chain:     "sui",
		decimals:  9,
		validate:  suiAddressRe.MatchString,
		normalize: strings.ToLower,
		treasury:  treasury,
	}
}

// NewTezosAdapter handles Tezos (tz1/tz2/tz3/KT1, mutez).
func NewTezosAdapter(treasury *TreasuryClient) Adapter {
	return &nativeAdapter{
		chain:     "tezos",
		decimals:  6,
		validate:  tezosAddressRe.MatchString,
		normalize: identity, // base58check is case-sensitive
		treasury:  treasury,
	}
}

// NewNearAdapter handles NEAR (named accounts or implicit 64-hex, yocto).
func NewNearAdapter(treasury *TreasuryClient) Adapter {
	return &nativeAdapter{
		chain:    "near",
		decimals: 24,
		validate: func(addr string) bool {
			return nearNamedRe.MatchString(addr) || nearImplicitRe.MatchString(addr)
		},
		normalize: strings.ToLower,
		treasury:  treasury,
	}
}

// NewStellarAdapter handles Stellar (G + base32, stroops).
func NewStellarAdapter(treasury *TreasuryClient) Adapter {
	return &nativeAdapter{
		chain:     "stellar",
		decimals:  7,
		validate:  stellarAddressRe.MatchString,
		normalize: identity,
		treasury:  treasury,
	}
}

// BuildRegistry wires the default currency -> adapter mapping.
func BuildRegistry(treasury *TreasuryClient) *Registry {
	r := NewRegistry()
	r.Register("BNB", NewBNBAdapter(treasury))
	r.Register("SOL", NewSolanaAdapter(treasury))
	r.Register("SUI", NewSuiAdapter(treasury))
	r.Register("XTZ", NewTezosAdapter(treasury))
	r.Register("NEAR", NewNearAdapter(treasury))
	r.Register("XLM", NewStellarAdapter(treasury))
	return r
}
