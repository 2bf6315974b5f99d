package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"house-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

func TestAddressValidation(t *testing.T) {
	registry := BuildRegistry(nil)

	cases := []struct {
		currency string
		addr     string
		valid    bool
	}{
		{"BNB", "0x71C7656EC7ab88b098defB751B7401B5f6d8976F", true},
		{"BNB", "0x71C7656EC7ab88b098defB751B7401B5f6d8976F00", false},
		{"BNB", "71C7656EC7ab88b098defB751B7401B5f6d8976F", false},

		{"SUI", "0x" + hex64("a"), true},
		{"SUI", "0x" + hex64("a")[:62], false},

		{"XTZ", "tz1VSUr8wwNhLAzempoch5d6hLRiTh8Cjcjb", true},
		{"XTZ", "KT1BEqzn5Wx8uJrZNvuS9DVHmLvG9td3fDLi", true},
		{"XTZ", "tz4VSUr8wwNhLAzempoch5d6hLRiTh8Cjcjb", false},

		{"SOL", "4Nd1mYvHGJKiy3GXXkoBNU5Hqt9wL8vRO", false}, // 0, O excluded from base58
		{"SOL", "4Nd1mYvHGJKiy3GXXkpBNU5Hqt9wL8vRm4z6aJcN", true},

		{"XLM", "GA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ", true},
		{"XLM", "MA7QYNF7SOWQ3GLR2BGMZEHXAVIRZA4KVWLTJJFC7MGXUA74P7UJVSGZ", false},

		{"NEAR", "alice.near", true},
		{"NEAR", "my-account.testnet", true},
		{"NEAR", hex64("b"), true}, // implicit account
		{"NEAR", "Alice.near", false},

		{"SUI", "", false},
	}

	for _, tc := range cases {
		adapter, err := registry.ForCurrency(tc.currency)
		if err != nil {
			t.Fatalf("ForCurrency(%s) failed: %v", tc.currency, err)
		}
		if got := adapter.ValidateAddress(tc.addr); got != tc.valid {
			t.Errorf("%s ValidateAddress(%q) = %v, want %v", tc.currency, tc.addr, got, tc.valid)
		}
	}
}

func hex64(c string) string {
	out := ""
	for i := 0; i < 64; i++ {
		out += c
	}
	return out
}

func TestRegistry_ExplicitDispatch(t *testing.T) {
	registry := BuildRegistry(nil)

	adapter, err := registry.ForCurrency("SUI")
	if err != nil {
		t.Fatalf("ForCurrency failed: %v", err)
	}
	if adapter.Chain() != "sui" {
		t.Errorf("Expected sui adapter, got %s", adapter.Chain())
	}

	if _, err := registry.ForCurrency("DOGE"); !errors.Is(err, ErrUnsupportedCurrency) {
		t.Errorf("Expected ErrUnsupportedCurrency, got %v", err)
	}

	if !registry.Supports("XTZ") || registry.Supports("DOGE") {
		t.Error("Supports mismatch")
	}
}

func TestRegistry_DetectChainsIsAmbiguous(t *testing.T) {
	registry := BuildRegistry(nil)

	// 64 hex chars: both a Sui address and an implicit NEAR account. The
	// hint must surface both; it is exactly why dispatch is by currency.
	hints := registry.DetectChains(hex64("c"))
	found := map[string]bool{}
	for _, h := range hints {
		found[h] = true
	}
	if !found["near"] {
		t.Errorf("Expected near in hints, got %v", hints)
	}

	hints = registry.DetectChains("0x" + hex64("c"))
	if len(hints) != 1 || hints[0] != "sui" {
		t.Errorf("Expected [sui] for 0x-prefixed 64 hex, got %v", hints)
	}
}

func TestNormalizeAddress(t *testing.T) {
	registry := BuildRegistry(nil)

	bnb, _ := registry.ForCurrency("BNB")
	if got := bnb.NormalizeAddress("0xABCdef0000000000000000000000000000000000"); got != "0xabcdef0000000000000000000000000000000000" {
		t.Errorf("BNB normalize should lowercase, got %s", got)
	}

	// base58 is case-sensitive; normalization must not touch it.
	sol, _ := registry.ForCurrency("SOL")
	addr := "4Nd1mYvHGJKiy3GXXkpBNU5Hqt9wL8vRm4z6aJcN"
	if got := sol.NormalizeAddress(addr); got != addr {
		t.Errorf("SOL normalize must be identity, got %s", got)
	}
}

func newTestTreasury(t *testing.T, handler http.HandlerFunc) *TreasuryClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewTreasuryClient(models.TreasuryConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewTreasuryClient failed: %v", err)
	}
	return client
}

func TestTreasuryTransfer_BaseUnitConversion(t *testing.T) {
	var got transferRequest
	client := newTestTreasury(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transfers" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("Unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(transferResponse{TxHash: "0xok"})
	})

	adapter := NewTezosAdapter(client)
	txHash, err := adapter.TransferOut(context.Background(), "tz1VSUr8wwNhLAzempoch5d6hLRiTh8Cjcjb", decimal.RequireFromString("1.5"))
	if err != nil {
		t.Fatalf("TransferOut failed: %v", err)
	}
	if txHash != "0xok" {
		t.Errorf("Expected tx hash 0xok, got %s", txHash)
	}

	// 1.5 XTZ = 1500000 mutez, as an integer string.
	if got.Amount != "1500000" {
		t.Errorf("Expected base units 1500000, got %s", got.Amount)
	}
	if got.Chain != "tezos" {
		t.Errorf("Expected chain tezos, got %s", got.Chain)
	}
}

func TestTreasuryTransfer_DefiniteRejection(t *testing.T) {
	client := newTestTreasury(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid destination", http.StatusBadRequest)
	})

	_, err := client.Transfer(context.Background(), "sui", "0xdead", "100")
	if !errors.Is(err, ErrTransferFailed) {
		t.Errorf("Expected ErrTransferFailed for 4xx, got %v", err)
	}
}

func TestTreasuryTransfer_ServerErrorIsUnknown(t *testing.T) {
	client := newTestTreasury(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	_, err := client.Transfer(context.Background(), "sui", "0xdead", "100")
	if !errors.Is(err, ErrTransferUnknown) {
		t.Errorf("Expected ErrTransferUnknown for 5xx, got %v", err)
	}
}

func TestTreasuryTransfer_TimeoutIsUnknown(t *testing.T) {
	client := newTestTreasury(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(transferResponse{TxHash: "0xlate"})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Transfer(ctx, "sui", "0xdead", "100")
	if !errors.Is(err, ErrTransferUnknown) {
		t.Errorf("Expected ErrTransferUnknown on timeout, got %v", err)
	}
}

func TestTreasuryTransfer_MissingHashIsFailed(t *testing.T) {
	client := newTestTreasury(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(transferResponse{Error: "no hash"})
	})

	_, err := client.Transfer(context.Background(), "sui", "0xdead", "100")
	if !errors.Is(err, ErrTransferFailed) {
		t.Errorf("Expected ErrTransferFailed for empty hash, got %v", err)
	}
}
