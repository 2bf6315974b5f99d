package database

import (
	"context"
	"testing"

	"house-ledger-go/internal/models"
	"house-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func TestGetBalance_MissingRowDefaults(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	view, err := service.GetBalance(context.Background(), "0xnobody", "SUI")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}

	if !view.Balance.Equal(decimal.Zero) {
		t.Errorf("Expected zero balance, got %s", view.Balance.String())
	}
	if view.Tier != models.TierFree {
		t.Errorf("Expected free tier, got %s", view.Tier)
	}
	if view.Status != models.StatusActive {
		t.Errorf("Expected active status, got %s", view.Status)
	}
	if view.UpdatedAt != nil {
		t.Errorf("Expected nil UpdatedAt for missing row, got %v", view.UpdatedAt)
	}
}

func TestGetAllBalances(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	deposits := map[string]int64{"SUI": 10, "XTZ": 5, "NEAR": 2}
	for currency, amount := range deposits {
		_, err := service.ApplyEntry(ctx, store.ApplyEntryParams{
			UserAddress:     "0xabc",
			Currency:        currency,
			OperationType:   models.OpDeposit,
			Amount:          decimal.NewFromInt(amount),
			TransactionHash: "tx-" + currency,
		})
		if err != nil {
			t.Fatalf("Deposit %s failed: %v", currency, err)
		}
	}

	balances, err := service.GetAllBalances(ctx, "0xabc")
	if err != nil {
		t.Fatalf("GetAllBalances failed: %v", err)
	}
	if len(balances) != 3 {
		t.Fatalf("Expected 3 balances, got %d", len(balances))
	}

	// Ordered by currency.
	for i, want := range []string{"NEAR", "SUI", "XTZ"} {
		if balances[i].Currency != want {
			t.Errorf("Expected currency %s at index %d, got %s", want, i, balances[i].Currency)
		}
		if !balances[i].Balance.Equal(decimal.NewFromInt(deposits[want])) {
			t.Errorf("Expected %s balance %d, got %s", want, deposits[want], balances[i].Balance.String())
		}
	}

	other, err := service.GetAllBalances(ctx, "0xother")
	if err != nil {
		t.Fatalf("GetAllBalances for unknown user failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected no balances for unknown user, got %d", len(other))
	}
}

func TestReconcileBalance_DetectsDrift(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	_, err := service.ApplyEntry(ctx, store.ApplyEntryParams{
		UserAddress:     "0xabc",
		Currency:        "SUI",
		OperationType:   models.OpDeposit,
		Amount:          decimal.NewFromInt(10),
		TransactionHash: "tx1",
	})
	if err != nil {
		t.Fatalf("Deposit failed: %v", err)
	}

	if err := service.ReconcileBalance(ctx, "0xabc", "SUI"); err != nil {
		t.Fatalf("ReconcileBalance should pass on a clean ledger: %v", err)
	}

	// Corrupt the balance row behind the ledger's back.
	_, err = service.db.Exec(`UPDATE user_balances SET balance = '999' WHERE user_address = '0xabc' AND currency = 'SUI'`)
	if err != nil {
		t.Fatalf("Failed to corrupt balance: %v", err)
	}

	if err := service.ReconcileBalance(ctx, "0xabc", "SUI"); err == nil {
		t.Fatal("Expected drift error, got nil")
	}
}

func TestReconcileBalance_FractionalAmounts(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	// Amounts chosen to break float arithmetic if it were used anywhere.
	amounts := []string{"0.1", "0.2", "0.00000001"}
	for i, a := range amounts {
		amount, _ := decimal.NewFromString(a)
		_, err := service.ApplyEntry(ctx, store.ApplyEntryParams{
			UserAddress:     "0xabc",
			Currency:        "SUI",
			OperationType:   models.OpDeposit,
			Amount:          amount,
			TransactionHash: "tx" + string(rune('a'+i)),
		})
		if err != nil {
			t.Fatalf("Deposit %s failed: %v", a, err)
		}
	}

	view, err := service.GetBalance(ctx, "0xabc", "SUI")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	expected, _ := decimal.NewFromString("0.30000001")
	if !view.Balance.Equal(expected) {
		t.Errorf("Expected exact balance %s, got %s", expected.String(), view.Balance.String())
	}

	if err := service.ReconcileBalance(ctx, "0xabc", "SUI"); err != nil {
		t.Errorf("ReconcileBalance failed: %v", err)
	}
}
