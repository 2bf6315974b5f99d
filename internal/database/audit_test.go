package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"house-ledger-go/internal/models"
	"house-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func seedEntries(t *testing.T, service *Service, params []store.ApplyEntryParams) {
	t.Helper()
	ctx := context.Background()
	for _, p := range params {
		if _, err := service.ApplyEntry(ctx, p); err != nil {
			t.Fatalf("Seed ApplyEntry(%s %s) failed: %v", p.OperationType, p.Amount.String(), err)
		}
	}
}

func TestGetAuditHistory_Paging(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	var seeds []store.ApplyEntryParams
	for i := 0; i < 5; i++ {
		seeds = append(seeds, store.ApplyEntryParams{
			UserAddress:     "0xabc",
			Currency:        "SUI",
			OperationType:   models.OpDeposit,
			Amount:          decimal.NewFromInt(int64(i + 1)),
			TransactionHash: fmt.Sprintf("tx%d", i),
		})
	}
	seedEntries(t, service, seeds)

	ctx := context.Background()

	page1, err := service.GetAuditHistory(ctx, "0xabc", "SUI", 2, 0)
	if err != nil {
		t.Fatalf("GetAuditHistory failed: %v", err)
	}
	if len(page1) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(page1))
	}
	// Newest first: the last seeded deposit (amount 5) leads.
	if !page1[0].Amount.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected newest amount 5 first, got %s", page1[0].Amount.String())
	}

	page3, err := service.GetAuditHistory(ctx, "0xabc", "SUI", 2, 4)
	if err != nil {
		t.Fatalf("GetAuditHistory page 3 failed: %v", err)
	}
	if len(page3) != 1 {
		t.Fatalf("Expected 1 entry on last page, got %d", len(page3))
	}
	if !page3[0].Amount.Equal(decimal.NewFromInt(1)) {
		t.Errorf("Expected oldest amount 1 last, got %s", page3[0].Amount.String())
	}
}

func TestHasAuditEntryForTx(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	seedEntries(t, service, []store.ApplyEntryParams{
		{UserAddress: "0xabc", Currency: "SUI", OperationType: models.OpDeposit,
			Amount: decimal.NewFromInt(1), TransactionHash: "tx1"},
	})

	ctx := context.Background()

	found, err := service.HasAuditEntryForTx(ctx, "SUI", "tx1")
	if err != nil {
		t.Fatalf("HasAuditEntryForTx failed: %v", err)
	}
	if !found {
		t.Error("Expected tx1 to be found")
	}

	found, err = service.HasAuditEntryForTx(ctx, "SUI", "tx-missing")
	if err != nil {
		t.Fatalf("HasAuditEntryForTx failed: %v", err)
	}
	if found {
		t.Error("Expected tx-missing to be absent")
	}

	// Scoped by currency.
	found, err = service.HasAuditEntryForTx(ctx, "XTZ", "tx1")
	if err != nil {
		t.Fatalf("HasAuditEntryForTx failed: %v", err)
	}
	if found {
		t.Error("tx1 should not be found under another currency")
	}
}

func TestGetTransactionFeed(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	seedEntries(t, service, []store.ApplyEntryParams{
		{UserAddress: "0xabc", Currency: "SUI", OperationType: models.OpDeposit,
			Amount: decimal.NewFromInt(100), TransactionHash: "tx1"},
		{UserAddress: "0xabc", Currency: "SUI", OperationType: models.OpBetPlaced,
			Amount: decimal.NewFromInt(10), BetId: "b1"},
		{UserAddress: "0xabc", Currency: "SUI", OperationType: models.OpWithdrawal,
			Amount: decimal.NewFromInt(20), TransactionHash: "tx2"},
	})

	ctx := context.Background()
	since := time.Now().UTC().Add(-time.Hour)

	feed, err := service.GetTransactionFeed(ctx,
		[]models.OperationType{models.OpDeposit, models.OpWithdrawal}, since, 10)
	if err != nil {
		t.Fatalf("GetTransactionFeed failed: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("Expected 2 feed entries, got %d", len(feed))
	}
	for _, e := range feed {
		if e.OperationType == models.OpBetPlaced {
			t.Errorf("bet_placed must not appear in the deposit/withdrawal feed")
		}
	}
	// Newest first.
	if feed[0].OperationType != models.OpWithdrawal {
		t.Errorf("Expected withdrawal first, got %s", feed[0].OperationType)
	}

	if _, err := service.GetTransactionFeed(ctx, nil, since, 10); err == nil {
		t.Error("Expected error for empty operation type list")
	}
}

func TestGetMostRecentAuditTime(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	// Empty ledger falls back to a two-hour recovery window.
	ts, err := service.GetMostRecentAuditTime(ctx)
	if err != nil {
		t.Fatalf("GetMostRecentAuditTime failed: %v", err)
	}
	age := time.Since(ts)
	if age < time.Hour+55*time.Minute || age > 2*time.Hour+5*time.Minute {
		t.Errorf("Expected fallback ~2h ago, got %v ago", age)
	}

	seedEntries(t, service, []store.ApplyEntryParams{
		{UserAddress: "0xabc", Currency: "SUI", OperationType: models.OpDeposit,
			Amount: decimal.NewFromInt(1), TransactionHash: "tx1"},
	})

	ts, err = service.GetMostRecentAuditTime(ctx)
	if err != nil {
		t.Fatalf("GetMostRecentAuditTime failed: %v", err)
	}
	if time.Since(ts) > time.Minute {
		t.Errorf("Expected recent timestamp, got %v", ts)
	}
}

func TestGetCurrencyTotals(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	seedEntries(t, service, []store.ApplyEntryParams{
		{UserAddress: "0xa", Currency: "SUI", OperationType: models.OpDeposit,
			Amount: decimal.RequireFromString("1.5"), TransactionHash: "t1"},
		{UserAddress: "0xb", Currency: "SUI", OperationType: models.OpDeposit,
			Amount: decimal.RequireFromString("2.5"), TransactionHash: "t2"},
		{UserAddress: "0xa", Currency: "XTZ", OperationType: models.OpDeposit,
			Amount: decimal.NewFromInt(7), TransactionHash: "t3"},
	})

	totals, err := service.GetCurrencyTotals(context.Background())
	if err != nil {
		t.Fatalf("GetCurrencyTotals failed: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("Expected 2 currencies, got %d", len(totals))
	}

	byCurrency := map[string]models.CurrencyTotal{}
	for _, tot := range totals {
		byCurrency[tot.Currency] = tot
	}

	sui := byCurrency["SUI"]
	if !sui.TotalBalance.Equal(decimal.NewFromInt(4)) {
		t.Errorf("Expected SUI total 4, got %s", sui.TotalBalance.String())
	}
	if sui.UserCount != 2 {
		t.Errorf("Expected 2 SUI holders, got %d", sui.UserCount)
	}

	xtz := byCurrency["XTZ"]
	if !xtz.TotalBalance.Equal(decimal.NewFromInt(7)) {
		t.Errorf("Expected XTZ total 7, got %s", xtz.TotalBalance.String())
	}
	if xtz.UserCount != 1 {
		t.Errorf("Expected 1 XTZ holder, got %d", xtz.UserCount)
	}
}

func TestGetWinStreaks(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	// 0xa: won, won, lost, won -> best streak 2.
	// 0xb: won x3 -> best streak 3.
	seedEntries(t, service, []store.ApplyEntryParams{
		{UserAddress: "0xa", Currency: "SUI", OperationType: models.OpDeposit,
			Amount: decimal.NewFromInt(100), TransactionHash: "d1"},
		{UserAddress: "0xb", Currency: "SUI", OperationType: models.OpDeposit,
			Amount: decimal.NewFromInt(100), TransactionHash: "d2"},

		{UserAddress: "0xa", Currency: "SUI", OperationType: models.OpBetWon, Amount: decimal.NewFromInt(1), BetId: "a1"},
		{UserAddress: "0xa", Currency: "SUI", OperationType: models.OpBetWon, Amount: decimal.NewFromInt(1), BetId: "a2"},
		{UserAddress: "0xa", Currency: "SUI", OperationType: models.OpBetLost, Amount: decimal.Zero, BetId: "a3"},
		{UserAddress: "0xa", Currency: "SUI", OperationType: models.OpBetWon, Amount: decimal.NewFromInt(1), BetId: "a4"},

		{UserAddress: "0xb", Currency: "SUI", OperationType: models.OpBetWon, Amount: decimal.NewFromInt(1), BetId: "b1"},
		{UserAddress: "0xb", Currency: "SUI", OperationType: models.OpBetWon, Amount: decimal.NewFromInt(1), BetId: "b2"},
		{UserAddress: "0xb", Currency: "SUI", OperationType: models.OpBetWon, Amount: decimal.NewFromInt(1), BetId: "b3"},
	})

	streaks, err := service.GetWinStreaks(ctx, 3)
	if err != nil {
		t.Fatalf("GetWinStreaks failed: %v", err)
	}
	if len(streaks) != 1 {
		t.Fatalf("Expected 1 streak >= 3, got %d", len(streaks))
	}
	if streaks[0].UserAddress != "0xb" || streaks[0].Streak != 3 {
		t.Errorf("Expected 0xb streak 3, got %s streak %d", streaks[0].UserAddress, streaks[0].Streak)
	}

	streaks, err = service.GetWinStreaks(ctx, 2)
	if err != nil {
		t.Fatalf("GetWinStreaks failed: %v", err)
	}
	if len(streaks) != 2 {
		t.Errorf("Expected 2 streaks >= 2, got %d", len(streaks))
	}
}
