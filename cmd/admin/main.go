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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"house-ledger-go/internal/common"
	"house-ledger-go/internal/config"
	"house-ledger-go/internal/database"
	"house-ledger-go/internal/models"

	"go.uber.org/zap"
)

func main() {
	actionFlag := flag.String("action", "", "One of: set-status, stats, streaks, feed, reconcile (required)")
	addressFlag := flag.String("address", "", "User wallet address (set-status, reconcile)")
	currencyFlag := flag.String("currency", "", "Currency symbol (set-status, reconcile)")
	statusFlag := flag.String("status", "", "New account status: active, frozen, banned (set-status)")
	minStreakFlag := flag.Int("min-streak", 3, "Minimum win streak to report (streaks)")
	sinceFlag := flag.Duration("since", 24*time.Hour, "Lookback window for the transaction feed (feed)")
	limitFlag := flag.Int("limit", 50, "Maximum feed entries (feed)")
	flag.Parse()

	if *actionFlag == "" {
		fmt.Fprintln(os.Stderr, "Error: --action is required")
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx := context.Background()

	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	switch *actionFlag {
	case "set-status":
		runSetStatus(ctx, dbService, *addressFlag, *currencyFlag, *statusFlag)
	case "stats":
		runStats(ctx, dbService)
	case "streaks":
		runStreaks(ctx, dbService, *minStreakFlag)
	case "feed":
		runFeed(ctx, dbService, *sinceFlag, *limitFlag)
	case "reconcile":
		runReconcile(ctx, dbService, *addressFlag, *currencyFlag)
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown action %q\n", *actionFlag)
		flag.Usage()
		os.Exit(1)
	}
}

func runSetStatus(ctx context.Context, dbService *database.Service, address, currency, status string) {
	if address == "" || currency == "" || status == "" {
		fmt.Fprintln(os.Stderr, "Error: set-status requires --address, --currency and --status")
		os.Exit(1)
	}

	newStatus := models.AccountStatus(status)
	if !newStatus.Valid() {
		fmt.Fprintf(os.Stderr, "Error: invalid status %q (active, frozen, banned)\n", status)
		os.Exit(1)
	}

	if err := dbService.SetAccountStatus(ctx, address, currency, newStatus); err != nil {
		zap.L().Fatal("Failed to set account status", zap.Error(err))
	}

	fmt.Printf("✓ %s/%s status set to %s\n", address, currency, newStatus)
}

func runStats(ctx context.Context, dbService *database.Service) {
	totals, err := dbService.GetCurrencyTotals(ctx)
	if err != nil {
		zap.L().Fatal("Failed to query currency totals", zap.Error(err))
	}

	common.PrintHeader("HOUSE LIABILITY BY CURRENCY", common.DefaultWidth)
	if len(totals) == 0 {
		fmt.Println("No balances recorded")
	}
	for i, t := range totals {
		fmt.Printf("%s%-6s %24s  (%d holders)\n",
			common.BoxPrefix(i == len(totals)-1), t.Currency, t.TotalBalance.String(), t.UserCount)
	}
	common.PrintFooter("Done", common.DefaultWidth)
}

func runStreaks(ctx context.Context, dbService *database.Service, minStreak int) {
	streaks, err := dbService.GetWinStreaks(ctx, minStreak)
	if err != nil {
		zap.L().Fatal("Failed to query win streaks", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("WIN STREAKS >= %d", minStreak), common.DefaultWidth)
	if len(streaks) == 0 {
		fmt.Println("No qualifying streaks")
	}
	for i, s := range streaks {
		fmt.Printf("%s%-46s %-6s streak=%d\n",
			common.BoxPrefix(i == len(streaks)-1), s.UserAddress, s.Currency, s.Streak)
	}
	common.PrintFooter("Done", common.DefaultWidth)
}

func runFeed(ctx context.Context, dbService *database.Service, since time.Duration, limit int) {
	entries, err := dbService.GetTransactionFeed(ctx,
		[]models.OperationType{models.OpDeposit, models.OpWithdrawal},
		time.Now().UTC().Add(-since), limit)
	if err != nil {
		zap.L().Fatal("Failed to query transaction feed", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("ON-CHAIN ACTIVITY, LAST %s", since), common.DefaultWidth)
	if len(entries) == 0 {
		fmt.Println("No activity in window")
	}
	for i, e := range entries {
		last := i == len(entries)-1
		fmt.Printf("%s%-11s %-6s %18s  %s\n",
			common.BoxPrefix(last), e.OperationType, e.Currency, e.Amount.String(), e.UserAddress)
		fmt.Printf("%s%s  tx=%s\n",
			common.BoxDetailPrefix(last), e.CreatedAt.Format("2006-01-02 15:04:05"), e.TransactionHash)
	}
	common.PrintFooter("Done", common.DefaultWidth)
}

func runReconcile(ctx context.Context, dbService *database.Service, address, currency string) {
	if address == "" || currency == "" {
		fmt.Fprintln(os.Stderr, "Error: reconcile requires --address and --currency")
		os.Exit(1)
	}

	if err := dbService.ReconcileBalance(ctx, address, currency); err != nil {
		fmt.Printf("✗ DRIFT DETECTED: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("✓ %s/%s balance matches its audit trail\n", address, currency)
}
