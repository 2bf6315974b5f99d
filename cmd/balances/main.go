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
	"strings"

	"house-ledger-go/internal/chain"
	"house-ledger-go/internal/common"
	"house-ledger-go/internal/config"
	"house-ledger-go/internal/database"

	"go.uber.org/zap"
)

func main() {
	addressFlag := flag.String("address", "", "User wallet address (required)")
	currencyFlag := flag.String("currency", "", "Optional currency to show history for")
	historyFlag := flag.Int("history", 10, "Number of history entries to show (with --currency)")
	flag.Parse()

	if *addressFlag == "" {
		fmt.Fprintln(os.Stderr, "Error: --address is required")
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

	// No treasury needed for reads; the registry only supplies address
	// validation and the chain-format hint here.
	registry := chain.BuildRegistry(nil)

	common.PrintHeader("HOUSE LEDGER BALANCES", common.DefaultWidth)
	fmt.Printf("Address: %s\n", *addressFlag)
	if hints := registry.DetectChains(*addressFlag); len(hints) > 0 {
		fmt.Printf("Format matches: %s (hint only; dispatch is by currency)\n", strings.Join(hints, ", "))
	}
	common.PrintSeparator("-", common.DefaultWidth)

	balances, err := dbService.GetAllBalances(ctx, *addressFlag)
	if err != nil {
		zap.L().Fatal("Failed to query balances", zap.Error(err))
	}

	if len(balances) == 0 {
		fmt.Println("No balances found for this address")
	}
	for i, b := range balances {
		prefix := common.BoxPrefix(i == len(balances)-1)
		fmt.Printf("%s%-6s %20s  tier=%s status=%s\n",
			prefix, b.Currency, b.Balance.String(), b.Tier, b.Status)
	}

	if *currencyFlag != "" {
		printHistory(ctx, dbService, *addressFlag, *currencyFlag, *historyFlag)
	}

	common.PrintFooter("Done", common.DefaultWidth)
}

func printHistory(ctx context.Context, dbService *database.Service, address, currency string, limit int) {
	entries, err := dbService.GetAuditHistory(ctx, address, currency, limit, 0)
	if err != nil {
		zap.L().Fatal("Failed to query audit history", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("RECENT %s HISTORY", currency), common.DefaultWidth)
	if len(entries) == 0 {
		fmt.Println("No history")
		return
	}

	for i, e := range entries {
		last := i == len(entries)-1
		fmt.Printf("%s%-11s %15s  %s -> %s\n",
			common.BoxPrefix(last), e.OperationType, e.Amount.String(),
			e.BalanceBefore.String(), e.BalanceAfter.String())
		detail := e.CreatedAt.Format("2006-01-02 15:04:05")
		if e.TransactionHash != "" {
			detail += "  tx=" + e.TransactionHash
		}
		if e.BetId != "" {
			detail += "  bet=" + e.BetId
		}
		fmt.Printf("%s%s\n", common.BoxDetailPrefix(last), detail)
	}
}
