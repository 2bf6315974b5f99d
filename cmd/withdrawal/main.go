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

	"house-ledger-go/internal/common"
	"house-ledger-go/internal/config"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type withdrawalRequest struct {
	address  string
	currency string
	amount   decimal.Decimal
}

func parseAndValidateFlags() (*withdrawalRequest, error) {
	addressFlag := flag.String("address", "", "User wallet address (required)")
	currencyFlag := flag.String("currency", "", "Currency symbol (e.g., SUI, XTZ) (required)")
	amountFlag := flag.String("amount", "", "Amount to withdraw, pre-fee (required)")
	flag.Parse()

	if *addressFlag == "" || *currencyFlag == "" || *amountFlag == "" {
		return nil, fmt.Errorf("all flags are required: --address, --currency, --amount")
	}

	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("amount must be greater than zero")
	}

	return &withdrawalRequest{
		address:  *addressFlag,
		currency: *currencyFlag,
		amount:   amount,
	}, nil
}

func main() {
	req, err := parseAndValidateFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
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

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	fee := req.amount.Mul(cfg.Ledger.WithdrawalFeeRate)
	net := req.amount.Sub(fee)

	common.PrintHeader("WITHDRAWAL", common.DefaultWidth)
	fmt.Printf("Address:   %s\n", req.address)
	fmt.Printf("Currency:  %s\n", req.currency)
	fmt.Printf("Amount:    %s (fee %s, net on-chain %s)\n",
		req.amount.String(), fee.String(), net.String())
	common.PrintSeparator("-", common.DefaultWidth)

	result, err := services.LedgerService.Withdraw(ctx, req.address, req.currency, req.amount)
	if err != nil {
		zap.L().Fatal("Withdrawal error", zap.Error(err))
	}

	if result.ReconcileRequired {
		fmt.Printf("⚠ RECONCILE REQUIRED: %s\n", result.Error)
		if result.TxHash != "" {
			fmt.Printf("  Chain tx: %s\n", result.TxHash)
		}
		common.PrintFooter("Withdrawal flagged for manual reconciliation", common.DefaultWidth)
		os.Exit(2)
	}

	if !result.Success {
		fmt.Printf("✗ Withdrawal rejected: %s\n", result.Error)
		common.PrintFooter("Withdrawal failed", common.DefaultWidth)
		os.Exit(1)
	}

	fmt.Printf("✓ Withdrawal complete\n")
	fmt.Printf("  Chain tx:    %s\n", result.TxHash)
	fmt.Printf("  New balance: %s %s\n", result.NewBalance.String(), req.currency)
	common.PrintFooter("Withdrawal successful", common.DefaultWidth)
}
