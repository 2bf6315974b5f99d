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
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"house-ledger-go/internal/common"
	"house-ledger-go/internal/config"
	"house-ledger-go/internal/listener"
	"house-ledger-go/internal/metrics"

	"go.uber.org/zap"
)

func main() {
	chainsFlag := flag.String("chains", "", "Optional path to chains.yaml (default: CHAINS_FILE env or chains.yaml)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting chain event listener")

	chainsFile := cfg.Listener.ChainsFile
	if *chainsFlag != "" {
		chainsFile = *chainsFlag
	}

	streams, err := common.LoadChainStreams(chainsFile)
	if err != nil {
		zap.L().Fatal("Failed to load chain manifest", zap.Error(err))
	}
	if len(streams) == 0 {
		zap.L().Fatal("Chain manifest contains no streams", zap.String("file", chainsFile))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	for _, s := range streams {
		if !services.Registry.Supports(s.Currency) {
			zap.L().Fatal("Chain manifest references unsupported currency",
				zap.String("currency", s.Currency))
		}
	}

	metricsSrv := metrics.StartServer(cfg.Metrics.Port, services.DbService.Ping)
	zap.L().Info("Metrics server listening", zap.String("port", cfg.Metrics.Port))

	l := listener.NewChainListener(listener.Config{
		LedgerService: services.LedgerService,
		DbService:     services.DbService,
		TxCache:       services.TxCache,
		Streams:       streams,
		Settings:      cfg.Listener,
	})

	runErr := make(chan error, 1)
	go func() {
		runErr <- l.Run(ctx)
	}()

	zap.L().Info("Listener running",
		zap.Int("streams", len(streams)))
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zap.L().Info("Shutdown signal received, stopping listener...")
		cancel()
		select {
		case <-runErr:
		case <-time.After(30 * time.Second):
			zap.L().Warn("Forced shutdown after timeout")
		}
	case err := <-runErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			zap.L().Error("Listener halted", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Metrics server shutdown failed", zap.Error(err))
	}

	zap.L().Info("Listener stopped")
}
