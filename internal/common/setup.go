package common

import (
	"context"
	"log"
	"strings"

	"house-ledger-go/internal/cache"
	"house-ledger-go/internal/chain"
	"house-ledger-go/internal/database"
	"house-ledger-go/internal/ledger"
	"house-ledger-go/internal/models"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService     *database.Service
	Registry      *chain.Registry
	LedgerService *ledger.Service
	TxCache       *cache.ProcessedTxCache
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Connecting to treasury signer", zap.String("base_url", cfg.Treasury.BaseURL))
	treasury, err := chain.NewTreasuryClient(cfg.Treasury)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	registry := chain.BuildRegistry(treasury)

	txCache, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	return &Services{
		DbService:     dbService,
		Registry:      registry,
		LedgerService: ledger.NewService(dbService, registry, cfg.Ledger),
		TxCache:       txCache,
	}, nil
}

// InitializeDatabaseOnly initializes just the database service without the
// treasury signer. Useful for read-only operations like querying balances.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
	if cs.TxCache != nil {
		cs.TxCache.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
