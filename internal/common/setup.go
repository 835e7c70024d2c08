package common

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"delayed-pool-go/internal/config"
	"delayed-pool-go/internal/database"
	"delayed-pool-go/internal/formance"
	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/pool"
	"delayed-pool-go/internal/prime"
	"delayed-pool-go/internal/transfer"

	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Try to load .env file - if it doesn't exist, that's okay
	// Environment variables can be set via other means (shell export, docker, etc.)
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService    *database.Service
	Pool         *pool.Service
	PrimeService *prime.Service
	Portfolio    *models.Portfolio
	Formance     *formance.Service
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

// InitializeServices opens the database, wires the configured transfer
// backend and history mirror into the pool, and bootstraps parameters from
// the parameters file when the pool has none yet.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	services := &Services{DbService: dbService}

	var transferor pool.Transferor
	switch cfg.Transfer.Backend {
	case config.TransferBackendPrime:
		transferor, err = services.initializePrime(ctx, cfg)
		if err != nil {
			services.Close()
			return nil, err
		}
	default:
		zap.L().Warn("Using dry-run transfer backend; payouts are not sent anywhere")
		transferor = transfer.NewDryRun()
	}

	opts := []pool.Option{}
	if cfg.Transfer.EmergencyRecipient != "" {
		opts = append(opts, pool.WithEmergencyRecipient(cfg.Transfer.EmergencyRecipient))
	}
	if cfg.Formance.Enabled() {
		fSvc, err := formance.NewService(ctx, cfg.Formance, cfg.Asset)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.Formance = fSvc
		opts = append(opts, pool.WithHistorySink(fSvc))
	}

	poolService, err := pool.NewService(dbService, transferor, opts...)
	if err != nil {
		services.Close()
		return nil, err
	}
	services.Pool = poolService

	if err := BootstrapParameters(ctx, poolService, cfg.Parameters.File); err != nil {
		services.Close()
		return nil, err
	}

	return services, nil
}

func (cs *Services) initializePrime(ctx context.Context, cfg *models.Config) (pool.Transferor, error) {
	zap.L().Info("Loading Prime API credentials")
	creds, err := loadPrimeCredentials()
	if err != nil {
		return nil, err
	}

	primeService, err := prime.NewService(creds)
	if err != nil {
		return nil, err
	}
	cs.PrimeService = primeService

	if cfg.Transfer.PortfolioId != "" {
		cs.Portfolio = &models.Portfolio{Id: cfg.Transfer.PortfolioId}
	} else {
		zap.L().Info("Finding default portfolio")
		cs.Portfolio, err = primeService.FindDefaultPortfolio(ctx)
		if err != nil {
			return nil, err
		}
	}
	zap.L().Info("Using portfolio",
		zap.String("name", cs.Portfolio.Name),
		zap.String("id", cs.Portfolio.Id))

	if cfg.Transfer.WalletId == "" {
		return nil, fmt.Errorf("PRIME_WALLET_ID is required for the prime transfer backend (run setup to find or create one)")
	}

	return prime.NewTransferor(primeService, cs.Portfolio.Id, cfg.Transfer.WalletId, cfg.Asset)
}

// InitializeDatabaseOnly initializes just the database service without Prime API
// Useful for read-only operations like the status report
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
}

// LoadPrimeService builds a Prime client from the environment credentials
func LoadPrimeService() (*prime.Service, error) {
	creds, err := loadPrimeCredentials()
	if err != nil {
		return nil, err
	}
	return prime.NewService(creds)
}

func loadPrimeCredentials() (*credentials.Credentials, error) {
	accessKey := os.Getenv("PRIME_ACCESS_KEY")
	passphrase := os.Getenv("PRIME_PASSPHRASE")
	signingKey := os.Getenv("PRIME_SIGNING_KEY")

	if accessKey == "" || passphrase == "" || signingKey == "" {
		return nil, fmt.Errorf("missing required Prime API credentials: PRIME_ACCESS_KEY, PRIME_PASSPHRASE, PRIME_SIGNING_KEY")
	}

	return &credentials.Credentials{
		AccessKey:  accessKey,
		Passphrase: passphrase,
		SigningKey: signingKey,
	}, nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
