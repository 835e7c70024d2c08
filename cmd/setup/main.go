package main

import (
	"context"
	"flag"
	"fmt"

	"delayed-pool-go/internal/common"
	"delayed-pool-go/internal/config"
	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/pool"
	"delayed-pool-go/internal/prime"
	"delayed-pool-go/internal/transfer"

	"go.uber.org/zap"
)

// getOrCreateWallet retrieves an existing trading wallet or creates a new one
func getOrCreateWallet(ctx context.Context, primeService *prime.Service, portfolioId, assetSymbol string) (*models.Wallet, error) {
	zap.L().Debug("Listing wallets for asset", zap.String("asset", assetSymbol))
	wallets, err := primeService.ListWallets(ctx, portfolioId, "TRADING", []string{assetSymbol})
	if err != nil {
		zap.L().Error("Error listing wallets",
			zap.String("asset", assetSymbol),
			zap.Error(err))
		return nil, err
	}

	if len(wallets) > 0 {
		wallet := &wallets[0]
		zap.L().Info("Using existing wallet",
			zap.String("asset", assetSymbol),
			zap.String("wallet_name", wallet.Name),
			zap.String("wallet_id", wallet.Id))
		return wallet, nil
	}

	walletName := fmt.Sprintf("%s Pool Payout Wallet", assetSymbol)
	zap.L().Info("Creating new wallet",
		zap.String("asset", assetSymbol),
		zap.String("wallet_name", walletName))

	wallet, err := primeService.CreateWallet(ctx, portfolioId, walletName, assetSymbol, "TRADING")
	if err != nil {
		zap.L().Error("Error creating wallet",
			zap.String("asset", assetSymbol),
			zap.Error(err))
		return nil, err
	}

	zap.L().Info("Created new wallet",
		zap.String("asset", assetSymbol),
		zap.String("wallet_name", wallet.Name),
		zap.String("wallet_id", wallet.Id))
	return wallet, nil
}

// setupPayoutWallet resolves the portfolio and payout wallet the prime
// transfer backend sends from
func setupPayoutWallet(ctx context.Context, cfg *models.Config) error {
	primeService, err := common.LoadPrimeService()
	if err != nil {
		return err
	}

	portfolioId := cfg.Transfer.PortfolioId
	if portfolioId == "" {
		portfolio, err := primeService.FindDefaultPortfolio(ctx)
		if err != nil {
			return err
		}
		portfolioId = portfolio.Id
	}

	wallet, err := getOrCreateWallet(ctx, primeService, portfolioId, cfg.Asset.Symbol)
	if err != nil {
		return err
	}

	fmt.Println("\nAdd these to your environment to use the prime transfer backend:")
	fmt.Printf("  TRANSFER_BACKEND=%s\n", config.TransferBackendPrime)
	fmt.Printf("  PRIME_PORTFOLIO_ID=%s\n", portfolioId)
	fmt.Printf("  PRIME_WALLET_ID=%s\n\n", wallet.Id)
	return nil
}

func main() {
	primeWallet := flag.Bool("prime-wallet", false, "Find or create the Prime payout wallet for the configured asset")
	flag.Parse()

	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Initializing database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	// Setup never moves value, so payouts go nowhere.
	poolService, err := pool.NewService(dbService, transfer.NewDryRun())
	if err != nil {
		zap.L().Fatal("Failed to create pool service", zap.Error(err))
	}

	params, err := common.LoadParameters(cfg.Parameters.File)
	if err != nil {
		zap.L().Fatal("Failed to load parameters", zap.Error(err))
	}

	created, err := poolService.InitializeParameters(ctx, params)
	if err != nil {
		zap.L().Fatal("Failed to initialize parameters", zap.Error(err))
	}
	if created {
		zap.L().Info("Pool parameters stored", zap.String("file", cfg.Parameters.File))
	} else {
		zap.L().Info("Pool parameters already initialized; file ignored",
			zap.String("file", cfg.Parameters.File))
	}

	if *primeWallet {
		if err := setupPayoutWallet(ctx, cfg); err != nil {
			zap.L().Fatal("Failed to set up Prime payout wallet", zap.Error(err))
		}
	}

	zap.L().Info("Setup completed")
}
