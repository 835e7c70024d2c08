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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"delayed-pool-go/internal/models"
)

// Transfer backends
const (
	TransferBackendDryRun = "dryrun"
	TransferBackendPrime  = "prime"
)

func Load() (*models.Config, error) {
	cfg := &models.Config{}

	durations := []struct {
		key          string
		defaultValue time.Duration
		dst          *time.Duration
	}{
		{"DB_CONN_MAX_LIFETIME", 5 * time.Minute, &cfg.Database.ConnMaxLifetime},
		{"DB_CONN_MAX_IDLE_TIME", 30 * time.Second, &cfg.Database.ConnMaxIdleTime},
		{"DB_PING_TIMEOUT", 5 * time.Second, &cfg.Database.PingTimeout},
		{"KEEPER_POLLING_INTERVAL", 15 * time.Second, &cfg.Keeper.PollingInterval},
		{"KEEPER_LOCK_TTL", time.Minute, &cfg.Keeper.LockTTL},
		{"LISTENER_LOOKBACK_WINDOW", 6 * time.Hour, &cfg.Listener.LookbackWindow},
		{"LISTENER_POLLING_INTERVAL", 30 * time.Second, &cfg.Listener.PollingInterval},
		{"LISTENER_CLEANUP_INTERVAL", 15 * time.Minute, &cfg.Listener.CleanupInterval},
		{"HTTP_SHUTDOWN_TIMEOUT", 30 * time.Second, &cfg.Http.ShutdownTimeout},
	}
	for _, d := range durations {
		value, err := getEnvDuration(d.key, d.defaultValue)
		if err != nil {
			return nil, err
		}
		*d.dst = value
	}

	decimals, err := getEnvStrictInt("ASSET_DECIMALS", 18)
	if err != nil {
		return nil, err
	}
	if decimals < 0 || decimals > 36 {
		return nil, fmt.Errorf("ASSET_DECIMALS must be between 0 and 36, got %d", decimals)
	}

	cfg.Database.Path = getEnvString("DATABASE_PATH", "pool.db")
	cfg.Database.MaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 25)
	cfg.Database.MaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 5)

	cfg.Keeper.MaxItemsPerTick = getEnvInt("KEEPER_MAX_ITEMS_PER_TICK", 50)
	cfg.Keeper.RedisURL = getEnvString("REDIS_URL", "")
	cfg.Keeper.LockKey = getEnvString("KEEPER_LOCK_KEY", "delayed-pool:keeper")
	cfg.Keeper.ReconcileSchedule = getEnvString("KEEPER_RECONCILE_SCHEDULE", "*/5 * * * *")
	cfg.Keeper.MetricsAddr = getEnvString("KEEPER_METRICS_ADDR", ":9102")

	cfg.Http.ListenAddr = getEnvString("HTTP_LISTEN_ADDR", ":8080")

	cfg.Asset = models.AssetConfig{
		Symbol:   strings.ToUpper(getEnvString("ASSET_SYMBOL", "ETH")),
		Network:  getEnvString("ASSET_NETWORK", "ethereum-mainnet"),
		Decimals: int32(decimals),
	}

	cfg.Transfer = models.TransferConfig{
		Backend:            strings.ToLower(getEnvString("TRANSFER_BACKEND", TransferBackendDryRun)),
		PortfolioId:        getEnvString("PRIME_PORTFOLIO_ID", ""),
		WalletId:           getEnvString("PRIME_WALLET_ID", ""),
		EmergencyRecipient: getEnvString("EMERGENCY_RECIPIENT", ""),
	}
	switch cfg.Transfer.Backend {
	case TransferBackendDryRun, TransferBackendPrime:
	default:
		return nil, fmt.Errorf("invalid TRANSFER_BACKEND %q (expected %s or %s)",
			cfg.Transfer.Backend, TransferBackendDryRun, TransferBackendPrime)
	}

	cfg.Formance = models.FormanceConfig{
		StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
		ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
		ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
		LedgerName:   getEnvString("FORMANCE_LEDGER", "delayed-pool"),
	}

	cfg.Parameters.File = getEnvString("PARAMETERS_FILE", "parameters.yaml")

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvStrictInt is getEnvInt for values where a silent fallback would
// misprice amounts
func getEnvStrictInt(key string, defaultValue int) (int, error) {
	if value := os.Getenv(key); value != "" {
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %q (%w)", key, value, err)
		}
		return intValue, nil
	}
	return defaultValue, nil
}
