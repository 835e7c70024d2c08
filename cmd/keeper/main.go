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
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"delayed-pool-go/internal/common"
	"delayed-pool-go/internal/config"
	"delayed-pool-go/internal/keeper"
	"delayed-pool-go/internal/listener"
	"delayed-pool-go/internal/metrics"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting delayed pool keeper",
		zap.Duration("polling_interval", cfg.Keeper.PollingInterval),
		zap.Int("max_items_per_tick", cfg.Keeper.MaxItemsPerTick),
		zap.String("transfer_backend", cfg.Transfer.Backend))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	collector := metrics.NewCollector()

	var lock keeper.Locker = keeper.LocalLock{}
	if cfg.Keeper.RedisURL != "" {
		redisLock, err := keeper.NewRedisLock(cfg.Keeper.RedisURL, cfg.Keeper.LockKey, cfg.Keeper.LockTTL)
		if err != nil {
			zap.L().Fatal("Failed to create keeper lock", zap.Error(err))
		}
		defer func() {
			if err := redisLock.Close(); err != nil {
				zap.L().Warn("Failed to close redis client", zap.Error(err))
			}
		}()
		lock = redisLock
		zap.L().Info("Using redis keeper lock", zap.String("key", cfg.Keeper.LockKey))
	} else {
		zap.L().Warn("REDIS_URL not set; run a single keeper instance only")
	}

	k, err := keeper.New(keeper.Config{
		Pool:              services.Pool,
		Lock:              lock,
		Metrics:           collector,
		PollingInterval:   cfg.Keeper.PollingInterval,
		MaxItemsPerTick:   cfg.Keeper.MaxItemsPerTick,
		ReconcileSchedule: cfg.Keeper.ReconcileSchedule,
	})
	if err != nil {
		zap.L().Fatal("Failed to create keeper", zap.Error(err))
	}

	// Bounces only exist for real withdrawals.
	var bounces *listener.BounceListener
	if cfg.Transfer.Backend == config.TransferBackendPrime {
		bounces, err = listener.NewBounceListener(listener.BounceListenerConfig{
			Source:          services.PrimeService,
			Settler:         services.Pool,
			Metrics:         collector,
			PortfolioId:     services.Portfolio.Id,
			WalletId:        cfg.Transfer.WalletId,
			LookbackWindow:  cfg.Listener.LookbackWindow,
			PollingInterval: cfg.Listener.PollingInterval,
			CleanupInterval: cfg.Listener.CleanupInterval,
		})
		if err != nil {
			zap.L().Fatal("Failed to create bounce listener", zap.Error(err))
		}
		if err := bounces.Start(ctx); err != nil {
			zap.L().Fatal("Failed to start bounce listener", zap.Error(err))
		}
	}

	metricsServer := &http.Server{
		Addr:              cfg.Keeper.MetricsAddr,
		Handler:           collector.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zap.L().Info("Metrics endpoint listening", zap.String("addr", cfg.Keeper.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("Metrics server failed", zap.Error(err))
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := k.Run(ctx); err != nil {
			zap.L().Error("Keeper stopped with error", zap.Error(err))
			cancel()
		}
	}()

	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		zap.L().Info("Shutdown signal received, stopping keeper...")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Http.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		if bounces != nil {
			bounces.Stop()
		}
		wg.Wait()
		_ = metricsServer.Shutdown(shutdownCtx)
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Keeper stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
