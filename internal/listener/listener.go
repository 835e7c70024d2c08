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

package listener

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Start runs startup recovery over the lookback window and then keeps polling
// in the background until Stop is called or ctx is done
func (d *BounceListener) Start(ctx context.Context) error {
	zap.L().Info("Starting bounce listener",
		zap.String("wallet_id", d.walletId))

	// Catch outcomes reported while the listener was down
	recovered, err := d.PollOnce(ctx)
	if err != nil {
		zap.L().Error("Startup recovery failed", zap.Error(err))
		return fmt.Errorf("startup recovery failed: %w", err)
	}
	zap.L().Info("Startup recovery completed",
		zap.Int("settled", recovered),
		zap.Duration("lookback_window", d.lookbackWindow))

	go d.pollLoop(ctx)
	go d.cleanupLoop(ctx)

	zap.L().Info("Bounce listener started successfully",
		zap.Duration("polling_interval", d.pollingInterval),
		zap.Duration("lookback_window", d.lookbackWindow))

	return nil
}

// Stop gracefully stops the bounce listener
func (d *BounceListener) Stop() {
	zap.L().Info("Stopping bounce listener")
	close(d.stopChan)
	<-d.doneChan
	zap.L().Info("Bounce listener stopped")
}

// pollLoop runs the main polling loop
func (d *BounceListener) pollLoop(ctx context.Context) {
	defer close(d.doneChan)

	ticker := time.NewTicker(d.pollingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := d.PollOnce(ctx); err != nil {
				fmt.Printf("  %s✗ payout wallet (%s): %s%s\n", colorRed, shortId(d.walletId), err, colorReset)
				zap.L().Error("Failed to poll payout wallet",
					zap.String("wallet_id", d.walletId),
					zap.Error(err))
			}
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// ANSI color helpers for console output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func shortId(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}

// PollOnce fetches the payout wallet withdrawals inside the lookback window
// and settles every one that reached a final status. It returns the number
// of transactions settled.
func (d *BounceListener) PollOnce(ctx context.Context) (int, error) {
	since := time.Now().UTC().Add(-d.lookbackWindow)

	fmt.Printf("\n%s[%s] Polling payout wallet (lookback: %s)%s\n",
		colorCyan, time.Now().Format("15:04:05"), d.lookbackWindow, colorReset)

	transactions, err := d.source.ListWalletWithdrawals(ctx, d.portfolioId, d.walletId, since)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch transactions: %w", err)
	}

	settled := 0
	for _, tx := range transactions {
		if d.isTransactionProcessed(tx.Id) {
			continue
		}

		done, err := d.processWithdrawal(ctx, tx)
		if err != nil {
			fmt.Printf("  %s✗ %s %s %s | %s | %s%s\n",
				colorRed, tx.Symbol, tx.Status, tx.Amount, shortId(tx.Id), err, colorReset)
			zap.L().Error("Failed to process withdrawal",
				zap.String("transaction_id", tx.Id),
				zap.String("idempotency_key", tx.IdempotencyKey),
				zap.Error(err))
			continue
		}
		if !done {
			continue
		}

		settled++
		color := colorGreen
		if tx.Status != statusDone {
			color = colorYellow
		}
		fmt.Printf("  %s✓ %s %s %s | %s%s\n",
			color, tx.Symbol, tx.Status, tx.Amount, shortId(tx.Id), colorReset)
	}

	return settled, nil
}
