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
	"sync"
	"time"

	"delayed-pool-go/internal/models"

	"go.uber.org/zap"
)

// WithdrawalSource lists the withdrawals made from the payout wallet
type WithdrawalSource interface {
	ListWalletWithdrawals(ctx context.Context, portfolioId, walletId string, since time.Time) ([]models.PrimeTransaction, error)
}

// TransferSettler records the final outcome of an in-flight payout
type TransferSettler interface {
	SettleTransfer(ctx context.Context, transferRef string, succeeded bool, reason string) (*models.ProcessResult, error)
}

// OutcomeRecorder counts settled payouts. Optional.
type OutcomeRecorder interface {
	RecordOutcome(outcome models.ProcessOutcome)
	RecordError()
}

// BounceListenerConfig contains configuration for BounceListener
type BounceListenerConfig struct {
	Source          WithdrawalSource
	Settler         TransferSettler
	Metrics         OutcomeRecorder
	PortfolioId     string
	WalletId        string
	LookbackWindow  time.Duration
	PollingInterval time.Duration
	CleanupInterval time.Duration
}

// BounceListener polls the payout wallet and settles in-flight queue items
// once Prime reports their withdrawal as done or bounced
type BounceListener struct {
	source  WithdrawalSource
	settler TransferSettler
	metrics OutcomeRecorder

	// State management for processed transactions
	processedTxIds  map[string]time.Time
	mutex           sync.RWMutex
	lookbackWindow  time.Duration
	pollingInterval time.Duration
	cleanupInterval time.Duration

	portfolioId string
	walletId    string

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewBounceListener creates a new bounce listener
func NewBounceListener(cfg BounceListenerConfig) (*BounceListener, error) {
	if cfg.Source == nil || cfg.Settler == nil {
		return nil, fmt.Errorf("withdrawal source and settler are required")
	}
	if cfg.PortfolioId == "" || cfg.WalletId == "" {
		return nil, fmt.Errorf("portfolio id and wallet id are required")
	}
	if cfg.PollingInterval <= 0 || cfg.CleanupInterval <= 0 || cfg.LookbackWindow <= 0 {
		return nil, fmt.Errorf("listener intervals must be positive")
	}

	return &BounceListener{
		source:          cfg.Source,
		settler:         cfg.Settler,
		metrics:         cfg.Metrics,
		processedTxIds:  make(map[string]time.Time),
		lookbackWindow:  cfg.LookbackWindow,
		pollingInterval: cfg.PollingInterval,
		cleanupInterval: cfg.CleanupInterval,
		portfolioId:     cfg.PortfolioId,
		walletId:        cfg.WalletId,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}, nil
}

// isTransactionProcessed checks if we've already processed this transaction
func (d *BounceListener) isTransactionProcessed(txId string) bool {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	_, exists := d.processedTxIds[txId]
	return exists
}

// markTransactionProcessed marks a transaction as processed
func (d *BounceListener) markTransactionProcessed(txId string) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.processedTxIds[txId] = time.Now()
}

// cleanupLoop periodically cleans old processed transaction IDs
func (d *BounceListener) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(d.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.cleanupProcessedTransactions(time.Now())
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// cleanupProcessedTransactions drops entries older than the lookback window;
// those transactions are no longer returned by the poll.
func (d *BounceListener) cleanupProcessedTransactions(now time.Time) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	cutoff := now.Add(-d.lookbackWindow)
	cleaned := 0

	for txId, processedTime := range d.processedTxIds {
		if processedTime.Before(cutoff) {
			delete(d.processedTxIds, txId)
			cleaned++
		}
	}

	if cleaned > 0 {
		zap.L().Debug("Cleaned up old processed transactions",
			zap.Int("cleaned", cleaned),
			zap.Int("remaining", len(d.processedTxIds)))
	}
}

func (d *BounceListener) recordOutcome(result *models.ProcessResult, err error) {
	if d.metrics == nil {
		return
	}
	if err != nil {
		d.metrics.RecordError()
		return
	}
	d.metrics.RecordOutcome(result.Outcome)
}
