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
	"time"

	"delayed-pool-go/internal/common"
	"delayed-pool-go/internal/config"
	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/pool"
	"delayed-pool-go/internal/store"
	"delayed-pool-go/internal/transfer"

	"go.uber.org/zap"
)

func printPoolState(asset models.AssetConfig, state *models.PoolState) {
	common.PrintHeader("POOL STATE", common.DefaultWidth)
	common.PrintField("Balance", common.FormatAmount(asset, state.Balance))
	common.PrintField("Pending payouts", common.FormatAmount(asset, state.PendingAmount))
	common.PrintField("Available", common.FormatAmount(asset, state.Available()))
	common.PrintField("Retained fees", common.FormatAmount(asset, state.RetainedFees))
	common.PrintField("Total deposited", common.FormatAmount(asset, state.TotalDeposited))
	common.PrintField("Total withdrawn", common.FormatAmount(asset, state.TotalWithdrawn))
}

func printPerformance(perf *models.PerformanceCounters, summary *models.QueueSummary) {
	common.PrintHeader("QUEUE", common.DefaultWidth)
	common.PrintField("Active items", perf.CurrentQueueSize)
	common.PrintField("Ready now", summary.ReadyCount)
	common.PrintField("In flight", summary.InFlightCount)
	common.PrintField("Completed", perf.CompletedCount)
	common.PrintField("Failed", perf.FailedCount)
	common.PrintField("Last processed", common.FormatTime(perf.LastProcessedAt))
}

func printItems(title string, asset models.AssetConfig, items []models.QueueItem, now time.Time) {
	fmt.Printf("\n┌─ %s (%d)\n", title, len(items))
	common.PrintBoxSeparator(common.DefaultWidth - 2)
	for i, item := range items {
		fmt.Printf("%s %s\n", common.BoxPrefix(i == len(items)-1), common.FormatQueueItem(asset, item, now))
	}
}

func printEmergencyTransfers(asset models.AssetConfig, transfers []models.EmergencyTransfer) {
	fmt.Printf("\n┌─ Emergency withdrawals in flight (%d)\n", len(transfers))
	common.PrintBoxSeparator(common.DefaultWidth - 2)
	for i, t := range transfers {
		fmt.Printf("%s %s %s to %s since %s\n",
			common.BoxPrefix(i == len(transfers)-1),
			t.Reference,
			common.FormatAmount(asset, t.Amount),
			t.Recipient,
			common.FormatTime(t.CreatedAt))
	}
}

func printHistory(asset models.AssetConfig, records []models.HistoryRecord, total uint64) {
	fmt.Printf("\n┌─ Recent history (%d of %d)\n", len(records), total)
	common.PrintBoxSeparator(common.DefaultWidth - 2)
	for i, r := range records {
		account := r.Account
		if account == "" {
			account = "-"
		}
		fmt.Printf("%s #%-5d %-20s %-9s %s %s\n",
			common.BoxPrefix(i == len(records)-1),
			r.Seq,
			r.Kind,
			r.Status,
			common.FormatAmount(asset, r.Amount),
			account)
	}
}

func printSolvency(report *models.SolvencyReport) {
	status := "HEALTHY"
	if !report.Healthy {
		status = "MISMATCH"
	}
	summary := fmt.Sprintf("SOLVENCY: %s (cached pending %s, calculated %s, %d active items)",
		status, report.CachedPending, report.CalculatedPending, report.ActiveItems)
	common.PrintFooter(summary, common.DefaultWidth)
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	historyFlag := flag.Int("history", 10, "Number of most recent history records to show")
	itemsFlag := flag.Int("items", 20, "Maximum queue items to list")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Read-only report: no Prime API, and the transferor is never called.
	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	p, err := pool.NewService(dbService, transfer.NewDryRun())
	if err != nil {
		logger.Fatal("Failed to create pool service", zap.Error(err))
	}

	state, err := p.PoolState(ctx)
	if err != nil {
		logger.Fatal("Failed to read pool state", zap.Error(err))
	}
	perf, err := p.Performance(ctx)
	if err != nil {
		logger.Fatal("Failed to read performance counters", zap.Error(err))
	}
	summary, err := p.QueueSummary(ctx)
	if err != nil {
		logger.Fatal("Failed to read queue summary", zap.Error(err))
	}

	printPoolState(cfg.Asset, state)
	printPerformance(perf, summary)

	now := time.Now().UTC()
	for _, itemState := range []models.QueueItemState{models.ItemProcessing, models.ItemWaiting} {
		items, err := p.ListQueueItems(ctx, store.QueueFilter{State: itemState, Limit: *itemsFlag})
		if err != nil {
			logger.Error("Failed to list queue items", zap.String("state", string(itemState)), zap.Error(err))
			continue
		}
		printItems(fmt.Sprintf("Items %s", itemState), cfg.Asset, items, now)
	}

	failed, err := p.FailedItems(ctx)
	if err != nil {
		logger.Error("Failed to list failed items", zap.Error(err))
	} else {
		printItems("Failed items", cfg.Asset, failed, now)
	}

	emergencies, err := p.PendingEmergencyTransfers(ctx)
	if err != nil {
		logger.Error("Failed to list emergency withdrawals", zap.Error(err))
	} else if len(emergencies) > 0 {
		printEmergencyTransfers(cfg.Asset, emergencies)
	}

	total, err := p.HistoryLength(ctx)
	if err != nil {
		logger.Fatal("Failed to read history length", zap.Error(err))
	}
	offset := 0
	if total > uint64(*historyFlag) {
		offset = int(total) - *historyFlag
	}
	records, err := p.History(ctx, offset, *historyFlag)
	if err != nil {
		logger.Error("Failed to read history", zap.Error(err))
	} else {
		printHistory(cfg.Asset, records, total)
	}

	report, err := p.CheckSolvency(ctx)
	if err != nil {
		logger.Fatal("Failed to check solvency", zap.Error(err))
	}
	printSolvency(report)

	logger.Info("Status report completed",
		zap.Uint64("queue_size", perf.CurrentQueueSize),
		zap.Uint64("history_length", total),
		zap.Bool("healthy", report.Healthy))
}
