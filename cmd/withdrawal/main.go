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

	"delayed-pool-go/internal/common"
	"delayed-pool-go/internal/config"
	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/pool"

	"go.uber.org/zap"
)

func main() {
	var partValues partFlags
	depositFlag := flag.Uint64("deposit", 0, "Deposit id to split (required)")
	callerFlag := flag.String("caller", "", "Calling account (required)")
	feeFlag := flag.Int("fee", -1, "Fee rate in basis points for every part (default: current fee rate)")
	flag.Var(&partValues, "part", "Payout part <recipient>=<units>[@<delay>], repeatable (required)")
	flag.Parse()

	if *depositFlag == 0 || *callerFlag == "" || len(partValues) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: withdrawal --deposit <id> --caller <account> --part <recipient>=<units>[@<delay>] [--part ...]")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *feeFlag > pool.BasisPointsDenominator {
		fmt.Fprintf(os.Stderr, "--fee cannot exceed %d\n", pool.BasisPointsDenominator)
		os.Exit(1)
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	feeRateBps := uint16(0)
	if *feeFlag >= 0 {
		feeRateBps = uint16(*feeFlag)
	} else {
		params, err := services.Pool.Parameters(ctx)
		if err != nil {
			zap.L().Fatal("Failed to read pool parameters", zap.Error(err))
		}
		feeRateBps = params.CurrentFeeRateBps
	}

	parts := make([]models.PayoutPart, 0, len(partValues))
	for _, value := range partValues {
		part, err := parsePart(cfg.Asset, value, feeRateBps)
		if err != nil {
			zap.L().Fatal("Invalid payout part", zap.Error(err))
		}
		parts = append(parts, part)
	}

	itemIds, err := services.Pool.ScheduleWithdrawal(ctx, *callerFlag, *depositFlag, parts)
	if err != nil {
		zap.L().Fatal("Withdrawal rejected", zap.String("kind", pool.ErrorKind(err)), zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("WITHDRAWAL SCHEDULED FROM DEPOSIT %d", *depositFlag), common.DefaultWidth)
	for i, itemId := range itemIds {
		item, err := services.Pool.QueueItem(ctx, itemId)
		if err != nil {
			zap.L().Error("Failed to read queue item", zap.Uint64("item_id", itemId), zap.Error(err))
			continue
		}
		fmt.Printf("%s %s\n", common.BoxPrefix(i == len(itemIds)-1), common.FormatQueueItem(cfg.Asset, *item, item.CreatedAt))
	}
	common.PrintFooter(fmt.Sprintf("SUMMARY: %d payouts queued", len(itemIds)), common.DefaultWidth)
}
