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

	"go.uber.org/zap"
)

func main() {
	callerFlag := flag.String("caller", "", "Depositing account (required; checked against the blacklist, never stored)")
	amountFlag := flag.String("amount", "", "Amount in asset units, e.g. 1.5 (required)")
	flag.Parse()

	if *callerFlag == "" || *amountFlag == "" {
		fmt.Fprintln(os.Stderr, "Usage: deposit --caller <account> --amount <units>")
		flag.PrintDefaults()
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

	amount, err := cfg.Asset.ParseUnits(*amountFlag)
	if err != nil {
		zap.L().Fatal("Invalid amount", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	depositId, err := services.Pool.Deposit(ctx, *callerFlag, amount)
	if err != nil {
		zap.L().Fatal("Deposit rejected", zap.Error(err))
	}

	common.PrintHeader("DEPOSIT RECORDED", common.DefaultWidth)
	common.PrintField("Deposit ID", depositId)
	common.PrintField("Amount", common.FormatAmount(cfg.Asset, amount))
	common.PrintFooter(fmt.Sprintf("Schedule payouts with: withdrawal --deposit %d --caller <account> --part <recipient>=<units>@<delay>", depositId), common.DefaultWidth)
}
