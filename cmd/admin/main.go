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
	"strconv"

	"delayed-pool-go/internal/common"
	"delayed-pool-go/internal/config"
	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/pool"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const usage = `Usage: admin --caller <admin-id> <command> [args]

Commands:
  fee-rate <bps>                   set the current fee rate
  set-admin <account>              hand administration over to account
  blacklist add|remove <account>   change the blacklist
  blacklist list                   print the blacklist
  oracle <rate>                    store an informational oracle rate
  emergency <units>                withdraw uncommitted balance to the emergency recipient
  resolve <item-id> ok|failed      settle an item stuck in processing
  resolve-emergency <ref> ok|failed
                                   settle an emergency withdrawal stuck in flight
  mirror-replay [offset]           resend history from offset to the Formance ledger
`

type command func(ctx context.Context, p *pool.Service, asset models.AssetConfig, caller string, args []string) error

var commands = map[string]command{
	"fee-rate":  setFeeRate,
	"set-admin": setAdmin,
	"blacklist": blacklist,
	"oracle":    setOracle,
	"emergency": emergencyWithdraw,
	"resolve":   resolveTransfer,

	"resolve-emergency": resolveEmergency,
	"mirror-replay":     replayHistory,
}

func setFeeRate(ctx context.Context, p *pool.Service, _ models.AssetConfig, caller string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("fee-rate takes exactly one argument")
	}
	bps, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return fmt.Errorf("invalid fee rate %q: %w", args[0], err)
	}
	if err := p.SetFeeRate(ctx, caller, uint16(bps)); err != nil {
		return err
	}
	fmt.Printf("✓ Fee rate set to %d bps\n", bps)
	return nil
}

func setAdmin(ctx context.Context, p *pool.Service, _ models.AssetConfig, caller string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("set-admin takes exactly one argument")
	}
	if err := p.SetAdmin(ctx, caller, args[0]); err != nil {
		return err
	}
	fmt.Printf("✓ Administrator is now %s\n", args[0])
	return nil
}

func blacklist(ctx context.Context, p *pool.Service, _ models.AssetConfig, caller string, args []string) error {
	if len(args) == 1 && args[0] == "list" {
		accounts, err := p.Blacklist(ctx)
		if err != nil {
			return err
		}
		common.PrintHeader(fmt.Sprintf("BLACKLIST (%d)", len(accounts)), common.DefaultWidth)
		for i, account := range accounts {
			fmt.Printf("%s %s\n", common.BoxPrefix(i == len(accounts)-1), account)
		}
		return nil
	}
	if len(args) != 2 || (args[0] != "add" && args[0] != "remove") {
		return fmt.Errorf("usage: blacklist add|remove <account> or blacklist list")
	}
	if err := p.SetBlacklist(ctx, caller, args[1], args[0] == "add"); err != nil {
		return err
	}
	fmt.Printf("✓ Blacklist %s %s\n", args[0], args[1])
	return nil
}

func setOracle(ctx context.Context, p *pool.Service, _ models.AssetConfig, caller string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("oracle takes exactly one argument")
	}
	rate, err := decimal.NewFromString(args[0])
	if err != nil {
		return fmt.Errorf("invalid rate %q: %w", args[0], err)
	}
	if err := p.SetOracle(ctx, caller, rate); err != nil {
		return err
	}
	fmt.Printf("✓ Oracle rate set to %s\n", rate)
	return nil
}

func emergencyWithdraw(ctx context.Context, p *pool.Service, asset models.AssetConfig, caller string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("emergency takes exactly one argument")
	}
	amount, err := asset.ParseUnits(args[0])
	if err != nil {
		return err
	}
	transfer, err := p.EmergencyWithdraw(ctx, caller, amount)
	if err != nil {
		return err
	}
	common.PrintHeader("EMERGENCY WITHDRAWAL", common.DefaultWidth)
	common.PrintField("Amount", common.FormatAmount(asset, transfer.Amount))
	common.PrintField("Recipient", transfer.Recipient)
	common.PrintField("Transfer ref", transfer.Reference)
	common.PrintField("Status", string(transfer.State))
	if transfer.Reason != "" {
		common.PrintField("Note", transfer.Reason)
	}
	return nil
}

func resolveEmergency(ctx context.Context, p *pool.Service, asset models.AssetConfig, caller string, args []string) error {
	if len(args) < 2 || (args[1] != "ok" && args[1] != "failed") {
		return fmt.Errorf("usage: resolve-emergency <transfer-ref> ok|failed [reason]")
	}
	reason := ""
	if len(args) > 2 {
		reason = args[2]
	}
	transfer, err := p.ResolveEmergencyTransfer(ctx, caller, args[0], args[1] == "ok", reason)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Emergency transfer %s resolved: %s (%s)\n",
		transfer.Reference, transfer.State, common.FormatAmount(asset, transfer.Amount))
	return nil
}

func replayHistory(ctx context.Context, p *pool.Service, _ models.AssetConfig, caller string, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("usage: mirror-replay [offset]")
	}
	admin, err := p.Admin(ctx)
	if err != nil {
		return err
	}
	if admin != caller {
		return pool.ErrUnauthorized
	}
	offset := 0
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid offset %q", args[0])
		}
		offset = n
	}
	replayed, err := p.ReplayHistory(ctx, offset)
	if err != nil {
		return fmt.Errorf("replayed %d records before failing: %w", replayed, err)
	}
	fmt.Printf("✓ Replayed %d history records from offset %d\n", replayed, offset)
	return nil
}

func resolveTransfer(ctx context.Context, p *pool.Service, asset models.AssetConfig, caller string, args []string) error {
	if len(args) < 2 || (args[1] != "ok" && args[1] != "failed") {
		return fmt.Errorf("usage: resolve <item-id> ok|failed [reason]")
	}
	itemId, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid item id %q: %w", args[0], err)
	}
	reason := ""
	if len(args) > 2 {
		reason = args[2]
	}
	result, err := p.ResolveTransfer(ctx, caller, itemId, args[1] == "ok", reason)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Item %d resolved: %s (net %s, fee %s)\n",
		result.ItemId, result.Outcome, asset.FormatUnits(result.Net), asset.FormatUnits(result.Fee))
	return nil
}

func main() {
	callerFlag := flag.String("caller", "", "Administrator account (required)")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if *callerFlag == "" || len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		flag.Usage()
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

	if err := cmd(ctx, services.Pool, cfg.Asset, *callerFlag, args[1:]); err != nil {
		zap.L().Fatal("Admin command failed",
			zap.String("command", args[0]),
			zap.String("kind", pool.ErrorKind(err)),
			zap.Error(err))
	}
}
