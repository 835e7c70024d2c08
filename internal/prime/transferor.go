package prime

import (
	"context"
	"fmt"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/pool"

	"go.uber.org/zap"
)

type withdrawalCreator interface {
	CreateWithdrawal(ctx context.Context, params CreateWithdrawalParams) (*models.Withdrawal, error)
}

// Transferor sends pool payouts as Prime wallet withdrawals. The transfer
// reference is used as the withdrawal idempotency key, which is how the
// bounce listener finds the queue item again.
type Transferor struct {
	prime       withdrawalCreator
	portfolioId string
	walletId    string
	asset       models.AssetConfig
}

var _ pool.Transferor = (*Transferor)(nil)

func NewTransferor(prime withdrawalCreator, portfolioId, walletId string, asset models.AssetConfig) (*Transferor, error) {
	if prime == nil {
		return nil, fmt.Errorf("prime service cannot be nil")
	}
	if portfolioId == "" || walletId == "" {
		return nil, fmt.Errorf("portfolio id and wallet id are required")
	}
	if asset.Symbol == "" {
		return nil, fmt.Errorf("asset symbol is required")
	}
	return &Transferor{
		prime:       prime,
		portfolioId: portfolioId,
		walletId:    walletId,
		asset:       asset,
	}, nil
}

// Transfer submits the withdrawal. Prime settles asynchronously, so an
// accepted withdrawal is always reported as pending.
func (t *Transferor) Transfer(ctx context.Context, req pool.TransferRequest) (pool.TransferResult, error) {
	withdrawal, err := t.prime.CreateWithdrawal(ctx, CreateWithdrawalParams{
		PortfolioId:        t.portfolioId,
		WalletId:           t.walletId,
		DestinationAddress: req.Recipient,
		Amount:             t.asset.FormatUnits(req.Amount),
		Symbol:             t.asset.Symbol,
		Network:            t.asset.Network,
		IdempotencyKey:     req.Reference,
	})
	if err != nil {
		return pool.TransferResult{}, err
	}

	zap.L().Debug("Payout submitted to Prime",
		zap.Uint64("item_id", req.ItemId),
		zap.String("transfer_ref", req.Reference),
		zap.String("activity_id", withdrawal.ActivityId))

	return pool.TransferResult{
		Status:     pool.TransferPending,
		ExternalId: withdrawal.ActivityId,
	}, nil
}
