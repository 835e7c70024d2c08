package listener

import (
	"context"
	"errors"
	"fmt"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/pool"

	"go.uber.org/zap"
)

const statusDone = "TRANSACTION_DONE"

// Terminal failure statuses; the payout bounced and its amount stays pooled
var terminalFailures = map[string]bool{
	"TRANSACTION_CANCELLED": true,
	"TRANSACTION_REJECTED":  true,
	"TRANSACTION_FAILED":    true,
	"TRANSACTION_EXPIRED":   true,
}

// processWithdrawal settles the queue item or emergency transfer whose
// transfer reference is the withdrawal idempotency key. It reports whether the transaction reached a
// final status and was handled.
func (d *BounceListener) processWithdrawal(ctx context.Context, tx models.PrimeTransaction) (bool, error) {
	var succeeded bool
	switch {
	case tx.Status == statusDone:
		succeeded = true
	case terminalFailures[tx.Status]:
		succeeded = false
	default:
		zap.L().Debug("Skipping non-final withdrawal - waiting for completion",
			zap.String("transaction_id", tx.Id),
			zap.String("status", tx.Status),
			zap.Time("created_at", tx.CreatedAt))
		return false, nil
	}

	if tx.IdempotencyKey == "" {
		zap.L().Debug("Withdrawal has no idempotency key - not a pool payout",
			zap.String("transaction_id", tx.Id))
		d.markTransactionProcessed(tx.Id)
		return false, nil
	}

	reason := ""
	if !succeeded {
		reason = fmt.Sprintf("withdrawal %s: %s", tx.Id, tx.Status)
		zap.L().Warn("Payout bounced with terminal status",
			zap.String("transaction_id", tx.Id),
			zap.String("idempotency_key", tx.IdempotencyKey),
			zap.String("status", tx.Status),
			zap.String("amount", tx.Amount))
	}

	result, err := d.settler.SettleTransfer(ctx, tx.IdempotencyKey, succeeded, reason)
	if errors.Is(err, pool.ErrItemNotFound) {
		// Manual transfers share the wallet
		zap.L().Debug("Withdrawal does not belong to the pool",
			zap.String("transaction_id", tx.Id),
			zap.String("idempotency_key", tx.IdempotencyKey))
		d.markTransactionProcessed(tx.Id)
		return false, nil
	}
	d.recordOutcome(result, err)
	if err != nil {
		return false, fmt.Errorf("failed to settle transfer %s: %w", tx.IdempotencyKey, err)
	}

	d.markTransactionProcessed(tx.Id)

	zap.L().Info("Payout settled from Prime status",
		zap.String("transaction_id", tx.Id),
		zap.Uint64("item_id", result.ItemId),
		zap.String("status", tx.Status),
		zap.String("outcome", string(result.Outcome)),
		zap.Time("completed_at", tx.CompletedAt))

	return true, nil
}
