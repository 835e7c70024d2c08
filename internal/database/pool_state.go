package database

import (
	"context"
	"fmt"

	"delayed-pool-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (q *queries) GetPoolState(ctx context.Context) (*models.PoolState, error) {
	var (
		state                                          models.PoolState
		balance, pending, fees, deposited, withdrawn   string
		queueSize, failedCount, completedCount, lastAt int64
	)
	err := q.q.QueryRowContext(ctx, queryGetPoolState).Scan(
		&balance, &pending, &fees, &deposited, &withdrawn,
		&queueSize, &failedCount, &completedCount, &lastAt, &state.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to get pool state: %w", err)
	}

	for _, field := range []struct {
		raw  string
		dest *decimal.Decimal
		name string
	}{
		{balance, &state.Balance, "balance"},
		{pending, &state.PendingAmount, "pending_amount"},
		{fees, &state.RetainedFees, "retained_fees"},
		{deposited, &state.TotalDeposited, "total_deposited"},
		{withdrawn, &state.TotalWithdrawn, "total_withdrawn"},
	} {
		value, err := decimal.NewFromString(field.raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s '%s': %w", field.name, field.raw, err)
		}
		*field.dest = value
	}

	state.QueueSize = uint64(queueSize)
	state.FailedCount = uint64(failedCount)
	state.CompletedCount = uint64(completedCount)
	state.LastProcessedAt = fromUnixNanos(lastAt)
	return &state, nil
}

// SavePoolState writes state back if nobody else has since the read that
// produced state.Version, and bumps the version on success.
func (t *txQueries) SavePoolState(ctx context.Context, state *models.PoolState) error {
	result, err := t.q.ExecContext(ctx, queryUpdatePoolState,
		state.Balance.String(),
		state.PendingAmount.String(),
		state.RetainedFees.String(),
		state.TotalDeposited.String(),
		state.TotalWithdrawn.String(),
		int64(state.QueueSize),
		int64(state.FailedCount),
		int64(state.CompletedCount),
		toUnixNanos(state.LastProcessedAt),
		state.Version)
	if err != nil {
		zap.L().Error("Failed to save pool state", zap.Error(err))
		return fmt.Errorf("failed to save pool state: %w", err)
	}

	if err := expectOneRow(result, "pool state"); err != nil {
		zap.L().Warn("Pool state version conflict", zap.Int64("version", state.Version))
		return err
	}
	state.Version++
	return nil
}
