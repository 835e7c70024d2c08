package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (q *queries) GetDeposit(ctx context.Context, id uint64) (*models.Deposit, error) {
	var (
		deposit   models.Deposit
		amountStr string
		createdAt int64
		status    string
	)
	err := q.q.QueryRowContext(ctx, queryGetDeposit, id).Scan(&deposit.Id, &amountStr, &createdAt, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deposit %d: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit: %w", err)
	}

	deposit.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse deposit amount '%s': %w", amountStr, err)
	}
	deposit.CreatedAt = fromUnixNanos(createdAt)
	deposit.Status = models.DepositStatus(status)
	return &deposit, nil
}

func (t *txQueries) InsertDeposit(ctx context.Context, deposit *models.Deposit) (uint64, error) {
	result, err := t.q.ExecContext(ctx, queryInsertDeposit,
		deposit.Amount.String(), toUnixNanos(deposit.CreatedAt), string(deposit.Status))
	if err != nil {
		return 0, fmt.Errorf("failed to insert deposit: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read deposit id: %w", err)
	}

	zap.L().Debug("Deposit row inserted", zap.Int64("deposit_id", id))
	return uint64(id), nil
}

func (t *txQueries) UpdateDepositStatus(ctx context.Context, id uint64, from, to models.DepositStatus) error {
	result, err := t.q.ExecContext(ctx, queryUpdateDepositStatus, string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to update deposit status: %w", err)
	}
	return expectOneRow(result, fmt.Sprintf("deposit %d status %s -> %s", id, from, to))
}
