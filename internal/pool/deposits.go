package pool

import (
	"context"
	"errors"
	"fmt"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// History record statuses
const (
	HistoryStatusCompleted = "completed"
	HistoryStatusRetained  = "retained"
	HistoryStatusFailed    = "failed"
)

// Deposit records amount entering the pool and returns the new deposit id.
// caller is only used for validation; it is not stored or logged.
func (s *Service) Deposit(ctx context.Context, caller string, amount decimal.Decimal) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		depositId uint64
		records   []models.HistoryRecord
	)
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		params, err := s.parameters(ctx, tx)
		if err != nil {
			return err
		}

		if err := checkAmountRange(amount, params.MinDeposit, params.MaxDeposit); err != nil {
			return err
		}

		banned, err := tx.IsBlacklisted(ctx, caller)
		if err != nil {
			return err
		}
		if banned {
			return ErrCallerBlacklisted
		}

		now := s.clock.Now()
		depositId, err = tx.InsertDeposit(ctx, &models.Deposit{
			Amount:    amount,
			CreatedAt: now,
			Status:    models.DepositPending,
		})
		if err != nil {
			return err
		}

		state, err := tx.GetPoolState(ctx)
		if err != nil {
			return err
		}
		state.Balance = state.Balance.Add(amount)
		state.TotalDeposited = state.TotalDeposited.Add(amount)
		if err := tx.SavePoolState(ctx, state); err != nil {
			return err
		}

		// The record is deliberately account-less.
		records, err = appendHistory(ctx, tx, models.HistoryRecord{
			Id:        uuid.New().String(),
			Kind:      models.HistoryDeposit,
			Amount:    amount,
			Status:    HistoryStatusCompleted,
			Timestamp: now,
		})
		return err
	})
	if err != nil {
		if IsValidationError(err) {
			zap.L().Warn("Deposit rejected", zap.String("amount", amount.String()), zap.String("reason", ErrorKind(err)))
		} else {
			zap.L().Error("Failed to record deposit", zap.String("amount", amount.String()), zap.Error(err))
		}
		return 0, err
	}

	zap.L().Info("Deposit recorded",
		zap.Uint64("deposit_id", depositId),
		zap.String("amount", amount.String()))

	s.publish(ctx, records...)
	return depositId, nil
}

// GetDeposit returns the deposit record. It carries no depositor identity.
func (s *Service) GetDeposit(ctx context.Context, id uint64) (*models.Deposit, error) {
	deposit, err := s.store.GetDeposit(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrDepositNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return deposit, nil
}
