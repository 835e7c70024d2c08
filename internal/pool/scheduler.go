package pool

import (
	"context"
	"errors"
	"fmt"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ScheduleWithdrawal turns parts into queued payouts against a pending
// deposit. All checks run before anything is written and the first failing
// check decides the error. No value moves until the items are processed.
func (s *Service) ScheduleWithdrawal(ctx context.Context, caller string, depositId uint64, parts []models.PayoutPart) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		itemIds []uint64
		total   decimal.Decimal
	)
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		params, err := s.requireAdmin(ctx, tx, caller)
		if err != nil {
			return err
		}

		if len(parts) < 1 || len(parts) > params.MaxPartsPerSplit {
			return fmt.Errorf("%w: got %d, allowed 1..%d", ErrTooManyParts, len(parts), params.MaxPartsPerSplit)
		}

		deposit, err := tx.GetDeposit(ctx, depositId)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrDepositNotFound, depositId)
		}
		if err != nil {
			return err
		}
		if deposit.Status != models.DepositPending {
			return fmt.Errorf("%w: %d", ErrDepositAlreadyScheduled, depositId)
		}

		now := s.clock.Now()
		if now.Sub(deposit.CreatedAt) > params.WithdrawalTimeout {
			return fmt.Errorf("%w: deposit %d is older than %v", ErrDepositExpired, depositId, params.WithdrawalTimeout)
		}

		total = decimal.Zero
		for i, part := range parts {
			if err := validatePart(params, part); err != nil {
				return fmt.Errorf("part %d: %w", i, err)
			}
			total = total.Add(part.Amount)
		}

		state, err := tx.GetPoolState(ctx)
		if err != nil {
			return err
		}
		if state.QueueSize+uint64(len(parts)) > params.MaxQueueSize {
			return fmt.Errorf("%w: %d queued, %d requested, capacity %d", ErrQueueFull, state.QueueSize, len(parts), params.MaxQueueSize)
		}
		if required := total.Add(params.OperationalReserve); state.Available().LessThan(required) {
			return fmt.Errorf("%w: available %s, required %s", ErrInsufficientBalance, state.Available(), required)
		}

		itemIds = make([]uint64, 0, len(parts))
		for _, part := range parts {
			id, err := tx.InsertQueueItem(ctx, &models.QueueItem{
				SourceDepositId: depositId,
				Recipient:       part.Recipient,
				Amount:          part.Amount,
				FeeRateBps:      part.FeeRateBps,
				ReadyAt:         now.Add(part.Delay),
				State:           models.ItemWaiting,
				CreatedAt:       now,
			})
			if err != nil {
				return err
			}
			itemIds = append(itemIds, id)
		}

		if err := tx.UpdateDepositStatus(ctx, depositId, models.DepositPending, models.DepositScheduled); err != nil {
			return err
		}

		state.QueueSize += uint64(len(parts))
		state.PendingAmount = state.PendingAmount.Add(total)
		return tx.SavePoolState(ctx, state)
	})
	if err != nil {
		if IsValidationError(err) {
			zap.L().Warn("Withdrawal rejected",
				zap.Uint64("deposit_id", depositId),
				zap.Int("parts", len(parts)),
				zap.String("reason", ErrorKind(err)),
				zap.Error(err))
		} else {
			zap.L().Error("Failed to schedule withdrawal", zap.Uint64("deposit_id", depositId), zap.Error(err))
		}
		return nil, err
	}

	zap.L().Info("Withdrawal scheduled",
		zap.Uint64("deposit_id", depositId),
		zap.Uint64s("item_ids", itemIds),
		zap.String("amount", total.String()))
	return itemIds, nil
}

func validatePart(params *models.Parameters, part models.PayoutPart) error {
	if part.Amount.LessThan(params.MinWithdraw) || !part.Amount.IsPositive() {
		return fmt.Errorf("%w: %s < %s", ErrAmountTooSmall, part.Amount, params.MinWithdraw)
	}
	if !isAtomicAmount(part.Amount) {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, part.Amount)
	}
	if part.FeeRateBps < params.MinFeeRateBps || part.FeeRateBps > params.MaxFeeRateBps {
		return fmt.Errorf("%w: %d outside [%d, %d]", ErrInvalidFeeRate, part.FeeRateBps, params.MinFeeRateBps, params.MaxFeeRateBps)
	}
	if part.Delay < params.MinDelay || part.Delay > params.MaxDelay {
		return fmt.Errorf("%w: %v outside [%v, %v]", ErrInvalidDelay, part.Delay, params.MinDelay, params.MaxDelay)
	}
	if !ValidAccount(part.Recipient) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, part.Recipient)
	}
	return nil
}
