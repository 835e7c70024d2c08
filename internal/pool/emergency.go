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

// EmergencyWithdraw moves amount straight out of the uncommitted pooled
// balance, bypassing the queue. Deposits and queue items are not touched.
//
// The amount is debited in the same transaction that checks it is
// available, before the transfer starts. A failed transfer credits it back.
// A pending transfer stays debited until SettleTransfer or
// ResolveEmergencyTransfer records its outcome.
func (s *Service) EmergencyWithdraw(ctx context.Context, caller string, amount decimal.Decimal) (*models.EmergencyTransfer, error) {
	transfer, err := s.reserveEmergency(ctx, caller, amount)
	if err != nil {
		return nil, err
	}

	zap.L().Warn("Emergency withdrawal requested",
		zap.String("amount", amount.String()),
		zap.String("recipient", transfer.Recipient),
		zap.String("transfer_ref", transfer.Reference))

	result, err := s.transferor.Transfer(ctx, TransferRequest{
		Reference: transfer.Reference,
		Recipient: transfer.Recipient,
		Amount:    transfer.Amount,
	})
	if err != nil {
		// Outcome unknown: the amount stays debited until someone settles it.
		zap.L().Error("Emergency transfer initiation failed, amount stays reserved",
			zap.String("transfer_ref", transfer.Reference),
			zap.Error(err))
		transfer.Reason = err.Error()
		return transfer, nil
	}

	switch result.Status {
	case TransferSucceeded, TransferFailed:
		s.mu.Lock()
		defer s.mu.Unlock()
		settled, err := s.settleEmergencyLocked(ctx, transfer.Reference, result.Status == TransferSucceeded, result.Reason)
		if err != nil {
			return nil, err
		}
		if settled.State == models.EmergencyFailed {
			return nil, fmt.Errorf("%w: %s", ErrTransferFailed, result.Reason)
		}
		return settled, nil
	default:
		zap.L().Info("Emergency transfer in flight",
			zap.String("transfer_ref", transfer.Reference),
			zap.String("external_id", result.ExternalId))
		return transfer, nil
	}
}

// ResolveEmergencyTransfer lets the administrator settle an emergency
// transfer whose outcome never arrived.
func (s *Service) ResolveEmergencyTransfer(ctx context.Context, caller, transferRef string, succeeded bool, reason string) (*models.EmergencyTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.requireAdmin(ctx, s.store, caller); err != nil {
		return nil, err
	}

	transfer, err := s.store.GetEmergencyTransfer(ctx, transferRef)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: transfer %s", ErrItemNotFound, transferRef)
	}
	if err != nil {
		return nil, err
	}
	if transfer.State != models.EmergencyPending {
		return nil, fmt.Errorf("%w: emergency transfer %s is %s", ErrTransferNotPending, transferRef, transfer.State)
	}

	if reason == "" && !succeeded {
		reason = "resolved as failed by administrator"
	}
	zap.L().Info("Administrator resolving emergency transfer",
		zap.String("transfer_ref", transferRef),
		zap.Bool("succeeded", succeeded))
	return s.settleEmergencyLocked(ctx, transferRef, succeeded, reason)
}

func (s *Service) reserveEmergency(ctx context.Context, caller string, amount decimal.Decimal) (*models.EmergencyTransfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var transfer *models.EmergencyTransfer
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		params, err := s.requireAdmin(ctx, tx, caller)
		if err != nil {
			return err
		}
		if !isAtomicAmount(amount) {
			return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
		}

		state, err := tx.GetPoolState(ctx)
		if err != nil {
			return err
		}
		if state.Available().LessThan(amount) {
			return fmt.Errorf("%w: available %s, requested %s", ErrInsufficientBalance, state.Available(), amount)
		}

		recipient := s.emergencyRecipient
		if recipient == "" {
			recipient = params.AdminId
		}
		transfer = &models.EmergencyTransfer{
			Reference: uuid.New().String(),
			Recipient: recipient,
			Amount:    amount,
			State:     models.EmergencyPending,
			CreatedAt: s.clock.Now(),
		}

		state.Balance = state.Balance.Sub(amount)
		if err := tx.SavePoolState(ctx, state); err != nil {
			return err
		}
		return tx.InsertEmergencyTransfer(ctx, transfer)
	})
	if err != nil {
		if IsValidationError(err) {
			zap.L().Warn("Emergency withdrawal rejected", zap.String("kind", ErrorKind(err)), zap.Error(err))
		} else {
			zap.L().Error("Failed to reserve emergency withdrawal", zap.Error(err))
		}
		return nil, err
	}
	return transfer, nil
}

// settleEmergencyLocked records the outcome of a pending emergency transfer.
// A transfer that is already settled is returned unchanged.
func (s *Service) settleEmergencyLocked(ctx context.Context, transferRef string, succeeded bool, reason string) (*models.EmergencyTransfer, error) {
	now := s.clock.Now()

	var (
		transfer *models.EmergencyTransfer
		records  []models.HistoryRecord
	)
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		transfer, err = tx.GetEmergencyTransfer(ctx, transferRef)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: transfer %s", ErrItemNotFound, transferRef)
		}
		if err != nil {
			return err
		}

		if transfer.State != models.EmergencyPending {
			if transfer.State == models.EmergencyCompleted && !succeeded {
				zap.L().Warn("Ignoring failure notice for completed emergency transfer",
					zap.String("transfer_ref", transferRef))
			}
			return nil
		}

		record := models.HistoryRecord{
			Id:        uuid.New().String(),
			Kind:      models.HistoryEmergency,
			Account:   transfer.Recipient,
			Amount:    transfer.Amount,
			Status:    HistoryStatusCompleted,
			Reference: transfer.Reference,
			Timestamp: now,
		}
		transfer.SettledAt = now

		if succeeded {
			transfer.State = models.EmergencyCompleted
		} else {
			state, err := tx.GetPoolState(ctx)
			if err != nil {
				return err
			}
			state.Balance = state.Balance.Add(transfer.Amount)
			if err := tx.SavePoolState(ctx, state); err != nil {
				return err
			}
			transfer.State = models.EmergencyFailed
			transfer.Reason = reason
			record.Status = HistoryStatusFailed
		}

		if err := tx.UpdateEmergencyTransfer(ctx, transfer, models.EmergencyPending); err != nil {
			return err
		}
		records, err = appendHistory(ctx, tx, record)
		return err
	})
	if err != nil {
		zap.L().Error("Failed to settle emergency transfer", zap.String("transfer_ref", transferRef), zap.Error(err))
		return nil, err
	}

	if len(records) == 0 {
		return transfer, nil
	}

	if transfer.State == models.EmergencyCompleted {
		zap.L().Info("Emergency withdrawal completed",
			zap.String("amount", transfer.Amount.String()),
			zap.String("transfer_ref", transfer.Reference))
	} else {
		zap.L().Warn("Emergency withdrawal failed, amount credited back",
			zap.String("amount", transfer.Amount.String()),
			zap.String("transfer_ref", transfer.Reference),
			zap.String("reason", reason))
	}

	s.publish(ctx, records...)
	return transfer, nil
}

func emergencyResult(transfer *models.EmergencyTransfer) *models.ProcessResult {
	result := &models.ProcessResult{
		Outcome:     models.OutcomeInFlight,
		Fee:         decimal.Zero,
		Net:         transfer.Amount,
		TransferRef: transfer.Reference,
		Reason:      transfer.Reason,
	}
	switch transfer.State {
	case models.EmergencyCompleted:
		result.Outcome = models.OutcomeCompleted
	case models.EmergencyFailed:
		result.Outcome = models.OutcomeFailed
	}
	return result
}
