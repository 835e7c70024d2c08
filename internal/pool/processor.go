package pool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NextReadyItem returns the lowest id among waiting items whose ready time
// has passed. It only reads.
func (s *Service) NextReadyItem(ctx context.Context) (uint64, bool, error) {
	id, ok, err := s.store.NextReadyItemId(ctx, s.clock.Now())
	if err != nil {
		return 0, false, fmt.Errorf("failed to find next ready item: %w", err)
	}
	return id, ok, nil
}

// ProcessItem executes exactly one ready payout.
//
// The item is first moved to processing under a fresh transfer reference and
// committed, so the transfer is never attempted for an item another caller
// already claimed. The transfer itself runs without holding the service
// lock. A synchronous success or failure settles the item at once; a
// pending transfer is settled later through SettleTransfer.
func (s *Service) ProcessItem(ctx context.Context, itemId uint64) (*models.ProcessResult, error) {
	item, err := s.claimItem(ctx, itemId)
	if err != nil {
		return nil, err
	}

	fee, net := Split(item.Amount, item.FeeRateBps)
	result := &models.ProcessResult{
		ItemId:      item.Id,
		Outcome:     models.OutcomeInFlight,
		Fee:         fee,
		Net:         net,
		TransferRef: item.TransferRef,
	}

	transfer, err := s.transferor.Transfer(ctx, TransferRequest{
		Reference: item.TransferRef,
		Recipient: item.Recipient,
		Amount:    net,
		ItemId:    item.Id,
	})
	if err != nil {
		// The outcome is unknown: the item stays in processing until the
		// listener or an administrator settles it.
		zap.L().Error("Transfer initiation failed, item left in flight",
			zap.Uint64("item_id", item.Id),
			zap.String("transfer_ref", item.TransferRef),
			zap.Error(err))
		result.Reason = err.Error()
		return result, nil
	}

	switch transfer.Status {
	case TransferSucceeded, TransferFailed:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.settleLocked(ctx, item.TransferRef, transfer.Status == TransferSucceeded, transfer.Reason)
	default:
		zap.L().Info("Payout in flight",
			zap.Uint64("item_id", item.Id),
			zap.String("transfer_ref", item.TransferRef),
			zap.String("external_id", transfer.ExternalId),
			zap.String("net", net.String()))
		return result, nil
	}
}

// claimItem moves a ready item to processing under a new transfer reference
func (s *Service) claimItem(ctx context.Context, itemId uint64) (*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var item *models.QueueItem
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		var err error
		item, err = tx.GetQueueItem(ctx, itemId)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrItemNotFound, itemId)
		}
		if err != nil {
			return err
		}

		if item.State != models.ItemWaiting {
			return fmt.Errorf("%w: item %d is %s", ErrItemNotActive, itemId, item.State)
		}
		if now.Before(item.ReadyAt) {
			return fmt.Errorf("%w: item %d ready at %s", ErrNotReady, itemId, item.ReadyAt.Format(time.RFC3339))
		}

		item.State = models.ItemProcessing
		item.TransferRef = uuid.New().String()
		return tx.UpdateQueueItem(ctx, item, models.ItemWaiting)
	})
	if err != nil {
		if IsValidationError(err) {
			zap.L().Debug("Queue item not processed", zap.Uint64("item_id", itemId), zap.String("reason", ErrorKind(err)))
		} else {
			zap.L().Error("Failed to claim queue item", zap.Uint64("item_id", itemId), zap.Error(err))
		}
		return nil, err
	}
	return item, nil
}

// SettleTransfer records the final outcome of a transfer, either a queue
// payout or an emergency withdrawal. Repeated notifications for a transfer
// that is already settled change nothing.
func (s *Service) SettleTransfer(ctx context.Context, transferRef string, succeeded bool, reason string) (*models.ProcessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.store.GetEmergencyTransfer(ctx, transferRef)
	switch {
	case err == nil:
		transfer, err := s.settleEmergencyLocked(ctx, transferRef, succeeded, reason)
		if err != nil {
			return nil, err
		}
		return emergencyResult(transfer), nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("failed to look up emergency transfer: %w", err)
	}
	return s.settleLocked(ctx, transferRef, succeeded, reason)
}

// ResolveTransfer lets the administrator settle an item whose transfer
// outcome never arrived.
func (s *Service) ResolveTransfer(ctx context.Context, caller string, itemId uint64, succeeded bool, reason string) (*models.ProcessResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.requireAdmin(ctx, s.store, caller); err != nil {
		return nil, err
	}

	item, err := s.store.GetQueueItem(ctx, itemId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrItemNotFound, itemId)
	}
	if err != nil {
		return nil, err
	}
	if item.State != models.ItemProcessing {
		return nil, fmt.Errorf("%w: item %d is %s", ErrTransferNotPending, itemId, item.State)
	}

	if reason == "" && !succeeded {
		reason = "resolved as failed by administrator"
	}
	zap.L().Info("Administrator resolving transfer",
		zap.Uint64("item_id", itemId),
		zap.Bool("succeeded", succeeded))
	return s.settleLocked(ctx, item.TransferRef, succeeded, reason)
}

func (s *Service) settleLocked(ctx context.Context, transferRef string, succeeded bool, reason string) (*models.ProcessResult, error) {
	now := s.clock.Now()

	var (
		result  *models.ProcessResult
		records []models.HistoryRecord
	)
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		item, err := tx.FindQueueItemByTransferRef(ctx, transferRef)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: transfer %s", ErrItemNotFound, transferRef)
		}
		if err != nil {
			return err
		}

		fee, net := Split(item.Amount, item.FeeRateBps)
		result = &models.ProcessResult{
			ItemId:      item.Id,
			Fee:         fee,
			Net:         net,
			TransferRef: item.TransferRef,
			Reason:      item.FailureReason,
		}

		switch item.State {
		case models.ItemCompleted:
			result.Outcome = models.OutcomeCompleted
			if !succeeded {
				zap.L().Warn("Ignoring failure notice for completed item",
					zap.Uint64("item_id", item.Id),
					zap.String("transfer_ref", transferRef))
			}
			return nil
		case models.ItemFailed:
			result.Outcome = models.OutcomeFailed
			return nil
		case models.ItemProcessing:
		default:
			return fmt.Errorf("%w: item %d is %s", ErrTransferNotPending, item.Id, item.State)
		}

		state, err := tx.GetPoolState(ctx)
		if err != nil {
			return err
		}

		item.SettledAt = now
		state.PendingAmount = state.PendingAmount.Sub(item.Amount)
		if state.QueueSize > 0 {
			state.QueueSize--
		}

		if succeeded {
			item.State = models.ItemCompleted
			state.Balance = state.Balance.Sub(item.Amount)
			state.RetainedFees = state.RetainedFees.Add(fee)
			state.TotalWithdrawn = state.TotalWithdrawn.Add(net)
			state.CompletedCount++
			state.LastProcessedAt = now
			result.Outcome = models.OutcomeCompleted

			records = []models.HistoryRecord{
				{
					Id:         uuid.New().String(),
					Kind:       models.HistoryPayout,
					Account:    item.Recipient,
					Amount:     net,
					FeeRateBps: item.FeeRateBps,
					Status:     HistoryStatusCompleted,
					Reference:  item.TransferRef,
					Timestamp:  now,
				},
				{
					Id:         uuid.New().String(),
					Kind:       models.HistoryFee,
					Amount:     fee,
					FeeRateBps: item.FeeRateBps,
					Status:     HistoryStatusRetained,
					Reference:  item.TransferRef,
					Timestamp:  now,
				},
			}
		} else {
			item.State = models.ItemFailed
			item.FailureReason = reason
			state.FailedCount++
			result.Outcome = models.OutcomeFailed
			result.Reason = reason

			records = []models.HistoryRecord{{
				Id:         uuid.New().String(),
				Kind:       models.HistoryPayout,
				Account:    item.Recipient,
				Amount:     net,
				FeeRateBps: item.FeeRateBps,
				Status:     HistoryStatusFailed,
				Reference:  item.TransferRef,
				Timestamp:  now,
			}}
		}

		if err := tx.UpdateQueueItem(ctx, item, models.ItemProcessing); err != nil {
			return err
		}
		if err := tx.SavePoolState(ctx, state); err != nil {
			return err
		}
		records, err = appendHistory(ctx, tx, records...)
		return err
	})
	if err != nil {
		zap.L().Error("Failed to settle transfer", zap.String("transfer_ref", transferRef), zap.Error(err))
		return nil, err
	}

	if len(records) == 0 {
		zap.L().Debug("Transfer already settled",
			zap.Uint64("item_id", result.ItemId),
			zap.String("outcome", string(result.Outcome)))
		return result, nil
	}

	if result.Outcome == models.OutcomeCompleted {
		zap.L().Info("Payout completed",
			zap.Uint64("item_id", result.ItemId),
			zap.String("net", result.Net.String()),
			zap.String("fee", result.Fee.String()),
			zap.String("transfer_ref", result.TransferRef))
	} else {
		zap.L().Warn("Payout failed, funds remain pooled",
			zap.Uint64("item_id", result.ItemId),
			zap.String("transfer_ref", result.TransferRef),
			zap.String("reason", result.Reason))
	}

	s.publish(ctx, records...)
	return result, nil
}
