package pool

import (
	"context"
	"errors"
	"fmt"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/store"
)

func (s *Service) Parameters(ctx context.Context) (*models.Parameters, error) {
	return s.parameters(ctx, s.store)
}

func (s *Service) Admin(ctx context.Context) (string, error) {
	params, err := s.parameters(ctx, s.store)
	if err != nil {
		return "", err
	}
	return params.AdminId, nil
}

// QueueItem returns the item with its state resolved against the current time
func (s *Service) QueueItem(ctx context.Context, id uint64) (*models.QueueItem, error) {
	item, err := s.store.GetQueueItem(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	item.State = item.EffectiveState(s.clock.Now())
	return item, nil
}

// ListQueueItems lists items in id order. Filtering by ItemReady selects
// waiting items whose ready time has passed.
func (s *Service) ListQueueItems(ctx context.Context, filter store.QueueFilter) ([]models.QueueItem, error) {
	now := s.clock.Now()
	wantReady := filter.State == models.ItemReady
	if wantReady {
		filter.State = models.ItemWaiting
	}

	items, err := s.store.ListQueueItems(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := make([]models.QueueItem, 0, len(items))
	for _, item := range items {
		item.State = item.EffectiveState(now)
		if wantReady && item.State != models.ItemReady {
			continue
		}
		result = append(result, item)
	}
	return result, nil
}

// FailedItems lists bounced payouts awaiting manual reconciliation
func (s *Service) FailedItems(ctx context.Context) ([]models.QueueItem, error) {
	return s.store.ListQueueItems(ctx, store.QueueFilter{State: models.ItemFailed})
}

func (s *Service) QueueSummary(ctx context.Context) (*models.QueueSummary, error) {
	state, err := s.store.GetPoolState(ctx)
	if err != nil {
		return nil, err
	}
	ready, err := s.store.CountReadyItems(ctx, s.clock.Now())
	if err != nil {
		return nil, err
	}
	inFlight, err := s.store.ListQueueItems(ctx, store.QueueFilter{State: models.ItemProcessing})
	if err != nil {
		return nil, err
	}

	return &models.QueueSummary{
		Length:        state.QueueSize,
		PendingAmount: state.PendingAmount,
		ReadyCount:    ready,
		InFlightCount: uint64(len(inFlight)),
	}, nil
}

func (s *Service) Performance(ctx context.Context) (*models.PerformanceCounters, error) {
	state, err := s.store.GetPoolState(ctx)
	if err != nil {
		return nil, err
	}
	return &models.PerformanceCounters{
		LastProcessedAt:  state.LastProcessedAt,
		FailedCount:      state.FailedCount,
		CompletedCount:   state.CompletedCount,
		CurrentQueueSize: state.QueueSize,
	}, nil
}

// PoolState returns the pooled balance with its cached aggregates
func (s *Service) PoolState(ctx context.Context) (*models.PoolState, error) {
	return s.store.GetPoolState(ctx)
}

// History returns records from offset onwards, at most limit of them
// (limit <= 0 returns the whole suffix).
func (s *Service) History(ctx context.Context, offset, limit int) ([]models.HistoryRecord, error) {
	return s.store.GetHistory(ctx, offset, limit)
}

func (s *Service) HistoryLength(ctx context.Context) (uint64, error) {
	return s.store.HistoryLength(ctx)
}

func (s *Service) IsBlacklisted(ctx context.Context, account string) (bool, error) {
	return s.store.IsBlacklisted(ctx, account)
}

func (s *Service) Blacklist(ctx context.Context) ([]string, error) {
	return s.store.ListBlacklist(ctx)
}

// Oracle returns the stored rate, or nil when none has been set
func (s *Service) Oracle(ctx context.Context) (*models.OracleValue, error) {
	oracle, err := s.store.GetOracle(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return oracle, err
}

// PendingEmergencyTransfers lists emergency withdrawals still awaiting an outcome
func (s *Service) PendingEmergencyTransfers(ctx context.Context) ([]models.EmergencyTransfer, error) {
	return s.store.ListEmergencyTransfers(ctx, models.EmergencyPending)
}
