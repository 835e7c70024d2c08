package pool

import (
	"context"
	"fmt"

	"delayed-pool-go/internal/models"

	"go.uber.org/zap"
)

// CheckSolvency recomputes the committed amount from active queue items and
// compares it with the cached aggregates and the pooled balance.
func (s *Service) CheckSolvency(ctx context.Context) (*models.SolvencyReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.GetPoolState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read pool state: %w", err)
	}
	calculated, active, err := s.store.SumActiveItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to sum active items: %w", err)
	}

	report := &models.SolvencyReport{
		Balance:           state.Balance,
		CachedPending:     state.PendingAmount,
		CalculatedPending: calculated,
		ActiveItems:       active,
		CachedQueueSize:   state.QueueSize,
		CheckedAt:         s.clock.Now(),
	}
	report.Healthy = calculated.Equal(state.PendingAmount) &&
		active == state.QueueSize &&
		!state.Balance.LessThan(calculated) &&
		!state.RetainedFees.IsNegative()

	if report.Healthy {
		zap.L().Debug("Solvency check passed",
			zap.String("balance", state.Balance.String()),
			zap.String("pending", calculated.String()),
			zap.Uint64("active_items", active))
	} else {
		zap.L().Error("Solvency check failed",
			zap.String("balance", state.Balance.String()),
			zap.String("cached_pending", state.PendingAmount.String()),
			zap.String("calculated_pending", calculated.String()),
			zap.Uint64("cached_queue_size", state.QueueSize),
			zap.Uint64("active_items", active))
	}
	return report, nil
}
