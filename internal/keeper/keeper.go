// Package keeper drives the withdrawal queue: every tick it asks the pool for
// the next ready item and processes it, one item per call, until the queue
// has nothing ready or the per-tick budget is spent.
package keeper

import (
	"context"
	"fmt"
	"time"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/pool"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Processor is the part of the pool the keeper drives
type Processor interface {
	NextReadyItem(ctx context.Context) (uint64, bool, error)
	ProcessItem(ctx context.Context, itemId uint64) (*models.ProcessResult, error)
	CheckSolvency(ctx context.Context) (*models.SolvencyReport, error)
	PoolState(ctx context.Context) (*models.PoolState, error)
	RetryPublish(ctx context.Context) (int, error)
}

// Recorder receives keeper activity. *metrics.Collector implements it.
type Recorder interface {
	RecordOutcome(outcome models.ProcessOutcome)
	RecordError()
	RecordTick(duration time.Duration)
	ObservePoolState(state *models.PoolState)
	RecordSolvency(report *models.SolvencyReport)
}

type Config struct {
	Pool              Processor
	Lock              Locker
	Metrics           Recorder
	PollingInterval   time.Duration
	MaxItemsPerTick   int
	ReconcileSchedule string
}

type Keeper struct {
	pool              Processor
	lock              Locker
	metrics           Recorder
	pollingInterval   time.Duration
	maxItemsPerTick   int
	reconcileSchedule string
}

func New(cfg Config) (*Keeper, error) {
	if cfg.Pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	if cfg.PollingInterval <= 0 {
		return nil, fmt.Errorf("polling interval must be positive")
	}
	if cfg.MaxItemsPerTick <= 0 {
		return nil, fmt.Errorf("max items per tick must be positive")
	}
	if cfg.ReconcileSchedule != "" {
		if _, err := cron.ParseStandard(cfg.ReconcileSchedule); err != nil {
			return nil, fmt.Errorf("invalid reconcile schedule %q: %w", cfg.ReconcileSchedule, err)
		}
	}

	lock := cfg.Lock
	if lock == nil {
		lock = LocalLock{}
	}

	return &Keeper{
		pool:              cfg.Pool,
		lock:              lock,
		metrics:           cfg.Metrics,
		pollingInterval:   cfg.PollingInterval,
		maxItemsPerTick:   cfg.MaxItemsPerTick,
		reconcileSchedule: cfg.ReconcileSchedule,
	}, nil
}

// Run ticks until ctx is done. The reconcile job runs on its own schedule.
func (k *Keeper) Run(ctx context.Context) error {
	var scheduler *cron.Cron
	if k.reconcileSchedule != "" {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(k.reconcileSchedule, func() {
			if _, err := k.Reconcile(ctx); err != nil {
				zap.L().Error("Reconciliation failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("failed to schedule reconciliation: %w", err)
		}
		scheduler.Start()
	}

	zap.L().Info("Keeper started",
		zap.Duration("polling_interval", k.pollingInterval),
		zap.Int("max_items_per_tick", k.maxItemsPerTick),
		zap.String("reconcile_schedule", k.reconcileSchedule))

	ticker := time.NewTicker(k.pollingInterval)
	defer ticker.Stop()

	for {
		if _, err := k.Tick(ctx); err != nil {
			zap.L().Error("Keeper tick failed", zap.Error(err))
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			if scheduler != nil {
				<-scheduler.Stop().Done()
			}
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := k.lock.Release(releaseCtx); err != nil {
				zap.L().Warn("Failed to release keeper lock", zap.Error(err))
			}
			zap.L().Info("Keeper stopped")
			return nil
		}
	}
}

// Tick processes ready items while it holds the lock. It returns how many
// items were processed.
func (k *Keeper) Tick(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		if k.metrics != nil {
			k.metrics.RecordTick(time.Since(start))
		}
	}()

	held, err := k.lock.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	if !held {
		zap.L().Debug("Another keeper holds the lock, skipping tick")
		return 0, nil
	}

	processed := 0
	for processed < k.maxItemsPerTick {
		itemId, ok, err := k.pool.NextReadyItem(ctx)
		if err != nil {
			return processed, err
		}
		if !ok {
			break
		}

		result, err := k.pool.ProcessItem(ctx, itemId)
		if err != nil {
			k.recordError()
			if pool.IsValidationError(err) {
				// Raced with another caller; the next tick sees fresh state
				zap.L().Warn("Ready item could not be processed",
					zap.Uint64("item_id", itemId),
					zap.String("kind", pool.ErrorKind(err)),
					zap.Error(err))
				break
			}
			return processed, fmt.Errorf("failed to process item %d: %w", itemId, err)
		}

		processed++
		if k.metrics != nil {
			k.metrics.RecordOutcome(result.Outcome)
		}
	}

	if processed > 0 {
		zap.L().Info("Keeper tick processed items", zap.Int("count", processed))
		k.refreshState(ctx)
	}
	return processed, nil
}

// Reconcile republishes history the ledger mirror missed, runs the solvency
// check and refreshes the performance gauges.
func (k *Keeper) Reconcile(ctx context.Context) (*models.SolvencyReport, error) {
	if published, err := k.pool.RetryPublish(ctx); err != nil {
		zap.L().Warn("History republish incomplete", zap.Int("published", published), zap.Error(err))
	}

	report, err := k.pool.CheckSolvency(ctx)
	if err != nil {
		return nil, err
	}
	if k.metrics != nil {
		k.metrics.RecordSolvency(report)
	}
	k.refreshState(ctx)
	return report, nil
}

func (k *Keeper) refreshState(ctx context.Context) {
	if k.metrics == nil {
		return
	}
	state, err := k.pool.PoolState(ctx)
	if err != nil {
		zap.L().Warn("Failed to refresh pool state metrics", zap.Error(err))
		return
	}
	k.metrics.ObservePoolState(state)
}

func (k *Keeper) recordError() {
	if k.metrics != nil {
		k.metrics.RecordError()
	}
}
