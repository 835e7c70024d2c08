package keeper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"delayed-pool-go/internal/database"
	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/pool"
	"delayed-pool-go/internal/transfer"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	ready      []uint64
	processed  []uint64
	processErr error
	solvency   *models.SolvencyReport
	republish  int
	publishErr error
}

func (f *fakeProcessor) NextReadyItem(context.Context) (uint64, bool, error) {
	if len(f.ready) == 0 {
		return 0, false, nil
	}
	return f.ready[0], true, nil
}

func (f *fakeProcessor) ProcessItem(_ context.Context, id uint64) (*models.ProcessResult, error) {
	if f.processErr != nil {
		return nil, f.processErr
	}
	f.ready = f.ready[1:]
	f.processed = append(f.processed, id)
	return &models.ProcessResult{ItemId: id, Outcome: models.OutcomeCompleted}, nil
}

func (f *fakeProcessor) CheckSolvency(context.Context) (*models.SolvencyReport, error) {
	return f.solvency, nil
}

func (f *fakeProcessor) PoolState(context.Context) (*models.PoolState, error) {
	return &models.PoolState{QueueSize: uint64(len(f.ready))}, nil
}

func (f *fakeProcessor) RetryPublish(context.Context) (int, error) {
	f.republish++
	return 0, f.publishErr
}

type fakeLock struct {
	held     bool
	released bool
}

func (l *fakeLock) Acquire(context.Context) (bool, error) { return l.held, nil }
func (l *fakeLock) Release(context.Context) error {
	l.released = true
	return nil
}

type fakeRecorder struct {
	outcomes  map[models.ProcessOutcome]int
	errors    int
	ticks     int
	lastState *models.PoolState
	solvent   *bool
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{outcomes: map[models.ProcessOutcome]int{}}
}

func (r *fakeRecorder) RecordOutcome(outcome models.ProcessOutcome) { r.outcomes[outcome]++ }
func (r *fakeRecorder) RecordError()                                { r.errors++ }
func (r *fakeRecorder) RecordTick(time.Duration)                    { r.ticks++ }
func (r *fakeRecorder) ObservePoolState(state *models.PoolState)    { r.lastState = state }
func (r *fakeRecorder) RecordSolvency(report *models.SolvencyReport) {
	healthy := report.Healthy
	r.solvent = &healthy
}

func newTestKeeper(t *testing.T, p Processor, lock Locker, recorder Recorder, maxItems int) *Keeper {
	t.Helper()
	k, err := New(Config{
		Pool:              p,
		Lock:              lock,
		Metrics:           recorder,
		PollingInterval:   time.Second,
		MaxItemsPerTick:   maxItems,
		ReconcileSchedule: "@every 1m",
	})
	require.NoError(t, err)
	return k
}

func TestTick_RespectsBudget(t *testing.T) {
	p := &fakeProcessor{ready: []uint64{1, 2, 3, 4, 5}}
	recorder := newFakeRecorder()
	k := newTestKeeper(t, p, &fakeLock{held: true}, recorder, 3)

	processed, err := k.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, processed)
	assert.Equal(t, []uint64{1, 2, 3}, p.processed)
	assert.Equal(t, 3, recorder.outcomes[models.OutcomeCompleted])
	assert.Equal(t, 1, recorder.ticks)
	require.NotNil(t, recorder.lastState)
	assert.Equal(t, uint64(2), recorder.lastState.QueueSize)

	processed, err = k.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, processed)
}

func TestTick_SkipsWithoutLock(t *testing.T) {
	p := &fakeProcessor{ready: []uint64{1}}
	k := newTestKeeper(t, p, &fakeLock{held: false}, nil, 10)

	processed, err := k.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Empty(t, p.processed)
}

func TestTick_StopsOnValidationError(t *testing.T) {
	p := &fakeProcessor{ready: []uint64{1}, processErr: fmt.Errorf("%w: item 1", pool.ErrItemNotActive)}
	recorder := newFakeRecorder()
	k := newTestKeeper(t, p, nil, recorder, 10)

	processed, err := k.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed)
	assert.Equal(t, 1, recorder.errors)
}

func TestTick_ReturnsStorageError(t *testing.T) {
	p := &fakeProcessor{ready: []uint64{1}, processErr: errors.New("disk I/O error")}
	k := newTestKeeper(t, p, nil, nil, 10)

	_, err := k.Tick(context.Background())
	assert.Error(t, err)
}

func TestRunReleasesLockOnShutdown(t *testing.T) {
	lock := &fakeLock{held: true}
	k := newTestKeeper(t, &fakeProcessor{}, lock, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, k.Run(ctx))
	assert.True(t, lock.released)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Pool: &fakeProcessor{}, PollingInterval: time.Second, MaxItemsPerTick: 1, ReconcileSchedule: "not a schedule"})
	assert.Error(t, err)

	_, err = New(Config{Pool: &fakeProcessor{}, PollingInterval: time.Second})
	assert.Error(t, err)
}

func TestReconcile_RetriesPublishing(t *testing.T) {
	p := &fakeProcessor{
		solvency:   &models.SolvencyReport{Healthy: true},
		publishErr: errors.New("ledger unavailable"),
	}
	recorder := newFakeRecorder()
	k := newTestKeeper(t, p, nil, recorder, 1)

	report, err := k.Reconcile(context.Background())
	require.NoError(t, err, "a mirror outage does not fail reconciliation")
	assert.True(t, report.Healthy)
	assert.Equal(t, 1, p.republish)
	require.NotNil(t, recorder.solvent)
	assert.True(t, *recorder.solvent)
}

func TestKeeper_DrainsRealPool(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	service, err := pool.NewService(db, transfer.NewDryRun())
	require.NoError(t, err)

	_, err = service.InitializeParameters(ctx, &models.Parameters{
		MinFeeRateBps:      0,
		MaxFeeRateBps:      500,
		CurrentFeeRateBps:  100,
		MinDelay:           0,
		MaxDelay:           time.Hour,
		MinDeposit:         decimal.NewFromInt(1),
		MaxDeposit:         decimal.NewFromInt(1_000_000),
		MinWithdraw:        decimal.NewFromInt(1),
		OperationalReserve: decimal.Zero,
		WithdrawalTimeout:  24 * time.Hour,
		MaxQueueSize:       10,
		MaxPartsPerSplit:   3,
		AdminId:            "admin-ops",
	})
	require.NoError(t, err)

	depositId, err := service.Deposit(ctx, "depositor-1", decimal.NewFromInt(30_000))
	require.NoError(t, err)
	_, err = service.ScheduleWithdrawal(ctx, "admin-ops", depositId, []models.PayoutPart{
		{Recipient: "recipient-a", Amount: decimal.NewFromInt(10_000), FeeRateBps: 100},
		{Recipient: "recipient-b", Amount: decimal.NewFromInt(20_000), FeeRateBps: 200},
	})
	require.NoError(t, err)

	recorder := newFakeRecorder()
	k := newTestKeeper(t, service, nil, recorder, 10)

	processed, err := k.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, processed)

	report, err := k.Reconcile(ctx)
	require.NoError(t, err)
	assert.True(t, report.Healthy)
	require.NotNil(t, recorder.solvent)
	assert.True(t, *recorder.solvent)

	state := recorder.lastState
	require.NotNil(t, state)
	assert.Equal(t, uint64(0), state.QueueSize)
	assert.Equal(t, uint64(2), state.CompletedCount)
	// fees: 10000*100/10000 = 100, 20000*200/10000 = 400
	assert.True(t, state.RetainedFees.Equal(decimal.NewFromInt(500)), state.RetainedFees.String())
	assert.True(t, state.Balance.IsZero(), state.Balance.String())
}
