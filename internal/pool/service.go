package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Clock supplies the current logical time
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// TransferStatus is the outcome a Transferor reports when a transfer is initiated
type TransferStatus string

const (
	TransferSucceeded TransferStatus = "succeeded"
	TransferFailed    TransferStatus = "failed"
	// TransferPending means the outcome arrives later through SettleTransfer
	TransferPending TransferStatus = "pending"
)

// TransferRequest moves value out of the pool to an external recipient.
// Reference is unique per transfer and doubles as the idempotency key.
type TransferRequest struct {
	Reference string
	Recipient string
	Amount    decimal.Decimal
	ItemId    uint64
}

type TransferResult struct {
	Status     TransferStatus
	Reason     string
	ExternalId string
}

// Transferor is the host's value-moving capability
type Transferor interface {
	Transfer(ctx context.Context, req TransferRequest) (TransferResult, error)
}

// HistorySink receives every history record after the operation that
// produced it has committed. Sink failures never affect the pool; rejected
// records are kept for RetryPublish.
type HistorySink interface {
	Record(ctx context.Context, record models.HistoryRecord) error
}

type Option func(*Service)

func WithClock(clock Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func WithHistorySink(sink HistorySink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithEmergencyRecipient sets where emergency withdrawals are sent.
// Without it they go to the administrator account.
func WithEmergencyRecipient(account string) Option {
	return func(s *Service) { s.emergencyRecipient = account }
}

// Service is the pool core: deposit ledger, withdrawal scheduler, queue
// processor and administrative operations over a store.PoolStore.
type Service struct {
	// mu serializes operations within the process; the store's
	// transactions serialize them across processes. Transfers run without it.
	mu                 sync.Mutex
	store              store.PoolStore
	transferor         Transferor
	clock              Clock
	sink               HistorySink
	emergencyRecipient string

	unpublishedMu sync.Mutex
	unpublished   []models.HistoryRecord
}

// maxUnpublished bounds the records kept for a sink that stays down.
// ReplayHistory covers anything dropped beyond it.
const maxUnpublished = 10_000

func NewService(st store.PoolStore, transferor Transferor, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("pool store cannot be nil")
	}
	if transferor == nil {
		return nil, fmt.Errorf("transferor cannot be nil")
	}

	s := &Service{
		store:      st,
		transferor: transferor,
		clock:      systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// InitializeParameters stores params if the pool has none yet. It returns
// false when parameters already exist; those are left as they are.
func (s *Service) InitializeParameters(ctx context.Context, params *models.Parameters) (bool, error) {
	if err := ValidateParameters(params); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := false
	err := s.store.RunInTx(ctx, func(tx store.Tx) error {
		_, err := tx.GetParameters(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		snapshot := *params
		snapshot.UpdatedAt = s.clock.Now()
		if err := tx.SaveParameters(ctx, &snapshot); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to initialize parameters: %w", err)
	}

	if created {
		zap.L().Info("Pool parameters initialized",
			zap.String("admin_id", params.AdminId),
			zap.Uint16("current_fee_rate_bps", params.CurrentFeeRateBps),
			zap.Uint64("max_queue_size", params.MaxQueueSize))
	}
	return created, nil
}

// ValidateParameters checks that a parameter snapshot is internally consistent
func ValidateParameters(p *models.Parameters) error {
	if p == nil {
		return fmt.Errorf("%w: parameters are required", ErrInvalidParameters)
	}

	switch {
	case p.AdminId == "":
		return fmt.Errorf("%w: admin id cannot be empty", ErrInvalidParameters)
	case p.MaxFeeRateBps > BasisPointsDenominator:
		return fmt.Errorf("%w: max fee rate %d exceeds %d bps", ErrInvalidParameters, p.MaxFeeRateBps, BasisPointsDenominator)
	case p.MinFeeRateBps > p.MaxFeeRateBps:
		return fmt.Errorf("%w: min fee rate %d above max %d", ErrInvalidParameters, p.MinFeeRateBps, p.MaxFeeRateBps)
	case p.CurrentFeeRateBps < p.MinFeeRateBps || p.CurrentFeeRateBps > p.MaxFeeRateBps:
		return fmt.Errorf("%w: current fee rate %d outside [%d, %d]", ErrInvalidParameters, p.CurrentFeeRateBps, p.MinFeeRateBps, p.MaxFeeRateBps)
	case p.MinDelay < 0 || p.MinDelay > p.MaxDelay:
		return fmt.Errorf("%w: delay range [%v, %v]", ErrInvalidParameters, p.MinDelay, p.MaxDelay)
	case p.WithdrawalTimeout <= 0:
		return fmt.Errorf("%w: withdrawal timeout must be positive", ErrInvalidParameters)
	case p.MaxQueueSize == 0:
		return fmt.Errorf("%w: max queue size must be positive", ErrInvalidParameters)
	case p.MaxPartsPerSplit < 1:
		return fmt.Errorf("%w: max parts per split must be at least 1", ErrInvalidParameters)
	}

	for _, amount := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"min deposit", p.MinDeposit},
		{"max deposit", p.MaxDeposit},
		{"min withdraw", p.MinWithdraw},
		{"operational reserve", p.OperationalReserve},
	} {
		if amount.value.IsNegative() || !amount.value.IsInteger() {
			return fmt.Errorf("%w: %s must be a non-negative integer, got %s", ErrInvalidParameters, amount.name, amount.value)
		}
	}
	if p.MaxDeposit.IsZero() || p.MinDeposit.GreaterThan(p.MaxDeposit) {
		return fmt.Errorf("%w: deposit range [%s, %s]", ErrInvalidParameters, p.MinDeposit, p.MaxDeposit)
	}
	return nil
}

func (s *Service) parameters(ctx context.Context, r store.Reader) (*models.Parameters, error) {
	params, err := r.GetParameters(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("pool parameters not initialized: %w", err)
	}
	return params, err
}

// requireAdmin loads the parameters and checks caller against the administrator
func (s *Service) requireAdmin(ctx context.Context, r store.Reader, caller string) (*models.Parameters, error) {
	params, err := s.parameters(ctx, r)
	if err != nil {
		return nil, err
	}
	if caller == "" || caller != params.AdminId {
		return nil, ErrUnauthorized
	}
	return params, nil
}

// publish hands committed history records to the sink. Records it rejects
// are queued for RetryPublish.
func (s *Service) publish(ctx context.Context, records ...models.HistoryRecord) {
	if s.sink == nil {
		return
	}
	for _, record := range records {
		if err := s.sink.Record(ctx, record); err != nil {
			zap.L().Warn("Failed to publish history record, queued for retry",
				zap.String("history_id", record.Id),
				zap.String("kind", string(record.Kind)),
				zap.Error(err))
			s.queueUnpublished(record)
		}
	}
}

func (s *Service) queueUnpublished(records ...models.HistoryRecord) {
	s.unpublishedMu.Lock()
	defer s.unpublishedMu.Unlock()

	s.unpublished = append(s.unpublished, records...)
	if overflow := len(s.unpublished) - maxUnpublished; overflow > 0 {
		zap.L().Error("Dropping unpublished history records, replay history to recover",
			zap.Int("dropped", overflow),
			zap.Uint64("first_dropped_seq", s.unpublished[0].Seq))
		s.unpublished = append([]models.HistoryRecord(nil), s.unpublished[overflow:]...)
	}
}

// UnpublishedCount returns how many history records wait for RetryPublish
func (s *Service) UnpublishedCount() int {
	s.unpublishedMu.Lock()
	defer s.unpublishedMu.Unlock()
	return len(s.unpublished)
}

// RetryPublish hands records the sink rejected earlier back to it, oldest
// first. It stops at the first failure and keeps the rest queued. It returns
// how many records were accepted.
func (s *Service) RetryPublish(ctx context.Context) (int, error) {
	if s.sink == nil {
		return 0, nil
	}

	s.unpublishedMu.Lock()
	backlog := s.unpublished
	s.unpublished = nil
	s.unpublishedMu.Unlock()

	for i, record := range backlog {
		if err := s.sink.Record(ctx, record); err != nil {
			s.unpublishedMu.Lock()
			s.unpublished = append(append([]models.HistoryRecord(nil), backlog[i:]...), s.unpublished...)
			s.unpublishedMu.Unlock()
			return i, fmt.Errorf("failed to republish history record %s: %w", record.Id, err)
		}
	}

	if len(backlog) > 0 {
		zap.L().Info("Republished history records", zap.Int("count", len(backlog)))
	}
	return len(backlog), nil
}

const replayPageSize = 500

// ReplayHistory sends every history record from offset onward to the sink.
// The sink treats the history id as an idempotency key, so records it has
// already seen are harmless. Use it after a restart lost the retry queue.
func (s *Service) ReplayHistory(ctx context.Context, offset int) (int, error) {
	if s.sink == nil {
		return 0, fmt.Errorf("no history sink configured")
	}
	if offset < 0 {
		offset = 0
	}

	replayed := 0
	for {
		records, err := s.store.GetHistory(ctx, offset+replayed, replayPageSize)
		if err != nil {
			return replayed, fmt.Errorf("failed to read history: %w", err)
		}
		for _, record := range records {
			if err := s.sink.Record(ctx, record); err != nil {
				return replayed, fmt.Errorf("failed to replay history record %s (seq %d): %w", record.Id, record.Seq, err)
			}
			replayed++
		}
		if len(records) < replayPageSize {
			break
		}
	}

	zap.L().Info("History replayed", zap.Int("offset", offset), zap.Int("count", replayed))
	return replayed, nil
}

// appendHistory writes records inside tx and returns them with sequence numbers set
func appendHistory(ctx context.Context, tx store.Tx, records ...models.HistoryRecord) ([]models.HistoryRecord, error) {
	for i := range records {
		if err := tx.AppendHistory(ctx, &records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}
