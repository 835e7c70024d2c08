package store

import (
	"context"
	"errors"
	"time"

	"delayed-pool-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound               = errors.New("record not found")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// QueueFilter narrows ListQueueItems. Zero values mean "any".
type QueueFilter struct {
	State  models.QueueItemState
	Limit  int
	Offset int
}

// Reader is the read side of the pool store. It is available both outside
// and inside a transaction.
type Reader interface {
	GetParameters(ctx context.Context) (*models.Parameters, error)
	GetPoolState(ctx context.Context) (*models.PoolState, error)
	GetDeposit(ctx context.Context, id uint64) (*models.Deposit, error)
	GetQueueItem(ctx context.Context, id uint64) (*models.QueueItem, error)
	FindQueueItemByTransferRef(ctx context.Context, ref string) (*models.QueueItem, error)
	// NextReadyItemId returns the lowest id among waiting items whose ready
	// time is at or before now.
	NextReadyItemId(ctx context.Context, now time.Time) (uint64, bool, error)
	CountReadyItems(ctx context.Context, now time.Time) (uint64, error)
	ListQueueItems(ctx context.Context, filter QueueFilter) ([]models.QueueItem, error)
	SumActiveItems(ctx context.Context) (total decimal.Decimal, count uint64, err error)
	IsBlacklisted(ctx context.Context, account string) (bool, error)
	ListBlacklist(ctx context.Context) ([]string, error)
	GetHistory(ctx context.Context, offset, limit int) ([]models.HistoryRecord, error)
	HistoryLength(ctx context.Context) (uint64, error)
	GetOracle(ctx context.Context) (*models.OracleValue, error)
	GetEmergencyTransfer(ctx context.Context, ref string) (*models.EmergencyTransfer, error)
	// ListEmergencyTransfers returns transfers in creation order. An empty
	// state means all of them.
	ListEmergencyTransfers(ctx context.Context, state models.EmergencyState) ([]models.EmergencyTransfer, error)
}

// Tx is a unit of work. All writes of one pool operation go through a single Tx.
type Tx interface {
	Reader

	InsertDeposit(ctx context.Context, deposit *models.Deposit) (uint64, error)
	UpdateDepositStatus(ctx context.Context, id uint64, from, to models.DepositStatus) error
	InsertQueueItem(ctx context.Context, item *models.QueueItem) (uint64, error)
	UpdateQueueItem(ctx context.Context, item *models.QueueItem, from models.QueueItemState) error
	SavePoolState(ctx context.Context, state *models.PoolState) error
	SaveParameters(ctx context.Context, params *models.Parameters) error
	SetBlacklisted(ctx context.Context, account string, banned bool) error
	AppendHistory(ctx context.Context, record *models.HistoryRecord) error
	SaveOracle(ctx context.Context, oracle *models.OracleValue) error
	InsertEmergencyTransfer(ctx context.Context, transfer *models.EmergencyTransfer) error
	UpdateEmergencyTransfer(ctx context.Context, transfer *models.EmergencyTransfer, from models.EmergencyState) error
}

// PoolStore defines the contract that every backend must satisfy.
type PoolStore interface {
	Reader

	// RunInTx executes fn inside one transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	// --- Lifecycle ---
	Close()
}
