package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositStatus is the lifecycle state of a deposit record
type DepositStatus string

const (
	DepositPending   DepositStatus = "pending"
	DepositScheduled DepositStatus = "scheduled"
)

// Deposit is an anonymized record of funds entering the pool.
// It deliberately has no field for the funding account.
type Deposit struct {
	Id        uint64          `db:"id" json:"id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	Status    DepositStatus   `db:"status" json:"status"`
}

// QueueItemState is the stored state of a scheduled payout.
// Ready is never stored; it is derived from ReadyAt by EffectiveState.
type QueueItemState string

const (
	ItemWaiting    QueueItemState = "waiting"
	ItemReady      QueueItemState = "ready"
	ItemProcessing QueueItemState = "processing"
	ItemCompleted  QueueItemState = "completed"
	ItemFailed     QueueItemState = "failed"
)

// QueueItem is a scheduled, time-delayed payout derived from a deposit
type QueueItem struct {
	Id              uint64          `db:"id" json:"id"`
	SourceDepositId uint64          `db:"source_deposit_id" json:"source_deposit_id"`
	Recipient       string          `db:"recipient" json:"recipient"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	FeeRateBps      uint16          `db:"fee_rate_bps" json:"fee_rate_bps"`
	ReadyAt         time.Time       `db:"ready_at" json:"ready_at"`
	State           QueueItemState  `db:"state" json:"state"`
	TransferRef     string          `db:"transfer_ref" json:"transfer_ref,omitempty"`
	FailureReason   string          `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	SettledAt       time.Time       `db:"settled_at" json:"settled_at,omitempty"`
}

// IsActive reports whether the item still counts against the queue capacity
func (q *QueueItem) IsActive() bool {
	return q.State == ItemWaiting || q.State == ItemProcessing
}

// EffectiveState returns the state as seen at now, resolving Waiting into Ready
func (q *QueueItem) EffectiveState(now time.Time) QueueItemState {
	if q.State == ItemWaiting && !now.Before(q.ReadyAt) {
		return ItemReady
	}
	return q.State
}

// EmergencyState is the lifecycle state of an emergency transfer
type EmergencyState string

const (
	EmergencyPending   EmergencyState = "pending"
	EmergencyCompleted EmergencyState = "completed"
	EmergencyFailed    EmergencyState = "failed"
)

// EmergencyTransfer is an administrator withdrawal that bypasses the queue.
// Its amount is debited from the pooled balance while pending and credited
// back if the transfer fails.
type EmergencyTransfer struct {
	Reference string          `db:"reference" json:"reference"`
	Recipient string          `db:"recipient" json:"recipient"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	State     EmergencyState  `db:"state" json:"state"`
	Reason    string          `db:"failure_reason" json:"reason,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	SettledAt time.Time       `db:"settled_at" json:"settled_at,omitempty"`
}

// HistoryKind categorizes history records
type HistoryKind string

const (
	HistoryDeposit   HistoryKind = "deposit"
	HistoryPayout    HistoryKind = "payout"
	HistoryFee       HistoryKind = "fee"
	HistoryEmergency HistoryKind = "emergency_withdrawal"
)

// HistoryRecord is an append-only audit entry (cold data)
type HistoryRecord struct {
	Seq        uint64          `db:"seq" json:"seq"`
	Id         string          `db:"id" json:"id"`
	Kind       HistoryKind     `db:"kind" json:"kind"`
	Account    string          `db:"account" json:"account"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	FeeRateBps uint16          `db:"fee_rate_bps" json:"fee_rate_bps"`
	Status     string          `db:"status" json:"status"`
	Reference  string          `db:"reference" json:"reference,omitempty"`
	Timestamp  time.Time       `db:"timestamp" json:"timestamp"`
}

// PoolState holds the pooled balance and the cached aggregates that are
// updated in the same transaction as the records they summarize (hot data)
type PoolState struct {
	Balance         decimal.Decimal `db:"balance" json:"balance"`
	PendingAmount   decimal.Decimal `db:"pending_amount" json:"pending_amount"`
	RetainedFees    decimal.Decimal `db:"retained_fees" json:"retained_fees"`
	TotalDeposited  decimal.Decimal `db:"total_deposited" json:"total_deposited"`
	TotalWithdrawn  decimal.Decimal `db:"total_withdrawn" json:"total_withdrawn"`
	QueueSize       uint64          `db:"queue_size" json:"queue_size"`
	FailedCount     uint64          `db:"failed_count" json:"failed_count"`
	CompletedCount  uint64          `db:"completed_count" json:"completed_count"`
	LastProcessedAt time.Time       `db:"last_processed_at" json:"last_processed_at"`
	Version         int64           `db:"version" json:"-"`
}

// Available returns the part of the pooled balance not yet committed to queued payouts
func (p *PoolState) Available() decimal.Decimal {
	return p.Balance.Sub(p.PendingAmount)
}

// Parameters is the configurable snapshot consulted by every validation
type Parameters struct {
	MinFeeRateBps      uint16          `db:"min_fee_rate_bps" json:"min_fee_rate_bps"`
	MaxFeeRateBps      uint16          `db:"max_fee_rate_bps" json:"max_fee_rate_bps"`
	CurrentFeeRateBps  uint16          `db:"current_fee_rate_bps" json:"current_fee_rate_bps"`
	MinDelay           time.Duration   `db:"min_delay" json:"min_delay"`
	MaxDelay           time.Duration   `db:"max_delay" json:"max_delay"`
	MinDeposit         decimal.Decimal `db:"min_deposit" json:"min_deposit"`
	MaxDeposit         decimal.Decimal `db:"max_deposit" json:"max_deposit"`
	MinWithdraw        decimal.Decimal `db:"min_withdraw" json:"min_withdraw"`
	OperationalReserve decimal.Decimal `db:"operational_reserve" json:"operational_reserve"`
	WithdrawalTimeout  time.Duration   `db:"withdrawal_timeout" json:"withdrawal_timeout"`
	MaxQueueSize       uint64          `db:"max_queue_size" json:"max_queue_size"`
	MaxPartsPerSplit   int             `db:"max_parts_per_split" json:"max_parts_per_split"`
	AdminId            string          `db:"admin_id" json:"admin_id"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

// OracleValue is an informational exchange-rate figure set by the administrator
type OracleValue struct {
	Rate      decimal.Decimal `db:"rate" json:"rate"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
