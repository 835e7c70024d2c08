/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PayoutPart is one leg of a (possibly split) withdrawal request
type PayoutPart struct {
	Recipient  string          `json:"recipient"`
	Amount     decimal.Decimal `json:"amount"`
	FeeRateBps uint16          `json:"fee_rate_bps"`
	Delay      time.Duration   `json:"delay"`
}

// ProcessOutcome describes what a processItem call did with the item
type ProcessOutcome string

const (
	OutcomeCompleted ProcessOutcome = "completed"
	OutcomeFailed    ProcessOutcome = "failed"
	OutcomeInFlight  ProcessOutcome = "in_flight"
)

// ProcessResult is returned by processItem
type ProcessResult struct {
	ItemId      uint64          `json:"item_id"`
	Outcome     ProcessOutcome  `json:"outcome"`
	Fee         decimal.Decimal `json:"fee"`
	Net         decimal.Decimal `json:"net"`
	TransferRef string          `json:"transfer_ref"`
	Reason      string          `json:"reason,omitempty"`
}

// QueueSummary is the keeper-facing view of the queue
type QueueSummary struct {
	Length        uint64          `json:"length"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
	ReadyCount    uint64          `json:"ready_count"`
	InFlightCount uint64          `json:"in_flight_count"`
}

// PerformanceCounters are the monitoring aggregates of the queue processor
type PerformanceCounters struct {
	LastProcessedAt  time.Time `json:"last_processed_at"`
	FailedCount      uint64    `json:"failed_count"`
	CompletedCount   uint64    `json:"completed_count"`
	CurrentQueueSize uint64    `json:"current_queue_size"`
}

// SolvencyReport is the result of a reconciliation pass
type SolvencyReport struct {
	Balance           decimal.Decimal `json:"balance"`
	CachedPending     decimal.Decimal `json:"cached_pending"`
	CalculatedPending decimal.Decimal `json:"calculated_pending"`
	ActiveItems       uint64          `json:"active_items"`
	CachedQueueSize   uint64          `json:"cached_queue_size"`
	Healthy           bool            `json:"healthy"`
	CheckedAt         time.Time       `json:"checked_at"`
}

// ParametersDocument is the wire and file form of Parameters. Durations use
// Go duration syntax ("90s", "168h") and amounts are atomic-unit integers.
type ParametersDocument struct {
	MinFeeRateBps      uint16 `json:"min_fee_rate_bps" yaml:"min_fee_rate_bps"`
	MaxFeeRateBps      uint16 `json:"max_fee_rate_bps" yaml:"max_fee_rate_bps"`
	CurrentFeeRateBps  uint16 `json:"current_fee_rate_bps" yaml:"current_fee_rate_bps"`
	MinDelay           string `json:"min_delay" yaml:"min_delay"`
	MaxDelay           string `json:"max_delay" yaml:"max_delay"`
	MinDeposit         string `json:"min_deposit" yaml:"min_deposit"`
	MaxDeposit         string `json:"max_deposit" yaml:"max_deposit"`
	MinWithdraw        string `json:"min_withdraw" yaml:"min_withdraw"`
	OperationalReserve string `json:"operational_reserve" yaml:"operational_reserve"`
	WithdrawalTimeout  string `json:"withdrawal_timeout" yaml:"withdrawal_timeout"`
	MaxQueueSize       uint64 `json:"max_queue_size" yaml:"max_queue_size"`
	MaxPartsPerSplit   int    `json:"max_parts_per_split" yaml:"max_parts_per_split"`
	AdminId            string `json:"admin_id" yaml:"admin_id"`
}

// ToParameters parses the document. Empty amounts read as zero.
func (d ParametersDocument) ToParameters() (*Parameters, error) {
	p := &Parameters{
		MinFeeRateBps:     d.MinFeeRateBps,
		MaxFeeRateBps:     d.MaxFeeRateBps,
		CurrentFeeRateBps: d.CurrentFeeRateBps,
		MaxQueueSize:      d.MaxQueueSize,
		MaxPartsPerSplit:  d.MaxPartsPerSplit,
		AdminId:           d.AdminId,
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"min_delay", d.MinDelay, &p.MinDelay},
		{"max_delay", d.MaxDelay, &p.MaxDelay},
		{"withdrawal_timeout", d.WithdrawalTimeout, &p.WithdrawalTimeout},
	}
	for _, f := range durations {
		if f.value == "" {
			continue
		}
		v, err := time.ParseDuration(f.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", f.name, f.value, err)
		}
		*f.dst = v
	}

	amounts := []struct {
		name  string
		value string
		dst   *decimal.Decimal
	}{
		{"min_deposit", d.MinDeposit, &p.MinDeposit},
		{"max_deposit", d.MaxDeposit, &p.MaxDeposit},
		{"min_withdraw", d.MinWithdraw, &p.MinWithdraw},
		{"operational_reserve", d.OperationalReserve, &p.OperationalReserve},
	}
	for _, f := range amounts {
		if f.value == "" {
			*f.dst = decimal.Zero
			continue
		}
		v, err := decimal.NewFromString(f.value)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", f.name, f.value, err)
		}
		*f.dst = v
	}
	return p, nil
}

// DepositRequest carries the value attached to a deposit, in atomic units
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type DepositResponse struct {
	DepositId uint64 `json:"deposit_id"`
}

// PayoutPartRequest is the wire form of PayoutPart
type PayoutPartRequest struct {
	Recipient  string          `json:"recipient"`
	Amount     decimal.Decimal `json:"amount"`
	FeeRateBps uint16          `json:"fee_rate_bps"`
	Delay      string          `json:"delay"`
}

// ToPayoutPart parses the delay. An empty delay is zero.
func (r PayoutPartRequest) ToPayoutPart() (PayoutPart, error) {
	part := PayoutPart{
		Recipient:  r.Recipient,
		Amount:     r.Amount,
		FeeRateBps: r.FeeRateBps,
	}
	if r.Delay != "" {
		delay, err := time.ParseDuration(r.Delay)
		if err != nil {
			return PayoutPart{}, fmt.Errorf("invalid delay %q: %w", r.Delay, err)
		}
		part.Delay = delay
	}
	return part, nil
}

type ScheduleWithdrawalRequest struct {
	Parts []PayoutPartRequest `json:"parts"`
}

type ScheduleWithdrawalResponse struct {
	ItemIds []uint64 `json:"item_ids"`
}

// SettleRequest reports or resolves the outcome of an in-flight transfer
type SettleRequest struct {
	Succeeded bool   `json:"succeeded"`
	Reason    string `json:"reason,omitempty"`
}

type NextReadyItemResponse struct {
	ItemId uint64 `json:"item_id,omitempty"`
	Ready  bool   `json:"ready"`
}

type FeeRateRequest struct {
	FeeRateBps uint16 `json:"fee_rate_bps"`
}

type AdminRequest struct {
	AdminId string `json:"admin_id"`
}

type OracleRequest struct {
	Rate decimal.Decimal `json:"rate"`
}

type EmergencyWithdrawRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type BlacklistStatus struct {
	Account     string `json:"account"`
	Blacklisted bool   `json:"blacklisted"`
}

type HistoryLengthResponse struct {
	Length uint64 `json:"length"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Kind  string `json:"kind"`
	Error string `json:"error"`
}
