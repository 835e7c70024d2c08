package formance

import (
	"context"
	"fmt"
	"strconv"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/pool"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// Ledger accounts. Recipients are kept in metadata only so account names
// never depend on external address formats.
const (
	accountWorld     = "world"
	accountPool      = "pool:main"
	accountFees      = "pool:fees"
	accountPayouts   = "pool:payouts"
	accountEmergency = "pool:emergency"
)

// ---------------------------------------------------------------------------
// Numscript template. All metadata is set inside the script via set_tx_meta()
// so the Formance transaction is fully self-describing.
// ---------------------------------------------------------------------------

const numscriptMovement = `vars {
  asset $asset
  number $amount
  account $source
  account $destination
  string $history_id
  string $kind
  string $status
  string $reference
  string $account
  string $fee_rate_bps
}

send [$asset $amount] (
  source = $source
  destination = $destination
)

set_tx_meta("history_id", $history_id)
set_tx_meta("kind", $kind)
set_tx_meta("status", $status)
set_tx_meta("reference", $reference)
set_tx_meta("account", $account)
set_tx_meta("fee_rate_bps", $fee_rate_bps)
`

// movement is the posting a history record maps to
type movement struct {
	source      string
	destination string
}

// movementFor maps a history record to a ledger posting. ok is false for
// records that moved no value, such as failed payouts.
func movementFor(record models.HistoryRecord) (movement, bool) {
	if record.Status == pool.HistoryStatusFailed || !record.Amount.IsPositive() {
		return movement{}, false
	}
	switch record.Kind {
	case models.HistoryDeposit:
		return movement{source: accountWorld, destination: accountPool}, true
	case models.HistoryPayout:
		return movement{source: accountPool, destination: accountPayouts}, true
	case models.HistoryFee:
		return movement{source: accountPool, destination: accountFees}, true
	case models.HistoryEmergency:
		return movement{source: accountPool, destination: accountEmergency}, true
	default:
		return movement{}, false
	}
}

// scriptVars builds the Numscript variables for record
func (s *Service) scriptVars(record models.HistoryRecord, m movement) map[string]string {
	return map[string]string{
		"asset":        s.umnAsset(),
		"amount":       record.Amount.BigInt().String(),
		"source":       m.source,
		"destination":  m.destination,
		"history_id":   record.Id,
		"kind":         string(record.Kind),
		"status":       record.Status,
		"reference":    record.Reference,
		"account":      record.Account,
		"fee_rate_bps": strconv.Itoa(int(record.FeeRateBps)),
	}
}

// Record posts the ledger transaction for a committed history record.
// The history id is the transaction reference, so replays are no-ops.
func (s *Service) Record(ctx context.Context, record models.HistoryRecord) error {
	m, ok := movementFor(record)
	if !ok {
		zap.L().Debug("History record moves no value, not mirrored",
			zap.String("history_id", record.Id),
			zap.String("kind", string(record.Kind)),
			zap.String("status", record.Status))
		return nil
	}

	postTx := shared.V2PostTransaction{
		Reference: strPtr(record.Id),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptMovement,
			Vars:  s.scriptVars(record, m),
		},
	}
	if !record.Timestamp.IsZero() {
		postTx.Timestamp = &record.Timestamp
	}

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Debug("History record already mirrored", zap.String("history_id", record.Id))
			return nil
		}
		return fmt.Errorf("error mirroring %s record %s: %w", record.Kind, record.Id, err)
	}

	zap.L().Info("History record mirrored to Formance",
		zap.String("history_id", record.Id),
		zap.String("kind", string(record.Kind)),
		zap.String("amount", record.Amount.String()))
	return nil
}
