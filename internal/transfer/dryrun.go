package transfer

import (
	"context"
	"fmt"
	"sync"

	"delayed-pool-go/internal/pool"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DryRun settles every transfer synchronously without moving any value.
// It backs local runs and demos where no custody account is configured.
type DryRun struct {
	mu        sync.Mutex
	submitted map[string]pool.TransferRequest
}

var _ pool.Transferor = (*DryRun)(nil)

func NewDryRun() *DryRun {
	return &DryRun{submitted: make(map[string]pool.TransferRequest)}
}

func (d *DryRun) Transfer(_ context.Context, req pool.TransferRequest) (pool.TransferResult, error) {
	if req.Reference == "" {
		return pool.TransferResult{}, fmt.Errorf("transfer reference is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// A replayed reference reports the original outcome.
	if _, seen := d.submitted[req.Reference]; !seen {
		d.submitted[req.Reference] = req
		zap.L().Info("Dry-run transfer",
			zap.Uint64("item_id", req.ItemId),
			zap.String("transfer_ref", req.Reference),
			zap.String("recipient", req.Recipient),
			zap.String("amount", req.Amount.String()))
	}

	return pool.TransferResult{
		Status:     pool.TransferSucceeded,
		ExternalId: uuid.NewSHA1(uuid.NameSpaceOID, []byte(req.Reference)).String(),
	}, nil
}

// Submitted returns how many distinct transfers were made
func (d *DryRun) Submitted() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.submitted)
}
