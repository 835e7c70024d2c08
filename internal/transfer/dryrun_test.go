package transfer

import (
	"context"
	"testing"

	"delayed-pool-go/internal/pool"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDryRun_SucceedsOncePerReference(t *testing.T) {
	d := NewDryRun()
	req := pool.TransferRequest{Reference: "ref-1", Recipient: "recipient-1", Amount: decimal.NewFromInt(10)}

	first, err := d.Transfer(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, pool.TransferSucceeded, first.Status)

	second, err := d.Transfer(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.ExternalId, second.ExternalId)
	assert.Equal(t, 1, d.Submitted())
}

func TestDryRun_RequiresReference(t *testing.T) {
	_, err := NewDryRun().Transfer(context.Background(), pool.TransferRequest{Amount: decimal.NewFromInt(1)})
	assert.Error(t, err)
}
