package prime

import (
	"context"
	"errors"
	"testing"

	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/pool"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWithdrawals struct {
	calls []CreateWithdrawalParams
	err   error
}

func (f *fakeWithdrawals) CreateWithdrawal(_ context.Context, params CreateWithdrawalParams) (*models.Withdrawal, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	return &models.Withdrawal{ActivityId: "activity-1", IdempotencyKey: params.IdempotencyKey}, nil
}

var testAsset = models.AssetConfig{Symbol: "ETH", Network: "ethereum-mainnet", Decimals: 18}

func TestTransferor_SubmitsWithdrawal(t *testing.T) {
	fake := &fakeWithdrawals{}
	transferor, err := NewTransferor(fake, "portfolio-1", "wallet-1", testAsset)
	require.NoError(t, err)

	result, err := transferor.Transfer(context.Background(), pool.TransferRequest{
		Reference: "0b7c1f8e-ref",
		Recipient: "0x52908400098527886E0F7030069857D2E4169EE7",
		Amount:    decimal.RequireFromString("5880000000000000000"),
		ItemId:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, pool.TransferPending, result.Status)
	assert.Equal(t, "activity-1", result.ExternalId)

	require.Len(t, fake.calls, 1)
	call := fake.calls[0]
	assert.Equal(t, "5.88", call.Amount)
	assert.Equal(t, "ETH", call.Symbol)
	assert.Equal(t, "ethereum-mainnet", call.Network)
	assert.Equal(t, "0b7c1f8e-ref", call.IdempotencyKey)
	assert.Equal(t, "wallet-1", call.WalletId)
}

func TestTransferor_PropagatesApiError(t *testing.T) {
	fake := &fakeWithdrawals{err: errors.New("503 service unavailable")}
	transferor, err := NewTransferor(fake, "portfolio-1", "wallet-1", testAsset)
	require.NoError(t, err)

	_, err = transferor.Transfer(context.Background(), pool.TransferRequest{
		Reference: "ref",
		Recipient: "0x52908400098527886E0F7030069857D2E4169EE7",
		Amount:    decimal.NewFromInt(1),
	})
	assert.Error(t, err)
}

func TestNewTransferor_RequiresWallet(t *testing.T) {
	_, err := NewTransferor(&fakeWithdrawals{}, "portfolio-1", "", testAsset)
	assert.Error(t, err)
}
