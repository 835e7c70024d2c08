package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pool.db", cfg.Database.Path)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 15*time.Second, cfg.Keeper.PollingInterval)
	assert.Equal(t, "*/5 * * * *", cfg.Keeper.ReconcileSchedule)
	assert.Equal(t, "ETH", cfg.Asset.Symbol)
	assert.Equal(t, int32(18), cfg.Asset.Decimals)
	assert.Equal(t, TransferBackendDryRun, cfg.Transfer.Backend)
	assert.False(t, cfg.Formance.Enabled())
	assert.Equal(t, "parameters.yaml", cfg.Parameters.File)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/pool-test.db")
	t.Setenv("KEEPER_POLLING_INTERVAL", "2s")
	t.Setenv("KEEPER_MAX_ITEMS_PER_TICK", "7")
	t.Setenv("ASSET_SYMBOL", "usdc")
	t.Setenv("ASSET_DECIMALS", "6")
	t.Setenv("TRANSFER_BACKEND", "PRIME")
	t.Setenv("FORMANCE_STACK_URL", "https://stack.example")
	t.Setenv("FORMANCE_CLIENT_ID", "id")
	t.Setenv("FORMANCE_CLIENT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/pool-test.db", cfg.Database.Path)
	assert.Equal(t, 2*time.Second, cfg.Keeper.PollingInterval)
	assert.Equal(t, 7, cfg.Keeper.MaxItemsPerTick)
	assert.Equal(t, "USDC", cfg.Asset.Symbol)
	assert.Equal(t, int32(6), cfg.Asset.Decimals)
	assert.Equal(t, TransferBackendPrime, cfg.Transfer.Backend)
	assert.True(t, cfg.Formance.Enabled())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"KEEPER_LOCK_TTL", "soon"},
		{"ASSET_DECIMALS", "eighteen"},
		{"ASSET_DECIMALS", "40"},
		{"TRANSFER_BACKEND", "carrier-pigeon"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
