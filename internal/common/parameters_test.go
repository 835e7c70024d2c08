package common

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"delayed-pool-go/internal/database"
	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/pool"
	"delayed-pool-go/internal/transfer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validParameters = `parameters:
  admin_id: admin-ops
  min_fee_rate_bps: 0
  max_fee_rate_bps: 500
  current_fee_rate_bps: 200
  min_delay: 1h
  max_delay: 720h
  min_deposit: "10000000000000000"
  max_deposit: "100000000000000000000"
  min_withdraw: "1000000000000000"
  operational_reserve: "0"
  withdrawal_timeout: 24h
  max_queue_size: 1000
  max_parts_per_split: 10
`

func writeParameters(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parameters.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadParameters(t *testing.T) {
	params, err := LoadParameters(writeParameters(t, validParameters))
	require.NoError(t, err)

	assert.Equal(t, "admin-ops", params.AdminId)
	assert.Equal(t, uint16(200), params.CurrentFeeRateBps)
	assert.Equal(t, time.Hour, params.MinDelay)
	assert.Equal(t, 720*time.Hour, params.MaxDelay)
	assert.Equal(t, "10000000000000000", params.MinDeposit.String())
	assert.Equal(t, 10, params.MaxPartsPerSplit)
}

func TestLoadParameters_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown field": validParameters + "  signers: [a, b]\n",
		"bad duration":  "parameters:\n  admin_id: admin-ops\n  min_delay: tomorrow\n",
		"fee above max": "parameters:\n  admin_id: admin-ops\n  max_fee_rate_bps: 100\n  current_fee_rate_bps: 200\n  max_queue_size: 1\n  max_parts_per_split: 1\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadParameters(writeParameters(t, content))
			assert.Error(t, err)
		})
	}
}

func newTestPool(t *testing.T) *pool.Service {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	p, err := pool.NewService(db, transfer.NewDryRun())
	require.NoError(t, err)
	return p
}

func TestBootstrapParameters(t *testing.T) {
	ctx := context.Background()
	p := newTestPool(t)

	require.NoError(t, BootstrapParameters(ctx, p, writeParameters(t, validParameters)))
	admin, err := p.Admin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin-ops", admin)

	// A second file is ignored once parameters are stored.
	changed := writeParameters(t, strings.Replace(validParameters, "admin-ops", "someone-else", 1))
	require.NoError(t, BootstrapParameters(ctx, p, changed))
	admin, err = p.Admin(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin-ops", admin)
}

func TestBootstrapParameters_MissingFile(t *testing.T) {
	p := newTestPool(t)
	err := BootstrapParameters(context.Background(), p, filepath.Join(t.TempDir(), "absent.yaml"))
	assert.NoError(t, err)
}
