package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"delayed-pool-go/internal/database"
	"delayed-pool-go/internal/models"
	"delayed-pool-go/internal/pool"
	"delayed-pool-go/internal/transfer"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdmin = "admin-ops"

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	service, err := pool.NewService(db, transfer.NewDryRun())
	require.NoError(t, err)

	_, err = service.InitializeParameters(ctx, &models.Parameters{
		MinFeeRateBps:     0,
		MaxFeeRateBps:     500,
		CurrentFeeRateBps: 200,
		MaxDelay:          time.Hour,
		MinDeposit:        decimal.NewFromInt(100),
		MaxDeposit:        decimal.NewFromInt(1_000_000),
		MinWithdraw:       decimal.NewFromInt(10),
		WithdrawalTimeout: 24 * time.Hour,
		MaxQueueSize:      10,
		MaxPartsPerSplit:  3,
		AdminId:           testAdmin,
	})
	require.NoError(t, err)

	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return NewServer(service, metricsHandler).Router()
}

func do(t *testing.T, h http.Handler, method, path, caller string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestServer_DepositScheduleProcess(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/v1/deposits", "depositor-1", models.DepositRequest{Amount: decimal.NewFromInt(10_000)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	deposit := decode[models.DepositResponse](t, rec)
	assert.Equal(t, uint64(1), deposit.DepositId)

	schedule := models.ScheduleWithdrawalRequest{Parts: []models.PayoutPartRequest{
		{Recipient: "recipient-a", Amount: decimal.NewFromInt(6_000), FeeRateBps: 200},
		{Recipient: "recipient-b", Amount: decimal.NewFromInt(4_000), FeeRateBps: 250, Delay: "30m"},
	}}

	rec = do(t, h, http.MethodPost, "/v1/deposits/1/withdrawals", "depositor-1", schedule)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Unauthorized", decode[models.ErrorResponse](t, rec).Kind)

	rec = do(t, h, http.MethodPost, "/v1/deposits/1/withdrawals", testAdmin, schedule)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, []uint64{1, 2}, decode[models.ScheduleWithdrawalResponse](t, rec).ItemIds)

	rec = do(t, h, http.MethodGet, "/v1/queue/next", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.NextReadyItemResponse{ItemId: 1, Ready: true}, decode[models.NextReadyItemResponse](t, rec))

	rec = do(t, h, http.MethodPost, "/v1/queue/2/process", "anyone", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "NotReady", decode[models.ErrorResponse](t, rec).Kind)

	rec = do(t, h, http.MethodPost, "/v1/queue/1/process", "anyone", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[models.ProcessResult](t, rec)
	assert.Equal(t, models.OutcomeCompleted, result.Outcome)
	assert.True(t, result.Fee.Equal(decimal.NewFromInt(120)))
	assert.True(t, result.Net.Equal(decimal.NewFromInt(5_880)))

	rec = do(t, h, http.MethodGet, "/v1/pool", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decode[models.PoolState](t, rec)
	assert.True(t, state.Balance.Equal(decimal.NewFromInt(4_000)), state.Balance.String())
	assert.True(t, state.PendingAmount.Equal(decimal.NewFromInt(4_000)))

	rec = do(t, h, http.MethodGet, "/v1/queue?state=waiting", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]models.QueueItem](t, rec), 1)

	rec = do(t, h, http.MethodGet, "/v1/history/length", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// deposit, payout, fee
	assert.Equal(t, uint64(3), decode[models.HistoryLengthResponse](t, rec).Length)

	rec = do(t, h, http.MethodGet, "/v1/history?offset=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]models.HistoryRecord](t, rec)
	require.Len(t, records, 2)
	assert.Equal(t, models.HistoryPayout, records[0].Kind)
	assert.Equal(t, models.HistoryFee, records[1].Kind)
}

func TestServer_ErrorMapping(t *testing.T) {
	h := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		caller string
		body   interface{}
		status int
		kind   string
	}{
		{"deposit below minimum", http.MethodPost, "/v1/deposits", "depositor-1", models.DepositRequest{Amount: decimal.NewFromInt(1)}, http.StatusBadRequest, "AmountTooSmall"},
		{"deposit above maximum", http.MethodPost, "/v1/deposits", "depositor-1", models.DepositRequest{Amount: decimal.NewFromInt(2_000_000)}, http.StatusBadRequest, "AmountTooLarge"},
		{"unknown deposit", http.MethodGet, "/v1/deposits/99", "", nil, http.StatusNotFound, "DepositNotFound"},
		{"malformed deposit id", http.MethodGet, "/v1/deposits/abc", "", nil, http.StatusBadRequest, "BadRequest"},
		{"unknown item", http.MethodGet, "/v1/queue/42", "", nil, http.StatusNotFound, "ItemNotFound"},
		{"bad state filter", http.MethodGet, "/v1/queue?state=lost", "", nil, http.StatusBadRequest, "BadRequest"},
		{"settle by non-admin", http.MethodPost, "/v1/transfers/ref/settle", "depositor-1", models.SettleRequest{Succeeded: true}, http.StatusForbidden, "Unauthorized"},
		{"settle unknown ref", http.MethodPost, "/v1/transfers/ref/settle", testAdmin, models.SettleRequest{Succeeded: true}, http.StatusNotFound, "ItemNotFound"},
		{"fee rate by non-admin", http.MethodPut, "/v1/parameters/fee-rate", "depositor-1", models.FeeRateRequest{FeeRateBps: 100}, http.StatusForbidden, "Unauthorized"},
		{"fee rate out of range", http.MethodPut, "/v1/parameters/fee-rate", testAdmin, models.FeeRateRequest{FeeRateBps: 900}, http.StatusBadRequest, "InvalidFeeRate"},
		{"emergency beyond balance", http.MethodPost, "/v1/emergency-withdrawals", testAdmin, models.EmergencyWithdrawRequest{Amount: decimal.NewFromInt(1)}, http.StatusConflict, "InsufficientBalance"},
		{"resolve emergency by non-admin", http.MethodPost, "/v1/emergency-withdrawals/ref/resolve", "depositor-1", models.SettleRequest{Succeeded: true}, http.StatusForbidden, "Unauthorized"},
		{"resolve unknown emergency", http.MethodPost, "/v1/emergency-withdrawals/ref/resolve", testAdmin, models.SettleRequest{Succeeded: true}, http.StatusNotFound, "ItemNotFound"},
		{"unknown field", http.MethodPost, "/v1/deposits", "depositor-1", map[string]string{"account": "x"}, http.StatusBadRequest, "BadRequest"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.caller, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.kind, decode[models.ErrorResponse](t, rec).Kind)
		})
	}
}

func TestServer_EmergencyWithdrawal(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/v1/deposits", "depositor-1", models.DepositRequest{Amount: decimal.NewFromInt(500)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/v1/emergency-withdrawals", testAdmin, models.EmergencyWithdrawRequest{Amount: decimal.NewFromInt(200)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	transfer := decode[models.EmergencyTransfer](t, rec)
	assert.Equal(t, models.EmergencyCompleted, transfer.State)
	assert.Equal(t, testAdmin, transfer.Recipient)

	rec = do(t, h, http.MethodGet, "/v1/emergency-withdrawals/pending", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]models.EmergencyTransfer](t, rec))

	rec = do(t, h, http.MethodPost, "/v1/emergency-withdrawals/"+transfer.Reference+"/resolve", testAdmin, models.SettleRequest{Succeeded: false})
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Equal(t, "TransferNotPending", decode[models.ErrorResponse](t, rec).Kind)
}

func TestServer_Blacklist(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodPut, "/v1/blacklist/depositor-9", testAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/v1/blacklist/depositor-9", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.BlacklistStatus](t, rec).Blacklisted)

	rec = do(t, h, http.MethodPost, "/v1/deposits", "depositor-9", models.DepositRequest{Amount: decimal.NewFromInt(500)})
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "CallerBlacklisted", decode[models.ErrorResponse](t, rec).Kind)

	rec = do(t, h, http.MethodDelete, "/v1/blacklist/depositor-9", testAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/deposits", "depositor-9", models.DepositRequest{Amount: decimal.NewFromInt(500)})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestServer_AdminEndpoints(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/v1/oracle", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPut, "/v1/oracle", testAdmin, models.OracleRequest{Rate: decimal.RequireFromString("2450.5")})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[models.OracleValue](t, rec).Rate.Equal(decimal.RequireFromString("2450.5")))

	rec = do(t, h, http.MethodPut, "/v1/parameters", testAdmin, models.ParametersDocument{
		MaxFeeRateBps:     300,
		CurrentFeeRateBps: 150,
		MaxDelay:          "2h",
		MinDeposit:        "1",
		MaxDeposit:        "500",
		WithdrawalTimeout: "72h",
		MaxQueueSize:      5,
		MaxPartsPerSplit:  2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	params := decode[models.Parameters](t, rec)
	assert.Equal(t, testAdmin, params.AdminId)
	assert.Equal(t, 2*time.Hour, params.MaxDelay)
	assert.Equal(t, uint64(5), params.MaxQueueSize)

	rec = do(t, h, http.MethodPut, "/v1/admin", testAdmin, models.AdminRequest{AdminId: "admin-next"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/admin", "", nil)
	assert.Equal(t, "admin-next", decode[models.AdminRequest](t, rec).AdminId)

	rec = do(t, h, http.MethodPut, "/v1/parameters/fee-rate", testAdmin, models.FeeRateRequest{FeeRateBps: 100})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	h := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/pool/solvency", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[models.SolvencyReport](t, rec).Healthy)
}
