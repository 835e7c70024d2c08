package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"delayed-pool-go/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservePoolState(t *testing.T) {
	c := NewCollector()
	processed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c.ObservePoolState(&models.PoolState{
		Balance:         decimal.NewFromInt(4000),
		PendingAmount:   decimal.NewFromInt(1500),
		RetainedFees:    decimal.NewFromInt(120),
		QueueSize:       2,
		FailedCount:     1,
		CompletedCount:  7,
		LastProcessedAt: processed,
	})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.queueSize))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failedCount))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.completedCount))
	assert.Equal(t, float64(processed.Unix()), testutil.ToFloat64(c.lastProcessedAt))
	assert.Equal(t, 1500.0, testutil.ToFloat64(c.pendingAmount))
	assert.Equal(t, 4000.0, testutil.ToFloat64(c.balance))
	assert.Equal(t, 120.0, testutil.ToFloat64(c.retainedFees))
}

func TestRecordOutcomeAndSolvency(t *testing.T) {
	c := NewCollector()
	c.RecordOutcome(models.OutcomeCompleted)
	c.RecordOutcome(models.OutcomeCompleted)
	c.RecordOutcome(models.OutcomeFailed)
	c.RecordError()
	c.RecordSolvency(&models.SolvencyReport{Healthy: true})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.outcomes.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.outcomes.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.outcomes.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.solvent))

	c.RecordSolvency(&models.SolvencyReport{Healthy: false})
	assert.Equal(t, 0.0, testutil.ToFloat64(c.solvent))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.ObservePoolState(&models.PoolState{QueueSize: 3})
	c.RecordTick(20 * time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "delayed_pool_queue_size 3"))
	assert.True(t, strings.Contains(body, "delayed_pool_keeper_tick_duration_seconds_count 1"))
}
