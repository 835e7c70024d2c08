// Package metrics exports the pool's performance tracker and keeper activity
// as Prometheus collectors on a private registry.
package metrics

import (
	"net/http"
	"time"

	"delayed-pool-go/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "delayed_pool"

// Collector holds the pool collectors
type Collector struct {
	registry *prometheus.Registry

	// Performance tracker, refreshed from the stored pool state
	queueSize       prometheus.Gauge
	failedCount     prometheus.Gauge
	completedCount  prometheus.Gauge
	lastProcessedAt prometheus.Gauge
	pendingAmount   prometheus.Gauge
	balance         prometheus.Gauge
	retainedFees    prometheus.Gauge

	// Keeper and listener activity
	outcomes     *prometheus.CounterVec
	tickDuration prometheus.Histogram
	solvent      prometheus.Gauge
}

func NewCollector() *Collector {
	gauge := func(subsystem, name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}

	c := &Collector{
		registry:        prometheus.NewRegistry(),
		queueSize:       gauge("queue", "size", "Number of active (waiting or processing) queue items"),
		failedCount:     gauge("queue", "failed_items", "Number of payouts that bounced and await reconciliation"),
		completedCount:  gauge("queue", "completed_items", "Number of payouts that completed"),
		lastProcessedAt: gauge("queue", "last_processed_timestamp_seconds", "Unix time of the last successful payout"),
		pendingAmount:   gauge("pool", "pending_amount", "Atomic units committed to active queue items"),
		balance:         gauge("pool", "balance", "Pooled balance in atomic units"),
		retainedFees:    gauge("pool", "retained_fees", "Fees retained by the pool in atomic units"),
		solvent:         gauge("pool", "solvent", "1 when the last reconciliation found the pool solvent"),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "keeper",
				Name:      "items_total",
				Help:      "Queue items handled by the keeper and bounce listener, by outcome",
			},
			[]string{"outcome"},
		),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "keeper",
			Name:      "tick_duration_seconds",
			Help:      "Time taken by one keeper tick",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
	}

	c.registry.MustRegister(
		c.queueSize,
		c.failedCount,
		c.completedCount,
		c.lastProcessedAt,
		c.pendingAmount,
		c.balance,
		c.retainedFees,
		c.solvent,
		c.outcomes,
		c.tickDuration,
	)
	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObservePoolState refreshes the performance tracker gauges
func (c *Collector) ObservePoolState(state *models.PoolState) {
	if state == nil {
		return
	}
	c.queueSize.Set(float64(state.QueueSize))
	c.failedCount.Set(float64(state.FailedCount))
	c.completedCount.Set(float64(state.CompletedCount))
	if !state.LastProcessedAt.IsZero() {
		c.lastProcessedAt.Set(float64(state.LastProcessedAt.Unix()))
	}
	c.pendingAmount.Set(state.PendingAmount.InexactFloat64())
	c.balance.Set(state.Balance.InexactFloat64())
	c.retainedFees.Set(state.RetainedFees.InexactFloat64())
}

func (c *Collector) RecordOutcome(outcome models.ProcessOutcome) {
	c.outcomes.WithLabelValues(string(outcome)).Inc()
}

// RecordError counts a processItem or settle call that returned an error
func (c *Collector) RecordError() {
	c.outcomes.WithLabelValues("error").Inc()
}

func (c *Collector) RecordTick(duration time.Duration) {
	c.tickDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordSolvency(report *models.SolvencyReport) {
	if report == nil {
		return
	}
	if report.Healthy {
		c.solvent.Set(1)
	} else {
		c.solvent.Set(0)
	}
}
