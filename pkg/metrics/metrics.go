package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Fleet metrics
	WorkersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harrow_workers_total",
			Help: "Total number of workers in the pool snapshot",
		},
	)

	WorkersEligible = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harrow_workers_eligible",
			Help: "Workers with admin rights and free capacity",
		},
	)

	ThreadCapacity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "harrow_thread_capacity",
			Help: "Total thread capacity across eligible workers at the weaken RAM cost",
		},
	)

	// Target metrics
	TargetMoneyRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harrow_target_money_ratio",
			Help: "Target money over ceiling (1.0 = saturated)",
		},
		[]string{"target"},
	)

	TargetSecurityExcess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "harrow_target_security_excess",
			Help: "Target security above its minimum (0 = fully weakened)",
		},
		[]string{"target"},
	)

	// Batch metrics
	BatchesDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harrow_batches_dispatched_total",
			Help: "Total number of batches dispatched",
		},
	)

	BatchesSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harrow_batches_skipped_total",
			Help: "Total number of batches skipped due to invalid plans",
		},
	)

	BatchesExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harrow_batches_expired_total",
			Help: "Total number of ticks force-terminated past their landing TTL",
		},
	)

	ThreadsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harrow_threads_dispatched_total",
			Help: "Total threads dispatched by operation slot",
		},
		[]string{"slot"},
	)

	ThreadShortfall = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harrow_thread_shortfall_total",
			Help: "Total requested threads the allocator could not place",
		},
	)

	// Loop metrics
	TicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "harrow_ticks_total",
			Help: "Total scheduling ticks by phase",
		},
		[]string{"phase"},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "harrow_tick_duration_seconds",
			Help:    "Wall time of one scheduling tick in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	PrepCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harrow_prep_cycles_total",
			Help: "Total preparation convergence cycles executed",
		},
	)
)

func init() {
	prometheus.MustRegister(WorkersTotal)
	prometheus.MustRegister(WorkersEligible)
	prometheus.MustRegister(ThreadCapacity)
	prometheus.MustRegister(TargetMoneyRatio)
	prometheus.MustRegister(TargetSecurityExcess)
	prometheus.MustRegister(BatchesDispatched)
	prometheus.MustRegister(BatchesSkipped)
	prometheus.MustRegister(BatchesExpired)
	prometheus.MustRegister(ThreadsDispatched)
	prometheus.MustRegister(ThreadShortfall)
	prometheus.MustRegister(TicksTotal)
	prometheus.MustRegister(TickDuration)
	prometheus.MustRegister(PrepCycles)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
