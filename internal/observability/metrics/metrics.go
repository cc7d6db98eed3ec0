package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GateChecks tracks gate evaluations by outcome (allowed, blocked)
	GateChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receivables_gate_checks_total",
			Help: "Total number of lab-order gate checks",
		},
		[]string{"outcome"},
	)

	// GateCheckErrors tracks gate checks that failed to read the ledger
	GateCheckErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "receivables_gate_check_errors_total",
			Help: "Total number of gate checks that failed on ledger retrieval",
		},
	)

	// LedgerQueryLatency tracks ledger read latency
	LedgerQueryLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "receivables_ledger_query_latency_seconds",
			Help:    "Ledger paid-total query latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RetryAttempts tracks individual retries performed by the retry wrapper
	RetryAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "receivables_retry_attempts_total",
			Help: "Total number of retry attempts after transient failures",
		},
	)

	// RetryExhausted tracks calls that failed after all attempts
	RetryExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "receivables_retry_exhausted_total",
			Help: "Total number of calls that exhausted all retry attempts",
		},
	)

	// Dispatches tracks lab-order dispatch outcomes (sent, blocked, failed)
	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receivables_lab_dispatches_total",
			Help: "Total number of lab-order dispatch attempts",
		},
		[]string{"result"},
	)

	// DispatchQueueDepth tracks the number of orders waiting in the queue
	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "receivables_dispatch_queue_depth",
			Help: "Number of lab orders waiting in the dispatch queue",
		},
	)

	// DBConnectionPoolUsage tracks database pool utilization percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "receivables_db_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
