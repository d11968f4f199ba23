package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ModeLabel = "mode"
	Outcome   = "outcome"
	Succeeded = "succeeded"
	Failed    = "failed"
)

// To add new metrics:
// 1. Register new metrics in Register() below.
// 2. Add an Emit* or Register* helper next to the existing ones.
var (
	// exported so tests can read the live handle counts
	OpenConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlguard_open_connections",
			Help: "Number of engine connections currently open",
		},
	)

	OpenStatements = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlguard_open_statements",
			Help: "Number of prepared statements not yet finalized",
		},
	)

	StatementDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "sqlguard_statement_duration_seconds",
			Help:       "The duration of a timed statement execution",
			Objectives: map[float64]float64{0.95: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{Outcome},
	)

	decodeFailureCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlguard_decode_failures_total",
			Help: "Monotonic count of result rows that could not be decoded",
		},
	)

	WorkloadQueryCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlguard_workload_queries_total",
			Help: "Monotonic count of reader queries issued by the workload",
		},
		[]string{ModeLabel, Outcome},
	)
)

func Register() {
	prometheus.MustRegister(OpenConnections)
	prometheus.MustRegister(OpenStatements)
	prometheus.MustRegister(StatementDuration)
	prometheus.MustRegister(decodeFailureCount)
	prometheus.MustRegister(WorkloadQueryCount)
}

func EmitConnectionOpened() {
	OpenConnections.Inc()
}

func EmitConnectionClosed() {
	OpenConnections.Dec()
}

func EmitStatementPrepared() {
	OpenStatements.Inc()
}

func EmitStatementFinalized() {
	OpenStatements.Dec()
}

func RegisterStatementSuccess(duration time.Duration) {
	StatementDuration.WithLabelValues(Succeeded).Observe(duration.Seconds())
}

func RegisterStatementFailure(duration time.Duration) {
	StatementDuration.WithLabelValues(Failed).Observe(duration.Seconds())
}

func EmitDecodeFailure() {
	decodeFailureCount.Inc()
}

func CounterForWorkload(mode, outcome string) prometheus.Counter {
	return WorkloadQueryCount.WithLabelValues(mode, outcome)
}
