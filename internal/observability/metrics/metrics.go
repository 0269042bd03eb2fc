package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "certtransfer_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	agreementsOnLastRun prometheus.Gauge

	certificatesTransferred *prometheus.CounterVec
	transferQuantity        *prometheus.CounterVec
	transferErrors          *prometheus.CounterVec
	transferSkips           *prometheus.CounterVec

	requestStatusTransitions *prometheus.CounterVec
	requestStatusDeleted     prometheus.Counter

	transferRunTotal   *prometheus.CounterVec
	transferRunLatency *prometheus.HistogramVec
)

// Init registers transfer engine metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		agreementsOnLastRun = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "transfer_agreements_on_last_run",
				Help: "Number of transfer agreements processed by the last dispatcher pass",
			},
		)

		certificatesTransferred = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "certificates_transferred_total",
				Help: "Total certificates submitted for transfer by strategy",
			},
			[]string{"strategy"},
		)
		transferQuantity = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transfer_quantity_total",
				Help: "Total certificate quantity submitted for transfer by strategy",
			},
			[]string{"strategy"},
		)
		transferErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transfer_errors_total",
				Help: "Total failed settlement passes by strategy",
			},
			[]string{"strategy"},
		)
		transferSkips = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transfer_skips_total",
				Help: "Total skipped settlement passes or certificates by reason",
			},
			[]string{"reason"},
		)

		requestStatusTransitions = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "request_status_transitions_total",
				Help: "Total request status changes by new status",
			},
			[]string{"status"},
		)
		requestStatusDeleted = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "request_status_deleted_total",
				Help: "Total request status rows removed by the cleanup policy",
			},
		)

		transferRunTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transfer_run_total",
				Help: "Total settlement passes by result",
			},
			[]string{"result"},
		)
		transferRunLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "transfer_run_latency_seconds",
				Help:    "Settlement pass latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			agreementsOnLastRun,
			certificatesTransferred,
			transferQuantity,
			transferErrors,
			transferSkips,
			requestStatusTransitions,
			requestStatusDeleted,
			transferRunTotal,
			transferRunLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// SetAgreementsOnLastRun records how many agreements the last pass loaded.
func SetAgreementsOnLastRun(count int) {
	if count < 0 {
		count = 0
	}
	if agreementsOnLastRun != nil {
		agreementsOnLastRun.Set(float64(count))
	}
}

// AddCertificatesTransferred increments transferred certificates for a strategy.
func AddCertificatesTransferred(strategy string, count int) {
	if count <= 0 {
		return
	}
	if strategy == "" {
		strategy = "unknown"
	}
	if certificatesTransferred != nil {
		certificatesTransferred.WithLabelValues(strategy).Add(float64(count))
	}
}

// AddTransferQuantity increments the submitted quantity for a strategy.
func AddTransferQuantity(strategy string, quantity int64) {
	if quantity <= 0 {
		return
	}
	if strategy == "" {
		strategy = "unknown"
	}
	if transferQuantity != nil {
		transferQuantity.WithLabelValues(strategy).Add(float64(quantity))
	}
}

// IncTransferError increments failed passes for a strategy.
func IncTransferError(strategy string) {
	if strategy == "" {
		strategy = "unknown"
	}
	if transferErrors != nil {
		transferErrors.WithLabelValues(strategy).Inc()
	}
}

// IncTransferSkip increments skip counters.
func IncTransferSkip(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if transferSkips != nil {
		transferSkips.WithLabelValues(reason).Inc()
	}
}

// IncRequestStatusTransition increments status change counters.
func IncRequestStatusTransition(status string) {
	if status == "" {
		status = "unknown"
	}
	if requestStatusTransitions != nil {
		requestStatusTransitions.WithLabelValues(status).Inc()
	}
}

// IncRequestStatusDeleted increments the cleanup counter.
func IncRequestStatusDeleted() {
	if requestStatusDeleted != nil {
		requestStatusDeleted.Inc()
	}
}

// ObserveTransferRun records settlement pass latency and result.
func ObserveTransferRun(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if transferRunTotal != nil {
		transferRunTotal.WithLabelValues(result).Inc()
	}
	if transferRunLatency != nil {
		transferRunLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError

	SkipPendingTransactions = "pending_transactions"
	SkipMissingReceiver     = "missing_receiver"
	SkipAttemptsExhausted   = "attempts_exhausted"
)
