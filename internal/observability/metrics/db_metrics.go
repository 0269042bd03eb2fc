package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "request_statuses_pending",
			Help: "Transfer requests still pending in the wallet service",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM request_statuses WHERE status = 'pending'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "request_statuses_timeout",
			Help: "Transfer requests marked timed out and not yet cleaned up",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM request_statuses WHERE status = 'timeout'")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
