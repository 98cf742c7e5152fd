package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "home_energy_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	reportComputeTotal   *prometheus.CounterVec
	reportComputeLatency *prometheus.HistogramVec

	cacheLookups *prometheus.CounterVec

	invoiceRangeTotal   *prometheus.CounterVec
	invoiceRangeLatency *prometheus.HistogramVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	telemetryQueryErrors *prometheus.CounterVec
)

// Init registers observability metrics and, when a billing database is
// configured, its backing gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		reportComputeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_compute_total",
				Help: "Total monthly report computations by result",
			},
			[]string{"result"},
		)
		reportComputeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_compute_latency_seconds",
				Help:    "Monthly report computation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		cacheLookups = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "month_cache_lookups_total",
				Help: "Month cache lookups by status",
			},
			[]string{"status"},
		)

		invoiceRangeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoice_range_total",
				Help: "Total invoice range computations by result",
			},
			[]string{"result"},
		)
		invoiceRangeLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "invoice_range_latency_seconds",
				Help:    "Invoice range latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoice_export_total",
				Help: "Total invoice export operations by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "invoice_export_latency_seconds",
				Help:    "Invoice export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		telemetryQueryErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "telemetry_query_errors_total",
				Help: "Total per-sensor telemetry query failures",
			},
			[]string{"sensor"},
		)

		prometheus.MustRegister(
			reportComputeTotal,
			reportComputeLatency,
			cacheLookups,
			invoiceRangeTotal,
			invoiceRangeLatency,
			exportTotal,
			exportLatency,
			telemetryQueryErrors,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "invoices_issued",
			Help: "Issued invoice records",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM invoices")
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

// ObserveReportCompute records monthly computation latency and result.
func ObserveReportCompute(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if reportComputeTotal != nil {
		reportComputeTotal.WithLabelValues(result).Inc()
	}
	if reportComputeLatency != nil {
		reportComputeLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncCacheLookup increments the cache lookup counter for a status.
func IncCacheLookup(status string) {
	if status == "" {
		status = "unknown"
	}
	if cacheLookups != nil {
		cacheLookups.WithLabelValues(status).Inc()
	}
}

// ObserveInvoiceRange records invoice range latency and result.
func ObserveInvoiceRange(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if invoiceRangeTotal != nil {
		invoiceRangeTotal.WithLabelValues(result).Inc()
	}
	if invoiceRangeLatency != nil {
		invoiceRangeLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObserveInvoiceExport records export latency by format and result.
func ObserveInvoiceExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// IncTelemetryQueryError counts a failed per-sensor query.
func IncTelemetryQueryError(sensor string) {
	if sensor == "" {
		sensor = "unknown"
	}
	if telemetryQueryErrors != nil {
		telemetryQueryErrors.WithLabelValues(sensor).Inc()
	}
}

// Exported result constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
