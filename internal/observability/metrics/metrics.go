package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "rewardpool_"

	resultSuccess = "success"
	resultError   = "error"

	entityProcessed = "processed"
	entitySkipped   = "skipped"
)

var (
	registerOnce sync.Once

	runTotal   *prometheus.CounterVec
	runLatency *prometheus.HistogramVec

	entitiesTotal *prometheus.CounterVec

	ledgerPostTotal   *prometheus.CounterVec
	ledgerPostLatency *prometheus.HistogramVec

	priceFallbackTotal prometheus.Counter

	reportExportTotal   *prometheus.CounterVec
	reportExportLatency *prometheus.HistogramVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *zap.Logger) {
	registerOnce.Do(func() {
		runTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "distribution_runs_total",
				Help: "Total distribution runs by outcome",
			},
			[]string{"outcome"},
		)
		runLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "distribution_run_latency_seconds",
				Help:    "Distribution run latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		)

		entitiesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "distribution_entities_total",
				Help: "Entities handled by distribution runs by result",
			},
			[]string{"result"},
		)

		ledgerPostTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ledger_posts_total",
				Help: "Total ledger post batches by result",
			},
			[]string{"result"},
		)
		ledgerPostLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ledger_post_latency_seconds",
				Help:    "Ledger post batch latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		priceFallbackTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "price_fallback_total",
				Help: "Network state lookups that fell back to configured defaults",
			},
		)

		reportExportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "report_export_total",
				Help: "Total period report exports by format and result",
			},
			[]string{"format", "result"},
		)
		reportExportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "report_export_latency_seconds",
				Help:    "Period report export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		prometheus.MustRegister(
			runTotal,
			runLatency,
			entitiesTotal,
			ledgerPostTotal,
			ledgerPostLatency,
			priceFallbackTotal,
			reportExportTotal,
			reportExportLatency,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveRun records a distribution run outcome and duration.
func ObserveRun(outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	if runTotal != nil {
		runTotal.WithLabelValues(outcome).Inc()
	}
	if runLatency != nil {
		runLatency.WithLabelValues(outcome).Observe(duration.Seconds())
	}
}

// AddEntities increments the processed and skipped entity counters.
func AddEntities(processed, skipped int) {
	if entitiesTotal == nil {
		return
	}
	if processed > 0 {
		entitiesTotal.WithLabelValues(entityProcessed).Add(float64(processed))
	}
	if skipped > 0 {
		entitiesTotal.WithLabelValues(entitySkipped).Add(float64(skipped))
	}
}

// ObserveLedgerPost records ledger post latency and result.
func ObserveLedgerPost(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ledgerPostTotal != nil {
		ledgerPostTotal.WithLabelValues(result).Inc()
	}
	if ledgerPostLatency != nil {
		ledgerPostLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// IncPriceFallback counts a network state fallback.
func IncPriceFallback() {
	if priceFallbackTotal != nil {
		priceFallbackTotal.Inc()
	}
}

// ObserveReportExport records export latency and result.
func ObserveReportExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if reportExportTotal != nil {
		reportExportTotal.WithLabelValues(format, result).Inc()
	}
	if reportExportLatency != nil {
		reportExportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Result returns the result label for err.
func Result(err error) string {
	if err != nil {
		return resultError
	}
	return resultSuccess
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
