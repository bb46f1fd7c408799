// Package prometheus provides Prometheus-backed implementations of the
// metrics interfaces defined in pkg/metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/backmon-io/backmon/pkg/metrics"
)

// scannerMetrics is the Prometheus implementation of metrics.ScannerMetrics.
type scannerMetrics struct {
	passesTotal       *prometheus.CounterVec
	passDuration      prometheus.Histogram
	lastPassTimestamp prometheus.Gauge
	reportsTotal      *prometheus.CounterVec
	entriesTotal      *prometheus.CounterVec
	promotionsTotal   *prometheus.CounterVec
	promotionDuration prometheus.Histogram
	archivedTotal     *prometheus.CounterVec
	jobsTracked       prometheus.Gauge
}

// NewScannerMetrics creates a new Prometheus-backed ScannerMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewScannerMetrics() metrics.ScannerMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &scannerMetrics{
		passesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "backmon_scanner_passes_total",
				Help: "Total number of reconciliation passes by status",
			},
			[]string{"status"},
		),
		passDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "backmon_scanner_pass_duration_milliseconds",
				Help: "Duration of full reconciliation passes in milliseconds",
				Buckets: []float64{
					50,     // 50ms - empty staging area
					100,    // 100ms
					500,    // 500ms
					1000,   // 1s
					5000,   // 5s - a handful of reports with hashing
					15000,  // 15s
					60000,  // 1m - large staged artifacts
					300000, // 5m
				},
			},
		),
		lastPassTimestamp: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "backmon_scanner_last_pass_timestamp_seconds",
				Help: "Unix timestamp of the last completed reconciliation pass",
			},
		),
		reportsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "backmon_scanner_reports_total",
				Help: "Total number of collected report files by routing result",
			},
			[]string{"result"},
		),
		entriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "backmon_scanner_entries_total",
				Help: "Total number of catalogue entries appended by status",
			},
			[]string{"status"},
		),
		promotionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "backmon_scanner_promotions_total",
				Help: "Total number of artifact promotions by status",
			},
			[]string{"status"},
		),
		promotionDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "backmon_scanner_promotion_duration_milliseconds",
				Help: "Duration of artifact promotions in milliseconds",
				Buckets: []float64{
					10,    // 10ms - small dumps
					100,   // 100ms
					500,   // 500ms
					1000,  // 1s
					5000,  // 5s
					30000, // 30s - multi-gigabyte dumps
					60000, // 1m
				},
			},
		),
		archivedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "backmon_scanner_archived_reports_total",
				Help: "Total number of processed reports moved to the archive by status",
			},
			[]string{"status"},
		),
		jobsTracked: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "backmon_scanner_jobs_tracked",
				Help: "Number of active jobs evaluated by the scanner",
			},
		),
	}
}

func (m *scannerMetrics) RecordPass(duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.passesTotal.WithLabelValues(status).Inc()
	m.passDuration.Observe(duration.Seconds() * 1000)
	m.lastPassTimestamp.SetToCurrentTime()
}

func (m *scannerMetrics) RecordReport(result string) {
	if m == nil {
		return
	}
	m.reportsTotal.WithLabelValues(result).Inc()
}

func (m *scannerMetrics) RecordEntry(status string) {
	if m == nil {
		return
	}
	m.entriesTotal.WithLabelValues(status).Inc()
}

func (m *scannerMetrics) RecordPromotion(duration time.Duration, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.promotionsTotal.WithLabelValues(status).Inc()
	m.promotionDuration.Observe(duration.Seconds() * 1000)
}

func (m *scannerMetrics) RecordArchive(err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.archivedTotal.WithLabelValues(status).Inc()
}

func (m *scannerMetrics) SetJobsTracked(count int) {
	if m == nil {
		return
	}
	m.jobsTracked.Set(float64(count))
}
