package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/backmon-io/backmon/pkg/metrics"
)

func TestNewScannerMetricsDisabled(t *testing.T) {
	metrics.ResetRegistry()
	t.Cleanup(metrics.ResetRegistry)

	if m := NewScannerMetrics(); m != nil {
		t.Error("expected nil ScannerMetrics when registry is not initialized")
	}
	if m := NewHTTPMetrics(); m != nil {
		t.Error("expected nil HTTPMetrics when registry is not initialized")
	}
}

func TestNilReceiversAreSafe(t *testing.T) {
	var sm *scannerMetrics
	sm.RecordPass(time.Second, nil)
	sm.RecordReport("accepted")
	sm.RecordEntry("SUCCESS")
	sm.RecordPromotion(time.Second, nil)
	sm.RecordArchive(nil)
	sm.SetJobsTracked(3)

	var hm *httpMetrics
	hm.RecordRequest("GET", "/api/v1/jobs", 200, time.Millisecond)
	hm.RecordRequestStart()
	hm.RecordRequestEnd()
}

func TestScannerMetricsRecords(t *testing.T) {
	metrics.ResetRegistry()
	t.Cleanup(metrics.ResetRegistry)
	metrics.InitRegistry()

	sm, ok := NewScannerMetrics().(*scannerMetrics)
	if !ok {
		t.Fatal("expected prometheus-backed scanner metrics")
	}

	sm.RecordPass(2*time.Second, nil)
	sm.RecordPass(time.Second, errors.New("staging root unavailable"))
	sm.RecordReport("accepted")
	sm.RecordReport("accepted")
	sm.RecordReport("invalid")
	sm.RecordEntry("SUCCESS")
	sm.RecordEntry("MISSING")
	sm.RecordPromotion(500*time.Millisecond, nil)
	sm.RecordArchive(nil)
	sm.RecordArchive(errors.New("archive dir not writable"))
	sm.SetJobsTracked(7)

	if got := testutil.ToFloat64(sm.passesTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("passes success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sm.passesTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("passes error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sm.reportsTotal.WithLabelValues("accepted")); got != 2 {
		t.Errorf("reports accepted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(sm.reportsTotal.WithLabelValues("invalid")); got != 1 {
		t.Errorf("reports invalid = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sm.entriesTotal.WithLabelValues("SUCCESS")); got != 1 {
		t.Errorf("entries SUCCESS = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sm.promotionsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("promotions success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sm.archivedTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("archived error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sm.jobsTracked); got != 7 {
		t.Errorf("jobs tracked = %v, want 7", got)
	}
}

func TestHTTPMetricsRecords(t *testing.T) {
	metrics.ResetRegistry()
	t.Cleanup(metrics.ResetRegistry)
	metrics.InitRegistry()

	hm, ok := NewHTTPMetrics().(*httpMetrics)
	if !ok {
		t.Fatal("expected prometheus-backed HTTP metrics")
	}

	hm.RecordRequestStart()
	if got := testutil.ToFloat64(hm.requestsInFlight); got != 1 {
		t.Errorf("in-flight = %v, want 1", got)
	}
	hm.RecordRequestEnd()
	if got := testutil.ToFloat64(hm.requestsInFlight); got != 0 {
		t.Errorf("in-flight = %v, want 0", got)
	}

	hm.RecordRequest("GET", "/api/v1/jobs", 200, 5*time.Millisecond)
	hm.RecordRequest("GET", "/api/v1/jobs", 200, 7*time.Millisecond)
	hm.RecordRequest("POST", "/api/v1/scan", 202, time.Millisecond)

	if got := testutil.ToFloat64(hm.requestsTotal.WithLabelValues("GET", "/api/v1/jobs", "200")); got != 2 {
		t.Errorf("GET /api/v1/jobs 200 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(hm.requestsTotal.WithLabelValues("POST", "/api/v1/scan", "202")); got != 1 {
		t.Errorf("POST /api/v1/scan 202 = %v, want 1", got)
	}
}
