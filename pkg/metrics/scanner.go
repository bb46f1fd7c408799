package metrics

import (
	"time"
)

// ScannerMetrics provides observability for reconciliation passes.
//
// Implementations can collect metrics about collected reports, appended
// catalogue entries, artifact promotions, and report archival. This interface
// is optional - pass nil to disable metrics collection with zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	metrics.InitRegistry()
//	sc := scanner.New(cfg, deps, prometheus.NewScannerMetrics())
//
//	// Without metrics (pass nil for zero overhead)
//	sc := scanner.New(cfg, deps, nil)
type ScannerMetrics interface {
	// RecordPass records a completed reconciliation pass.
	//
	// Parameters:
	//   - duration: Wall-clock time of the full pass
	//   - err: Pass-level error, nil when the pass completed
	RecordPass(duration time.Duration, err error)

	// RecordReport records a collected report file and its routing result.
	//
	// Parameters:
	//   - result: Routing outcome (e.g. "accepted", "invalid", "stale",
	//     "unmatched", "error")
	RecordReport(result string)

	// RecordEntry records a catalogue entry appended during evaluation.
	//
	// Parameters:
	//   - status: Terminal entry status (e.g. "SUCCESS", "MISSING")
	RecordEntry(status string)

	// RecordPromotion records a staged artifact promotion attempt.
	//
	// Parameters:
	//   - duration: Time taken to copy the artifact into validated storage
	//   - err: Promotion error, nil on success
	RecordPromotion(duration time.Duration, err error)

	// RecordArchive records a processed report archival attempt.
	//
	// Parameters:
	//   - err: Archival error, nil on success
	RecordArchive(err error)

	// SetJobsTracked updates the number of active jobs the scanner evaluates.
	//
	// Parameters:
	//   - count: Number of active jobs in the catalogue
	SetJobsTracked(count int)
}
