// Package report parses and validates the status documents backup
// agents deposit in their log directories.
//
// A report is a JSON document describing one backup cycle: which
// databases were dumped, whether each BACKUP/COMPRESS/TRANSFER stage
// succeeded, the post-compression checksum and size the server must
// verify, and the staged artifact's filename. Validation enforces a
// fixed rule order; each failure class is a distinct error type in
// errors.go.
package report

import "time"

// Overall statuses an agent may declare for a cycle.
const (
	OverallCompleted      = "completed"
	OverallFailedGlobally = "failed_globally"
)

// Stage names inside a database entry.
const (
	StageBackup   = "BACKUP"
	StageCompress = "COMPRESS"
	StageTransfer = "TRANSFER"
)

// Stage is one step of the agent-side pipeline for a database.
//
// Times are nil when absent or unparseable: stage timing is
// informational and never fails validation. Size is -1 when absent or
// not a number, which matches how downstream comparison treats an
// unusable agent size.
type Stage struct {
	Status       bool
	StartTime    *time.Time
	EndTime      *time.Time
	SHA256       string
	Size         int64
	ErrorMessage string
}

// Database is the per-database section of a report.
type Database struct {
	Backup         Stage
	Compress       Stage
	Transfer       Stage
	StagedFileName string
	LogsSummary    string
}

// StagesOK reports whether all three pipeline stages succeeded.
func (d Database) StagesOK() bool {
	return d.Backup.Status && d.Compress.Status && d.Transfer.Status
}

// FailedStages lists the names of the stages that did not succeed, in
// pipeline order.
func (d Database) FailedStages() []string {
	var failed []string
	if !d.Backup.Status {
		failed = append(failed, StageBackup)
	}
	if !d.Compress.Status {
		failed = append(failed, StageCompress)
	}
	if !d.Transfer.Status {
		failed = append(failed, StageTransfer)
	}
	return failed
}

// Report is one validated agent status document.
type Report struct {
	// AgentID is the canonical (lowercase) agent identity from the
	// document, already verified against the enclosing directory.
	AgentID string

	// OverallStatus is "completed" or "failed_globally".
	OverallStatus string

	// OperationStartTime is when the agent began the cycle, UTC.
	OperationStartTime time.Time

	// OperationEndTime anchors the report to a cycle. When the
	// document lacks operation_end_time, operation_timestamp stands in.
	OperationEndTime time.Time

	// Databases maps database name to its section. Never empty.
	Databases map[string]Database

	// FileName is the base name of the source file, recorded on every
	// entry the report produces.
	FileName string

	// Path is the location the report was read from, as passed to the
	// parser.
	Path string
}
