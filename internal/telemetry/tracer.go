package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for scanner and catalogue operations.
// These follow OpenTelemetry semantic conventions where applicable.
const (
	// ========================================================================
	// Scanner pass attributes
	// ========================================================================
	AttrScanPhase        = "scan.phase"         // collect, evaluate, archive
	AttrScanReports      = "scan.reports"       // Reports collected this pass
	AttrScanEvaluated    = "scan.evaluated"     // Jobs evaluated this pass
	AttrScanMissing      = "scan.missing"       // MISSING verdicts recorded
	AttrScanArchived     = "scan.archived"      // Reports moved to the archive
	AttrScanWindow       = "scan.window_min"    // Collection window W in minutes
	AttrScanWorkers      = "scan.workers"       // Collect phase worker count
	AttrScanMalformed    = "scan.malformed"     // Reports rejected during collect
	AttrScanAlertsSent   = "scan.alerts_sent"   // Notifications dispatched
	AttrScanAlertsFailed = "scan.alerts_failed" // Notification failures

	// ========================================================================
	// Agent / job attributes
	// ========================================================================
	AttrAgentID   = "agent.id"       // company_city_neighborhood directory name
	AttrJobID     = "job.id"         // Catalogue job primary key
	AttrJobName   = "job.name"       // Expected job name
	AttrJobStatus = "job.status"     // Verdict recorded for the job
	AttrJobYear   = "job.year"       // Dataset year the job covers
	AttrFrequency = "job.frequency"  // daily or weekly
	AttrDeadline  = "job.deadline"   // Cycle anchor the evaluation ran against
	AttrRecipient = "job.recipients" // Notification recipient count

	// ========================================================================
	// Report / artifact attributes
	// ========================================================================
	AttrReportPath  = "report.path"    // Deposit-relative report path
	AttrReportEnd   = "report.end"     // operation_end_time of the report
	AttrReportStage = "report.stage"   // Failing stage name, when present
	AttrArtifact    = "artifact.path"  // Staged artifact path
	AttrArtifactLen = "artifact.bytes" // Staged artifact size

	// ========================================================================
	// Digest attributes
	// ========================================================================
	AttrDigestAlgo  = "digest.algorithm" // sha256
	AttrDigestHit   = "digest.cache_hit" // Cache served the digest
	AttrDigestBytes = "digest.bytes"     // Bytes hashed

	// ========================================================================
	// Promotion attributes
	// ========================================================================
	AttrPromoteDest     = "promote.dest"     // Validated store destination
	AttrPromoteStrategy = "promote.strategy" // rename or copy fallback

	// ========================================================================
	// Database attributes
	// ========================================================================
	AttrDBBackend = "db.system" // sqlite or postgres
	AttrDBTable   = "db.table"

	// ========================================================================
	// User/Auth attributes (API surface)
	// ========================================================================
	AttrUsername = "user.name"
	AttrUserRole = "user.role"
	AttrAuth     = "auth.method"
)

// Span names for operations.
// Format: <component>.<operation>
const (
	// Scanner pass spans
	SpanScanPass     = "scan.pass"
	SpanScanCollect  = "scan.collect"
	SpanScanEvaluate = "scan.evaluate"
	SpanScanArchive  = "scan.archive"

	// Per-unit spans under the phases
	SpanAgentWalk   = "scan.agent_walk"
	SpanJobEvaluate = "job.evaluate"
	SpanDigest      = "digest.compute"
	SpanPromote     = "promote.move"
	SpanNotify      = "notify.send"

	// Catalogue spans
	SpanCatalogAppend = "catalog.append_entry"
	SpanCatalogList   = "catalog.list_jobs"
)

// ScanPhase returns an attribute for the scanner phase name.
func ScanPhase(phase string) attribute.KeyValue {
	return attribute.String(AttrScanPhase, phase)
}

// ScanReports returns an attribute for the collected report count.
func ScanReports(n int) attribute.KeyValue {
	return attribute.Int(AttrScanReports, n)
}

// ScanEvaluated returns an attribute for the evaluated job count.
func ScanEvaluated(n int) attribute.KeyValue {
	return attribute.Int(AttrScanEvaluated, n)
}

// ScanMissing returns an attribute for the MISSING verdict count.
func ScanMissing(n int) attribute.KeyValue {
	return attribute.Int(AttrScanMissing, n)
}

// ScanArchived returns an attribute for the archived report count.
func ScanArchived(n int) attribute.KeyValue {
	return attribute.Int(AttrScanArchived, n)
}

// ScanWindow returns an attribute for the collection window in minutes.
func ScanWindow(minutes int) attribute.KeyValue {
	return attribute.Int(AttrScanWindow, minutes)
}

// AgentID returns an attribute for the agent directory name.
func AgentID(id string) attribute.KeyValue {
	return attribute.String(AttrAgentID, id)
}

// JobID returns an attribute for the catalogue job ID.
func JobID(id uint) attribute.KeyValue {
	return attribute.Int64(AttrJobID, int64(id))
}

// JobName returns an attribute for the job name.
func JobName(name string) attribute.KeyValue {
	return attribute.String(AttrJobName, name)
}

// JobStatus returns an attribute for the recorded verdict.
func JobStatus(status string) attribute.KeyValue {
	return attribute.String(AttrJobStatus, status)
}

// ReportPath returns an attribute for the deposit-relative report path.
func ReportPath(path string) attribute.KeyValue {
	return attribute.String(AttrReportPath, path)
}

// ReportStage returns an attribute for a failing stage name.
func ReportStage(stage string) attribute.KeyValue {
	return attribute.String(AttrReportStage, stage)
}

// Artifact returns an attribute for a staged artifact path.
func Artifact(path string) attribute.KeyValue {
	return attribute.String(AttrArtifact, path)
}

// ArtifactBytes returns an attribute for the staged artifact size.
func ArtifactBytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrArtifactLen, n)
}

// DigestHit returns an attribute indicating a digest cache hit.
func DigestHit(hit bool) attribute.KeyValue {
	return attribute.Bool(AttrDigestHit, hit)
}

// DigestBytes returns an attribute for the hashed byte count.
func DigestBytes(n int64) attribute.KeyValue {
	return attribute.Int64(AttrDigestBytes, n)
}

// PromoteDest returns an attribute for the validated store destination.
func PromoteDest(path string) attribute.KeyValue {
	return attribute.String(AttrPromoteDest, path)
}

// PromoteStrategy returns an attribute for the move strategy used.
func PromoteStrategy(strategy string) attribute.KeyValue {
	return attribute.String(AttrPromoteStrategy, strategy)
}

// DBBackend returns an attribute for the catalogue backend.
func DBBackend(backend string) attribute.KeyValue {
	return attribute.String(AttrDBBackend, backend)
}

// Username returns an attribute for the authenticated username.
func Username(name string) attribute.KeyValue {
	return attribute.String(AttrUsername, name)
}

// UserRole returns an attribute for the authenticated user's role.
func UserRole(role string) attribute.KeyValue {
	return attribute.String(AttrUserRole, role)
}

// AuthMethod returns an attribute for the authentication method.
func AuthMethod(method string) attribute.KeyValue {
	return attribute.String(AttrAuth, method)
}

// StartPassSpan starts the root span for one reconciliation pass.
func StartPassSpan(ctx context.Context, windowMinutes int, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		ScanWindow(windowMinutes),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanScanPass, trace.WithAttributes(allAttrs...))
}

// StartPhaseSpan starts a span for one scanner phase (collect, evaluate, archive).
func StartPhaseSpan(ctx context.Context, phase string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		ScanPhase(phase),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, "scan."+phase, trace.WithAttributes(allAttrs...))
}

// StartJobSpan starts a span for one job evaluation.
func StartJobSpan(ctx context.Context, jobID uint, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		JobID(jobID),
		JobName(name),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanJobEvaluate, trace.WithAttributes(allAttrs...))
}

// StartDigestSpan starts a span for one artifact digest computation.
func StartDigestSpan(ctx context.Context, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := []attribute.KeyValue{
		Artifact(path),
	}
	allAttrs = append(allAttrs, attrs...)

	return StartSpan(ctx, SpanDigest, trace.WithAttributes(allAttrs...))
}
