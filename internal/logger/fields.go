package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so scan passes,
// catalogue changes and HTTP requests can be correlated during aggregation.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Scan Pass
	// ========================================================================
	KeyPhase     = "phase"     // Scanner phase: collect, evaluate, archive
	KeyOperation = "operation" // Sub-operation name for complex flows
	KeyWindow    = "window"    // Relevance window in minutes
	KeyAnchor    = "anchor"    // Cycle anchor instant (UTC)
	KeyDeadline  = "deadline"  // Cycle deadline instant (UTC)

	// ========================================================================
	// Agents & Reports
	// ========================================================================
	KeyAgent         = "agent"          // Canonical agent id: company_city_neighborhood
	KeyDatabase      = "database"       // Database name within an agent
	KeyReport        = "report"         // Report filename (basename)
	KeyOverallStatus = "overall_status" // Agent-reported overall status
	KeyStagedFile    = "staged_file"    // Staged artifact filename

	// ========================================================================
	// Jobs & Entries
	// ========================================================================
	KeyJobID   = "job_id"   // Expected job identifier
	KeyEntryID = "entry_id" // Backup entry identifier
	KeyStatus  = "status"   // Decision or job status name

	// ========================================================================
	// File System Operations
	// ========================================================================
	KeyPath     = "path"     // Full file/directory path
	KeyFilename = "filename" // File or directory name (basename)
	KeyOldPath  = "old_path" // Source path for move operations
	KeyNewPath  = "new_path" // Destination path for move/copy operations
	KeyRoot     = "root"     // Configured storage root
	KeySize     = "size"     // File size in bytes

	// ========================================================================
	// Integrity
	// ========================================================================
	KeyServerHash = "server_hash" // Server-computed SHA-256 (lowercase hex)
	KeyAgentHash  = "agent_hash"  // Agent-reported SHA-256
	KeyServerSize = "server_size" // Server-computed size in bytes
	KeyAgentSize  = "agent_size"  // Agent-reported size in bytes
	KeyCacheHit   = "cache_hit"   // Digest cache hit indicator

	// ========================================================================
	// Notification
	// ========================================================================
	KeyRecipient  = "recipient"   // Notification recipient address
	KeySubject    = "subject"     // Notification subject line
	KeySMTPHost   = "smtp_host"   // SMTP relay host
	KeyAttempt    = "attempt"     // Retry attempt number
	KeyMaxRetries = "max_retries" // Maximum retry attempts

	// ========================================================================
	// HTTP & Client Identification
	// ========================================================================
	KeyClientIP   = "client_ip"   // Client IP address
	KeyMethod     = "method"      // HTTP method
	KeyRoute      = "route"       // HTTP route pattern
	KeyStatusCode = "status_code" // HTTP response status code
	KeyUsername   = "username"    // Authenticated username
	KeyRequestID  = "request_id"  // chi middleware request ID

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeyCount      = "count"       // Generic item count
)

// ============================================================================
// Field constructors for type safety
// These functions provide type-safe construction of slog.Attr values.
// ============================================================================

// ----------------------------------------------------------------------------
// Distributed Tracing
// ----------------------------------------------------------------------------

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// ----------------------------------------------------------------------------
// Scan Pass
// ----------------------------------------------------------------------------

// Phase returns a slog.Attr for a scanner phase name
func Phase(name string) slog.Attr {
	return slog.String(KeyPhase, name)
}

// Operation returns a slog.Attr for a sub-operation name
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Window returns a slog.Attr for a relevance window in minutes
func Window(minutes int) slog.Attr {
	return slog.Int(KeyWindow, minutes)
}

// Anchor returns a slog.Attr for a cycle anchor instant
func Anchor(t time.Time) slog.Attr {
	return slog.Time(KeyAnchor, t)
}

// Deadline returns a slog.Attr for a cycle deadline instant
func Deadline(t time.Time) slog.Attr {
	return slog.Time(KeyDeadline, t)
}

// ----------------------------------------------------------------------------
// Agents & Reports
// ----------------------------------------------------------------------------

// Agent returns a slog.Attr for a canonical agent id
func Agent(id string) slog.Attr {
	return slog.String(KeyAgent, id)
}

// Database returns a slog.Attr for a database name
func Database(name string) slog.Attr {
	return slog.String(KeyDatabase, name)
}

// Report returns a slog.Attr for a report filename
func Report(name string) slog.Attr {
	return slog.String(KeyReport, name)
}

// OverallStatus returns a slog.Attr for an agent-reported overall status
func OverallStatus(status string) slog.Attr {
	return slog.String(KeyOverallStatus, status)
}

// StagedFile returns a slog.Attr for a staged artifact filename
func StagedFile(name string) slog.Attr {
	return slog.String(KeyStagedFile, name)
}

// ----------------------------------------------------------------------------
// Jobs & Entries
// ----------------------------------------------------------------------------

// JobID returns a slog.Attr for an expected job identifier
func JobID(id uint) slog.Attr {
	return slog.Uint64(KeyJobID, uint64(id))
}

// EntryID returns a slog.Attr for a backup entry identifier
func EntryID(id uint) slog.Attr {
	return slog.Uint64(KeyEntryID, uint64(id))
}

// Status returns a slog.Attr for a decision or job status name
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// ----------------------------------------------------------------------------
// File System Operations
// ----------------------------------------------------------------------------

// Path returns a slog.Attr for file/directory path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Filename returns a slog.Attr for filename (basename)
func Filename(name string) slog.Attr {
	return slog.String(KeyFilename, name)
}

// OldPath returns a slog.Attr for source path in move operations
func OldPath(p string) slog.Attr {
	return slog.String(KeyOldPath, p)
}

// NewPath returns a slog.Attr for destination path in move/copy operations
func NewPath(p string) slog.Attr {
	return slog.String(KeyNewPath, p)
}

// Root returns a slog.Attr for a configured storage root
func Root(p string) slog.Attr {
	return slog.String(KeyRoot, p)
}

// Size returns a slog.Attr for file size
func Size(s int64) slog.Attr {
	return slog.Int64(KeySize, s)
}

// ----------------------------------------------------------------------------
// Integrity
// ----------------------------------------------------------------------------

// ServerHash returns a slog.Attr for a server-computed SHA-256
func ServerHash(h string) slog.Attr {
	return slog.String(KeyServerHash, h)
}

// AgentHash returns a slog.Attr for an agent-reported SHA-256
func AgentHash(h string) slog.Attr {
	return slog.String(KeyAgentHash, h)
}

// ServerSize returns a slog.Attr for a server-computed size
func ServerSize(s int64) slog.Attr {
	return slog.Int64(KeyServerSize, s)
}

// AgentSize returns a slog.Attr for an agent-reported size
func AgentSize(s int64) slog.Attr {
	return slog.Int64(KeyAgentSize, s)
}

// CacheHit returns a slog.Attr for digest cache hit indicator
func CacheHit(hit bool) slog.Attr {
	return slog.Bool(KeyCacheHit, hit)
}

// ----------------------------------------------------------------------------
// Notification
// ----------------------------------------------------------------------------

// Recipient returns a slog.Attr for a notification recipient
func Recipient(addr string) slog.Attr {
	return slog.String(KeyRecipient, addr)
}

// Subject returns a slog.Attr for a notification subject line
func Subject(s string) slog.Attr {
	return slog.String(KeySubject, s)
}

// SMTPHost returns a slog.Attr for an SMTP relay host
func SMTPHost(host string) slog.Attr {
	return slog.String(KeySMTPHost, host)
}

// Attempt returns a slog.Attr for retry attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// MaxRetries returns a slog.Attr for maximum retry attempts
func MaxRetries(n int) slog.Attr {
	return slog.Int(KeyMaxRetries, n)
}

// ----------------------------------------------------------------------------
// HTTP & Client Identification
// ----------------------------------------------------------------------------

// ClientIP returns a slog.Attr for client IP address
func ClientIP(addr string) slog.Attr {
	return slog.String(KeyClientIP, addr)
}

// Method returns a slog.Attr for HTTP method
func Method(m string) slog.Attr {
	return slog.String(KeyMethod, m)
}

// Route returns a slog.Attr for HTTP route pattern
func Route(r string) slog.Attr {
	return slog.String(KeyRoute, r)
}

// StatusCode returns a slog.Attr for HTTP response status code
func StatusCode(code int) slog.Attr {
	return slog.Int(KeyStatusCode, code)
}

// Username returns a slog.Attr for authenticated username
func Username(name string) slog.Attr {
	return slog.String(KeyUsername, name)
}

// RequestIDStr returns a slog.Attr for request ID as string
func RequestIDStr(id string) slog.Attr {
	return slog.String(KeyRequestID, id)
}

// ----------------------------------------------------------------------------
// Operation Metadata
// ----------------------------------------------------------------------------

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Count returns a slog.Attr for a generic item count
func Count(n int) slog.Attr {
	return slog.Int(KeyCount, n)
}
