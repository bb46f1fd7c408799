package report

import (
	"fmt"
	"time"
)

// Each validation failure class is a distinct type so callers can
// branch with errors.As. The classes mirror the rule order the parser
// enforces: a report failing several rules reports the first.

// NotFoundError indicates the report file does not exist or could not
// be opened.
type NotFoundError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("report not found: %s", e.Path)
}

// Unwrap returns the underlying cause.
func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// MalformedError indicates the file content is not a parseable JSON
// document.
type MalformedError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed report %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *MalformedError) Unwrap() error {
	return e.Err
}

// MissingFieldError indicates a required field is absent. Field is a
// dotted path for nested fields ("databases.SALES.BACKUP").
type MissingFieldError struct {
	Field string
}

// Error implements the error interface.
func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("report missing required field %q", e.Field)
}

// InvalidValueError indicates a field is present but its value is
// outside the accepted domain.
type InvalidValueError struct {
	Field  string
	Value  string
	Reason string
}

// Error implements the error interface.
func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("report field %q has invalid value %q: %s", e.Field, e.Value, e.Reason)
}

// StaleError indicates the report's operation end time is older than
// the accepted age.
type StaleError struct {
	EndTime time.Time
	MaxAge  time.Duration
}

// Error implements the error interface.
func (e *StaleError) Error() string {
	return fmt.Sprintf("report is stale: operation ended %s, older than %s",
		e.EndTime.Format(time.RFC3339), e.MaxAge)
}

// IdentityMismatchError indicates the report's agent_id does not match
// the canonical name of the directory it was found under.
type IdentityMismatchError struct {
	ReportAgentID string
	DirAgentID    string
}

// Error implements the error interface.
func (e *IdentityMismatchError) Error() string {
	return fmt.Sprintf("report agent_id %q does not match directory agent %q",
		e.ReportAgentID, e.DirAgentID)
}
