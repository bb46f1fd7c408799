// Package models defines the persisted catalogue: expected backup
// jobs, their append-only history entries, and the users of the
// administrative API.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/backmon-io/backmon/pkg/layout"
)

// JobStatus is the catalogue-facing state of an expected job, derived
// from the most recent scanner decision.
type JobStatus string

const (
	// JobStatusUnknown means no scanner decision has touched the job yet.
	JobStatusUnknown JobStatus = "UNKNOWN"
	// JobStatusOK means the last cycle was observed and verified.
	JobStatusOK JobStatus = "OK"
	// JobStatusFailed means the agent declared a stage failure or a
	// promotion failed.
	JobStatusFailed JobStatus = "FAILED"
	// JobStatusMissing means the cycle deadline passed with no report.
	JobStatusMissing JobStatus = "MISSING"
	// JobStatusHashMismatch means the artifact content has not changed
	// since the previous success.
	JobStatusHashMismatch JobStatus = "HASH_MISMATCH"
	// JobStatusTransferIntegrityFailed means the staged artifact was
	// absent or its digest or size contradicted the report.
	JobStatusTransferIntegrityFailed JobStatus = "TRANSFER_INTEGRITY_FAILED"
)

// IsValid checks if the status is a known JobStatus.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusUnknown, JobStatusOK, JobStatusFailed, JobStatusMissing,
		JobStatusHashMismatch, JobStatusTransferIntegrityFailed:
		return true
	}
	return false
}

// Frequency is how often a job's cycle recurs.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyHourly  Frequency = "hourly"
	FrequencyOnce    Frequency = "once"
)

// IsValid checks if the frequency is a known Frequency.
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyHourly, FrequencyOnce:
		return true
	}
	return false
}

// Two-letter day tokens stored in ExpectedJob.DaysOfWeek, in week
// order starting Monday.
var weekdayTokens = []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

// weekdayToken maps time.Weekday to the stored token.
var weekdayToken = map[time.Weekday]string{
	time.Monday:    "Mo",
	time.Tuesday:   "Tu",
	time.Wednesday: "We",
	time.Thursday:  "Th",
	time.Friday:    "Fr",
	time.Saturday:  "Sa",
	time.Sunday:    "Su",
}

// DefaultDaysOfWeek covers Monday through Saturday, the cadence the
// deposit sites run on.
const DefaultDaysOfWeek = "Mo,Tu,We,Th,Fr,Sa"

// ValidDaysOfWeek checks a comma-separated day list: every token must
// be one of Mo,Tu,We,Th,Fr,Sa,Su (case-insensitive).
func ValidDaysOfWeek(days string) bool {
	if strings.TrimSpace(days) == "" {
		return false
	}
	for _, tok := range strings.Split(days, ",") {
		tok = strings.TrimSpace(tok)
		found := false
		for _, known := range weekdayTokens {
			if strings.EqualFold(tok, known) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ExpectedJob is one database-backup cycle the server expects to
// observe repeatedly.
type ExpectedJob struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Site coordinates. The agent expected to deposit for this job is
	// company_city_neighborhood, lowercase.
	Year         int    `gorm:"not null;uniqueIndex:idx_job_identity" json:"year"`
	Company      string `gorm:"not null;size:255;index;uniqueIndex:idx_job_identity" json:"company"`
	City         string `gorm:"not null;size:255;index;uniqueIndex:idx_job_identity" json:"city"`
	Neighborhood string `gorm:"not null;size:255" json:"neighborhood"`

	DatabaseName string `gorm:"not null;size:255;index;uniqueIndex:idx_job_identity" json:"database_name"`

	// Cycle anchor, UTC.
	ExpectedHourUTC   int `gorm:"not null;uniqueIndex:idx_job_identity" json:"expected_hour_utc"`
	ExpectedMinuteUTC int `gorm:"not null;uniqueIndex:idx_job_identity" json:"expected_minute_utc"`

	Frequency  Frequency `gorm:"not null;size:20;default:daily" json:"frequency"`
	DaysOfWeek string    `gorm:"not null;size:50;default:'Mo,Tu,We,Th,Fr,Sa'" json:"days_of_week"`

	// FinalStorageTemplate overrides the default promotion layout when
	// set. Empty means {year}/{company}/{city}/{neighborhood}/{database}.
	FinalStorageTemplate string `gorm:"size:512" json:"final_storage_template"`

	IsActive      bool      `gorm:"not null;default:true;index" json:"is_active"`
	CurrentStatus JobStatus `gorm:"not null;size:30;default:UNKNOWN" json:"current_status"`

	LastCheckedAt    *time.Time `json:"last_checked_at,omitempty"`
	LastSuccessfulAt *time.Time `json:"last_successful_at,omitempty"`

	// PreviousSuccessfulHash is the server-computed digest of the last
	// promoted artifact. Advances only on a SUCCESS decision.
	PreviousSuccessfulHash string `gorm:"size:64" json:"previous_successful_hash,omitempty"`

	// NotificationRecipients optionally overrides the global alert
	// recipient for this job (comma-separated addresses).
	NotificationRecipients string `gorm:"size:512" json:"notification_recipients,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for ExpectedJob.
func (ExpectedJob) TableName() string {
	return "expected_jobs"
}

// AgentID returns the agent expected to deposit for this job.
func (j *ExpectedJob) AgentID() layout.AgentID {
	return layout.AgentID{
		Company:      strings.ToLower(j.Company),
		City:         strings.ToLower(j.City),
		Neighborhood: strings.ToLower(j.Neighborhood),
	}
}

// Coordinates returns the promotion coordinates for the job.
func (j *ExpectedJob) Coordinates() layout.JobCoordinates {
	return layout.JobCoordinates{
		Year:         j.Year,
		Company:      strings.ToLower(j.Company),
		City:         strings.ToLower(j.City),
		Neighborhood: strings.ToLower(j.Neighborhood),
		Database:     j.DatabaseName,
	}
}

// AnchorClock formats the cycle anchor as HH:MM for messages.
func (j *ExpectedJob) AnchorClock() string {
	return fmt.Sprintf("%02d:%02d", j.ExpectedHourUTC, j.ExpectedMinuteUTC)
}

// ExpectedOn reports whether the job's cycle runs on the weekday of t.
func (j *ExpectedJob) ExpectedOn(t time.Time) bool {
	token := weekdayToken[t.UTC().Weekday()]
	for _, tok := range strings.Split(j.DaysOfWeek, ",") {
		if strings.EqualFold(strings.TrimSpace(tok), token) {
			return true
		}
	}
	return false
}

// Validate checks the job definition before it enters the catalogue.
func (j *ExpectedJob) Validate() error {
	if j.Year < 1990 || j.Year > 9999 {
		return fmt.Errorf("year %d out of range", j.Year)
	}
	if j.Company == "" || j.City == "" || j.Neighborhood == "" {
		return fmt.Errorf("company, city and neighborhood are required")
	}
	if j.DatabaseName == "" {
		return fmt.Errorf("database_name is required")
	}
	if j.ExpectedHourUTC < 0 || j.ExpectedHourUTC > 23 {
		return fmt.Errorf("expected_hour_utc %d out of range", j.ExpectedHourUTC)
	}
	if j.ExpectedMinuteUTC < 0 || j.ExpectedMinuteUTC > 59 {
		return fmt.Errorf("expected_minute_utc %d out of range", j.ExpectedMinuteUTC)
	}
	if j.Frequency != "" && !j.Frequency.IsValid() {
		return fmt.Errorf("invalid frequency %q", j.Frequency)
	}
	if j.DaysOfWeek != "" && !ValidDaysOfWeek(j.DaysOfWeek) {
		return fmt.Errorf("invalid days_of_week %q", j.DaysOfWeek)
	}
	if j.CurrentStatus != "" && !j.CurrentStatus.IsValid() {
		return fmt.Errorf("invalid current_status %q", j.CurrentStatus)
	}
	return nil
}
