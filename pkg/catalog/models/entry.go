package models

import "time"

// EntryStatus is the outcome of one scanner decision.
type EntryStatus string

const (
	// EntryStatusSuccess means the artifact was verified and promoted.
	EntryStatusSuccess EntryStatus = "SUCCESS"
	// EntryStatusFailed means the agent declared a stage failure, the
	// report was unusable for this job, or promotion failed.
	EntryStatusFailed EntryStatus = "FAILED"
	// EntryStatusMissing means the cycle deadline passed unobserved.
	EntryStatusMissing EntryStatus = "MISSING"
	// EntryStatusHashMismatch means the artifact content is identical
	// to the previous success: transfer was sound, content unchanged.
	EntryStatusHashMismatch EntryStatus = "HASH_MISMATCH"
	// EntryStatusTransferIntegrityFailed means the staged artifact was
	// absent or its digest/size contradicted the report.
	EntryStatusTransferIntegrityFailed EntryStatus = "TRANSFER_INTEGRITY_FAILED"
)

// IsValid checks if the status is a known EntryStatus.
func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryStatusSuccess, EntryStatusFailed, EntryStatusMissing,
		EntryStatusHashMismatch, EntryStatusTransferIntegrityFailed:
		return true
	}
	return false
}

// JobStatus maps the entry status to the job status it induces.
func (s EntryStatus) JobStatus() JobStatus {
	switch s {
	case EntryStatusSuccess:
		return JobStatusOK
	case EntryStatusFailed:
		return JobStatusFailed
	case EntryStatusMissing:
		return JobStatusMissing
	case EntryStatusHashMismatch:
		return JobStatusHashMismatch
	case EntryStatusTransferIntegrityFailed:
		return JobStatusTransferIntegrityFailed
	default:
		return JobStatusUnknown
	}
}

// BackupEntry is the immutable record of one scanner decision for one
// job. Entries are append-only; agent_* fields are copied verbatim
// from the report that produced the decision, server_* fields are
// computed independently.
type BackupEntry struct {
	ID            uint `gorm:"primaryKey" json:"id"`
	ExpectedJobID uint `gorm:"not null;index" json:"expected_job_id"`

	Timestamp time.Time   `gorm:"not null;index" json:"timestamp"`
	Status    EntryStatus `gorm:"not null;size:30;index" json:"status"`
	Message   string      `gorm:"type:text" json:"message,omitempty"`

	// OperationLogFileName is the report file that produced this
	// decision; empty for MISSING entries.
	OperationLogFileName string `gorm:"size:255" json:"operation_log_file_name,omitempty"`

	AgentID            string `gorm:"size:255" json:"agent_id,omitempty"`
	AgentOverallStatus string `gorm:"size:50" json:"agent_overall_status,omitempty"`

	AgentBackupStatus          *bool      `json:"agent_backup_status,omitempty"`
	AgentBackupStartTime       *time.Time `json:"agent_backup_start_time,omitempty"`
	AgentBackupEndTime         *time.Time `json:"agent_backup_end_time,omitempty"`
	AgentBackupHashPreCompress string     `gorm:"size:64" json:"agent_backup_hash_pre_compress,omitempty"`
	AgentBackupSizePreCompress *int64     `json:"agent_backup_size_pre_compress,omitempty"`

	AgentCompressStatus           *bool      `json:"agent_compress_status,omitempty"`
	AgentCompressStartTime        *time.Time `json:"agent_compress_start_time,omitempty"`
	AgentCompressEndTime          *time.Time `json:"agent_compress_end_time,omitempty"`
	AgentCompressHashPostCompress string     `gorm:"size:64" json:"agent_compress_hash_post_compress,omitempty"`
	AgentCompressSizePostCompress *int64     `json:"agent_compress_size_post_compress,omitempty"`

	AgentTransferStatus       *bool      `json:"agent_transfer_status,omitempty"`
	AgentTransferStartTime    *time.Time `json:"agent_transfer_start_time,omitempty"`
	AgentTransferEndTime      *time.Time `json:"agent_transfer_end_time,omitempty"`
	AgentTransferErrorMessage string     `gorm:"type:text" json:"agent_transfer_error_message,omitempty"`

	AgentStagedFileName string `gorm:"size:255" json:"agent_staged_file_name,omitempty"`
	AgentLogsSummary    string `gorm:"type:text" json:"agent_logs_summary,omitempty"`

	// ServerCalculatedHash and ServerCalculatedSize come from hashing
	// the staged artifact on the server side; nil when the decision
	// never reached the artifact.
	ServerCalculatedHash string `gorm:"size:64;index" json:"server_calculated_hash,omitempty"`
	ServerCalculatedSize *int64 `json:"server_calculated_size,omitempty"`

	// PreviousSuccessfulHash is what the job believed before this
	// decision was made.
	PreviousSuccessfulHash string `gorm:"size:64" json:"previous_successful_hash,omitempty"`

	// HashComparisonResult is true when the artifact content changed
	// against the previous success, false when it is identical, nil
	// when no comparison took place.
	HashComparisonResult *bool `json:"hash_comparison_result,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for BackupEntry.
func (BackupEntry) TableName() string {
	return "backup_entries"
}
