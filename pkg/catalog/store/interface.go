// Package store provides the catalogue persistence layer.
//
// This package implements the Store interface for managing expected
// backup jobs, their append-only history entries, and API users.
//
// Two backends are supported:
//   - SQLite (single-node, default)
//   - PostgreSQL (HA-capable)
package store

import (
	"context"
	"time"

	"github.com/backmon-io/backmon/pkg/catalog/models"
	"github.com/backmon-io/backmon/pkg/layout"
)

// Store provides the catalogue persistence interface.
//
// Thread Safety: Implementations must be safe for concurrent use from
// multiple goroutines. The scanner serializes its own writes (one
// transaction per job), but API reads run concurrently with passes.
type Store interface {
	// ============================================
	// JOB OPERATIONS
	// ============================================

	// GetJob returns an expected job by ID.
	// Returns models.ErrJobNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id uint) (*models.ExpectedJob, error)

	// FindJobByAgentDB returns the active job matching the agent
	// coordinates and database name. Coordinates are compared
	// case-insensitively; database names are compared exactly.
	// Returns models.ErrJobNotFound if no such job exists.
	FindJobByAgentDB(ctx context.Context, agent layout.AgentID, database string) (*models.ExpectedJob, error)

	// ListJobs returns all jobs, active or not.
	ListJobs(ctx context.Context) ([]*models.ExpectedJob, error)

	// ListActiveJobs returns all jobs with is_active = true. This is
	// the working set of a scanner pass.
	ListActiveJobs(ctx context.Context) ([]*models.ExpectedJob, error)

	// CreateJob creates a new expected job.
	// Returns the generated ID.
	// Returns models.ErrDuplicateJob if a job with the same identity
	// (year, company, city, database, hour, minute) exists.
	CreateJob(ctx context.Context, job *models.ExpectedJob) (uint, error)

	// UpdateJob updates the operator-editable fields of a job. Fields
	// owned by the scanner (current_status, last_checked_at,
	// last_successful_at, previous_successful_hash) are not touched;
	// they change only through AppendEntryAndUpdateJob.
	// Returns models.ErrJobNotFound if the job doesn't exist.
	// Returns models.ErrDuplicateJob if the new identity collides.
	UpdateJob(ctx context.Context, job *models.ExpectedJob) error

	// DeleteJob deletes a job and all of its history entries.
	// Returns models.ErrJobNotFound if the job doesn't exist.
	DeleteJob(ctx context.Context, id uint) error

	// ============================================
	// ENTRY OPERATIONS
	// ============================================

	// AppendEntryAndUpdateJob persists one scanner decision: the entry
	// is inserted and the job is patched in a single transaction.
	// current_status follows the entry status and last_checked_at is
	// set to the entry timestamp. If and only if the entry is SUCCESS,
	// last_successful_at and previous_successful_hash advance too.
	// Returns models.ErrJobNotFound if the job doesn't exist.
	AppendEntryAndUpdateJob(ctx context.Context, job *models.ExpectedJob, entry *models.BackupEntry) error

	// GetEntry returns a single entry by ID.
	// Returns models.ErrEntryNotFound if the entry doesn't exist.
	GetEntry(ctx context.Context, id uint) (*models.BackupEntry, error)

	// ListEntries returns the most recent entries for a job, newest
	// first. limit <= 0 means no limit.
	ListEntries(ctx context.Context, jobID uint, limit int) ([]*models.BackupEntry, error)

	// ListAllEntries returns the most recent entries across all jobs,
	// newest first. limit <= 0 means no limit.
	ListAllEntries(ctx context.Context, limit int) ([]*models.BackupEntry, error)

	// RecentEntries returns all entries for a job with timestamp >=
	// since, newest first.
	RecentEntries(ctx context.Context, jobID uint, since time.Time) ([]*models.BackupEntry, error)

	// LatestEntry returns the most recent entry for a job.
	// Returns models.ErrEntryNotFound if the job has no history.
	LatestEntry(ctx context.Context, jobID uint) (*models.BackupEntry, error)

	// HasEntrySince reports whether the job has an entry with
	// timestamp >= since and status in statuses. The scanner uses it
	// to suppress duplicate MISSING decisions for one cycle.
	HasEntrySince(ctx context.Context, jobID uint, since time.Time, statuses []models.EntryStatus) (bool, error)

	// ============================================
	// USER OPERATIONS
	// ============================================

	// GetUser returns a user by username.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	GetUser(ctx context.Context, username string) (*models.User, error)

	// GetUserByID returns a user by their unique ID (UUID).
	// Returns models.ErrUserNotFound if no user has this ID.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// ListUsers returns all users.
	ListUsers(ctx context.Context) ([]*models.User, error)

	// CreateUser creates a new user.
	// The user ID will be generated if empty.
	// Returns the generated ID.
	// Returns models.ErrDuplicateUser if a user with the same username exists.
	CreateUser(ctx context.Context, user *models.User) (string, error)

	// UpdateUser updates an existing user.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	UpdateUser(ctx context.Context, user *models.User) error

	// DeleteUser deletes a user by username.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	DeleteUser(ctx context.Context, username string) error

	// UpdatePassword updates a user's password hash.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	UpdatePassword(ctx context.Context, username, passwordHash string) error

	// UpdateLastLogin updates the user's last login timestamp.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	UpdateLastLogin(ctx context.Context, username string, timestamp time.Time) error

	// ValidateCredentials verifies username/password credentials.
	// Returns the user if credentials are valid.
	// Returns models.ErrInvalidCredentials if the credentials are invalid.
	// Returns models.ErrUserDisabled if the user account is disabled.
	ValidateCredentials(ctx context.Context, username, password string) (*models.User, error)

	// ============================================
	// ADMIN INITIALIZATION
	// ============================================

	// EnsureAdminUser ensures an admin user exists.
	// If no admin user exists, creates one with a generated password.
	// Returns the initial password if a new admin was created, empty string otherwise.
	// This should be called during server startup.
	EnsureAdminUser(ctx context.Context) (initialPassword string, err error)

	// IsAdminInitialized returns whether the admin user has been initialized.
	IsAdminInitialized(ctx context.Context) (bool, error)

	// ============================================
	// HEALTH & LIFECYCLE
	// ============================================

	// Healthcheck verifies the store is operational.
	// Returns an error if the store is not healthy.
	Healthcheck(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}
