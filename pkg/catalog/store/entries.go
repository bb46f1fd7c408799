package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/backmon-io/backmon/pkg/catalog/models"
)

// ============================================
// ENTRY OPERATIONS
// ============================================

func (s *GORMStore) AppendEntryAndUpdateJob(ctx context.Context, job *models.ExpectedJob, entry *models.BackupEntry) error {
	newStatus := entry.Status.JobStatus()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.ExpectedJob
		if err := tx.Where("id = ?", job.ID).First(&existing).Error; err != nil {
			return convertNotFoundError(err, models.ErrJobNotFound)
		}

		entry.ExpectedJobID = job.ID
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		patch := map[string]any{
			"current_status":  newStatus,
			"last_checked_at": entry.Timestamp,
		}
		if entry.Status == models.EntryStatusSuccess {
			patch["last_successful_at"] = entry.Timestamp
			patch["previous_successful_hash"] = entry.ServerCalculatedHash
		}

		return tx.Model(&existing).Updates(patch).Error
	})
	if err != nil {
		return err
	}

	// Reflect the committed state on the caller's copy.
	ts := entry.Timestamp
	job.CurrentStatus = newStatus
	job.LastCheckedAt = &ts
	if entry.Status == models.EntryStatusSuccess {
		job.LastSuccessfulAt = &ts
		job.PreviousSuccessfulHash = entry.ServerCalculatedHash
	}
	return nil
}

func (s *GORMStore) GetEntry(ctx context.Context, id uint) (*models.BackupEntry, error) {
	return getByField[models.BackupEntry](s.db, ctx, "id", id, models.ErrEntryNotFound)
}

func (s *GORMStore) ListEntries(ctx context.Context, jobID uint, limit int) ([]*models.BackupEntry, error) {
	var entries []*models.BackupEntry
	q := s.db.WithContext(ctx).
		Where("expected_job_id = ?", jobID).
		Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *GORMStore) ListAllEntries(ctx context.Context, limit int) ([]*models.BackupEntry, error) {
	var entries []*models.BackupEntry
	q := s.db.WithContext(ctx).Order("timestamp DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *GORMStore) RecentEntries(ctx context.Context, jobID uint, since time.Time) ([]*models.BackupEntry, error) {
	var entries []*models.BackupEntry
	err := s.db.WithContext(ctx).
		Where("expected_job_id = ? AND timestamp >= ?", jobID, since).
		Order("timestamp DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *GORMStore) LatestEntry(ctx context.Context, jobID uint) (*models.BackupEntry, error) {
	var entry models.BackupEntry
	err := s.db.WithContext(ctx).
		Where("expected_job_id = ?", jobID).
		Order("timestamp DESC, id DESC").
		First(&entry).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrEntryNotFound)
	}
	return &entry, nil
}

func (s *GORMStore) HasEntrySince(ctx context.Context, jobID uint, since time.Time, statuses []models.EntryStatus) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).
		Model(&models.BackupEntry{}).
		Where("expected_job_id = ? AND timestamp >= ?", jobID, since)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
