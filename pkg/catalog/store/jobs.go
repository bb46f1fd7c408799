package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/backmon-io/backmon/pkg/catalog/models"
	"github.com/backmon-io/backmon/pkg/layout"
)

// ============================================
// JOB OPERATIONS
// ============================================

func (s *GORMStore) GetJob(ctx context.Context, id uint) (*models.ExpectedJob, error) {
	return getByField[models.ExpectedJob](s.db, ctx, "id", id, models.ErrJobNotFound)
}

func (s *GORMStore) FindJobByAgentDB(ctx context.Context, agent layout.AgentID, database string) (*models.ExpectedJob, error) {
	var job models.ExpectedJob
	err := s.db.WithContext(ctx).
		Where("LOWER(company) = ? AND LOWER(city) = ? AND LOWER(neighborhood) = ? AND database_name = ? AND is_active = ?",
			agent.Company, agent.City, agent.Neighborhood, database, true).
		First(&job).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrJobNotFound)
	}
	return &job, nil
}

func (s *GORMStore) ListJobs(ctx context.Context) ([]*models.ExpectedJob, error) {
	var jobs []*models.ExpectedJob
	err := s.db.WithContext(ctx).
		Order("company, city, neighborhood, database_name").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *GORMStore) ListActiveJobs(ctx context.Context) ([]*models.ExpectedJob, error) {
	var jobs []*models.ExpectedJob
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("company, city, neighborhood, database_name").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (s *GORMStore) CreateJob(ctx context.Context, job *models.ExpectedJob) (uint, error) {
	// Normalize optional fields so the in-memory struct matches what
	// the column defaults would produce.
	if job.Frequency == "" {
		job.Frequency = models.FrequencyDaily
	}
	if job.DaysOfWeek == "" {
		job.DaysOfWeek = models.DefaultDaysOfWeek
	}
	if job.CurrentStatus == "" {
		job.CurrentStatus = models.JobStatusUnknown
	}

	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		if isUniqueConstraintError(err) {
			return 0, models.ErrDuplicateJob
		}
		return 0, err
	}
	return job.ID, nil
}

func (s *GORMStore) UpdateJob(ctx context.Context, job *models.ExpectedJob) error {
	// Check if job exists first
	var existing models.ExpectedJob
	if err := s.db.WithContext(ctx).Where("id = ?", job.ID).First(&existing).Error; err != nil {
		return convertNotFoundError(err, models.ErrJobNotFound)
	}

	// Scanner-owned fields are excluded: they only move through
	// AppendEntryAndUpdateJob.
	err := s.db.WithContext(ctx).
		Model(&existing).
		Select("Year", "Company", "City", "Neighborhood", "DatabaseName",
			"ExpectedHourUTC", "ExpectedMinuteUTC", "Frequency", "DaysOfWeek",
			"FinalStorageTemplate", "IsActive", "NotificationRecipients").
		Updates(job).Error
	if err != nil {
		if isUniqueConstraintError(err) {
			return models.ErrDuplicateJob
		}
		return err
	}
	return nil
}

func (s *GORMStore) DeleteJob(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job models.ExpectedJob
		if err := tx.Where("id = ?", id).First(&job).Error; err != nil {
			return convertNotFoundError(err, models.ErrJobNotFound)
		}

		// History goes with the job.
		if err := tx.Where("expected_job_id = ?", job.ID).Delete(&models.BackupEntry{}).Error; err != nil {
			return err
		}

		return tx.Delete(&job).Error
	})
}
