package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/backmon-io/backmon/internal/logger"
	"github.com/backmon-io/backmon/pkg/catalog/models"
	"github.com/backmon-io/backmon/pkg/digest"
	"github.com/backmon-io/backmon/pkg/layout"
)

// decision is the outcome of the integrity check for one job, before
// promotion is attempted. ServerHash, ServerSize and Comparison are
// only set on the branches that reached the staged artifact.
type decision struct {
	Status     models.EntryStatus
	Message    string
	ServerHash string
	ServerSize *int64
	Comparison *bool
}

// evaluateReport judges a job against its relevant report section:
// integrity decision, promotion on success, then one transactional
// catalogue update. A promotion failure demotes the decision to FAILED
// so the catalogue never claims an artifact that validated storage
// does not hold.
func (s *Scanner) evaluateReport(ctx context.Context, p *pass, job *models.ExpectedJob, cand *candidate) {
	dec := s.decide(ctx, job, cand)
	entry := buildEntry(p.now, job, cand, dec)

	if dec.Status == models.EntryStatusSuccess {
		start := time.Now()
		finalPath, err := s.promoter.Promote(ctx, job, cand.db.StagedFileName)
		if s.metrics != nil {
			s.metrics.RecordPromotion(time.Since(start), err)
		}
		if err != nil {
			logger.Error("Promotion failed",
				logger.JobID(job.ID),
				logger.Database(job.DatabaseName),
				logger.StagedFile(cand.db.StagedFileName),
				logger.Err(err))
			entry.Status = models.EntryStatusFailed
			entry.Message = fmt.Sprintf("Promotion failed: %v", err)
			p.stats.PromotionsFailed++
		} else {
			logger.Debug("Promotion recorded",
				logger.JobID(job.ID),
				logger.NewPath(finalPath))
			p.stats.Promotions++
		}
	}

	s.persist(ctx, p, job, entry)
}

// decide applies the integrity rules in their fixed order. Agent-declared
// failures win over anything the server could measure; the artifact is
// only touched once the report itself is clean.
func (s *Scanner) decide(ctx context.Context, job *models.ExpectedJob, cand *candidate) decision {
	db := cand.db
	name := job.DatabaseName

	if !db.StagesOK() {
		failed := strings.Join(db.FailedStages(), ", ")
		logger.Warn("Agent reported stage failure",
			logger.JobID(job.ID),
			logger.Database(name),
			"failed_stages", failed)
		msg := fmt.Sprintf("Agent reported failure for %s: %s", name, failed)
		if db.LogsSummary != "" {
			msg += fmt.Sprintf(". Details: %s", db.LogsSummary)
		}
		return decision{Status: models.EntryStatusFailed, Message: msg}
	}

	if db.StagedFileName == "" {
		logger.Warn("Report carries no staged file name",
			logger.JobID(job.ID),
			logger.Database(name),
			logger.Report(cand.rep.FileName))
		return decision{
			Status:  models.EntryStatusFailed,
			Message: fmt.Sprintf("Staged file name missing for %s", name),
		}
	}

	rel, err := layout.StagedPath(cand.agent, db.StagedFileName)
	if err != nil {
		logger.Warn("Staged file name rejected",
			logger.JobID(job.ID),
			logger.Database(name),
			logger.StagedFile(db.StagedFileName),
			logger.Err(err))
		return decision{
			Status:  models.EntryStatusFailed,
			Message: fmt.Sprintf("Staged file name rejected for %s: %v", name, err),
		}
	}

	abs, err := s.staging.Abs(rel)
	if err != nil {
		logger.Warn("Staged path escapes storage root",
			logger.JobID(job.ID),
			logger.Database(name),
			logger.StagedFile(db.StagedFileName),
			logger.Err(err))
		return decision{
			Status:  models.EntryStatusFailed,
			Message: fmt.Sprintf("Staged file name rejected for %s: %v", name, err),
		}
	}

	serverHash, serverSize, err := s.hasher.Sum(ctx, abs)
	if err != nil {
		if errors.Is(err, digest.ErrNotFound) {
			logger.Warn("Staged artifact not found",
				logger.JobID(job.ID),
				logger.Database(name),
				logger.Path(rel))
			return decision{
				Status:  models.EntryStatusTransferIntegrityFailed,
				Message: fmt.Sprintf("Staged file not found for %s: %s", name, rel),
			}
		}
		logger.Error("Failed to verify staged artifact",
			logger.JobID(job.ID),
			logger.Database(name),
			logger.Path(rel),
			logger.Err(err))
		return decision{
			Status:  models.EntryStatusTransferIntegrityFailed,
			Message: fmt.Sprintf("File verification error for %s: %v", name, err),
		}
	}

	// The post-compression values are what the agent promised to have
	// shipped. A -1 size means the report carried none, which can never
	// match a real file.
	agentHash := strings.ToLower(strings.TrimSpace(db.Compress.SHA256))
	if serverHash != agentHash || serverSize != db.Compress.Size {
		logger.Warn("Transfer integrity failure",
			logger.JobID(job.ID),
			logger.Database(name),
			logger.AgentHash(agentHash),
			logger.AgentSize(db.Compress.Size),
			logger.ServerHash(serverHash),
			logger.ServerSize(serverSize))
		return decision{
			Status: models.EntryStatusTransferIntegrityFailed,
			Message: fmt.Sprintf(
				"Transfer integrity failure for %s. Agent (hash/size): %s/%d, Server (hash/size): %s/%d",
				name, agentHash, db.Compress.Size, serverHash, serverSize),
			ServerHash: serverHash,
			ServerSize: &serverSize,
		}
	}

	if job.PreviousSuccessfulHash != "" && strings.EqualFold(job.PreviousSuccessfulHash, serverHash) {
		logger.Warn("Artifact identical to previous success",
			logger.JobID(job.ID),
			logger.Database(name),
			logger.ServerHash(serverHash))
		return decision{
			Status: models.EntryStatusHashMismatch,
			Message: fmt.Sprintf(
				"Hash identical to previous success for %s - content potentially unchanged", name),
			ServerHash: serverHash,
			ServerSize: &serverSize,
			Comparison: boolPtr(false),
		}
	}

	logger.Debug("Artifact verified",
		logger.JobID(job.ID),
		logger.Database(name),
		logger.ServerHash(serverHash),
		logger.ServerSize(serverSize))
	return decision{
		Status:     models.EntryStatusSuccess,
		Message:    "Backup transferred with integrity verified",
		ServerHash: serverHash,
		ServerSize: &serverSize,
		Comparison: boolPtr(true),
	}
}

// buildEntry copies the report section into a catalogue entry. Agent
// fields are recorded verbatim whatever the decision was, so a FAILED
// entry still shows what the agent claimed.
func buildEntry(now time.Time, job *models.ExpectedJob, cand *candidate, dec decision) *models.BackupEntry {
	db := cand.db

	return &models.BackupEntry{
		ExpectedJobID: job.ID,
		Timestamp:     now,
		Status:        dec.Status,
		Message:       dec.Message,

		OperationLogFileName: cand.rep.FileName,
		AgentID:              cand.rep.AgentID,
		AgentOverallStatus:   cand.rep.OverallStatus,

		AgentBackupStatus:          boolPtr(db.Backup.Status),
		AgentBackupStartTime:       db.Backup.StartTime,
		AgentBackupEndTime:         db.Backup.EndTime,
		AgentBackupHashPreCompress: db.Backup.SHA256,
		AgentBackupSizePreCompress: sizePtr(db.Backup.Size),

		AgentCompressStatus:           boolPtr(db.Compress.Status),
		AgentCompressStartTime:        db.Compress.StartTime,
		AgentCompressEndTime:          db.Compress.EndTime,
		AgentCompressHashPostCompress: db.Compress.SHA256,
		AgentCompressSizePostCompress: sizePtr(db.Compress.Size),

		AgentTransferStatus:       boolPtr(db.Transfer.Status),
		AgentTransferStartTime:    db.Transfer.StartTime,
		AgentTransferEndTime:      db.Transfer.EndTime,
		AgentTransferErrorMessage: db.Transfer.ErrorMessage,

		AgentStagedFileName: db.StagedFileName,
		AgentLogsSummary:    db.LogsSummary,

		ServerCalculatedHash: dec.ServerHash,
		ServerCalculatedSize: dec.ServerSize,

		// Snapshot of what the job believed before the store applies
		// this entry.
		PreviousSuccessfulHash: job.PreviousSuccessfulHash,
		HashComparisonResult:   dec.Comparison,
	}
}

func boolPtr(b bool) *bool { return &b }

// sizePtr maps the report's -1 "absent" sentinel to nil.
func sizePtr(n int64) *int64 {
	if n < 0 {
		return nil
	}
	return &n
}
