package scanner

import (
	"context"
	"fmt"
	"time"

	"github.com/backmon-io/backmon/internal/logger"
	"github.com/backmon-io/backmon/pkg/catalog/models"
)

// terminalStatuses are the entry statuses that count as "this cycle was
// already recorded" when suppressing duplicate MISSING decisions.
var terminalStatuses = []models.EntryStatus{
	models.EntryStatusSuccess,
	models.EntryStatusFailed,
	models.EntryStatusHashMismatch,
	models.EntryStatusTransferIntegrityFailed,
	models.EntryStatusMissing,
}

// evaluate runs Phase 2: every active job is judged against the
// collected reports, sequentially, one store transaction per decision.
func (s *Scanner) evaluate(ctx context.Context, p *pass) error {
	jobs, err := s.store.ListActiveJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active jobs: %w", err)
	}

	p.stats.JobsEvaluated = len(jobs)
	if s.metrics != nil {
		s.metrics.SetJobsTracked(len(jobs))
	}

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.evaluateJob(ctx, p, job)
	}

	return nil
}

// evaluateJob routes one job: a relevant report goes through the
// integrity decision, anything else through the deadline check. A
// report outside the job's cycle window is treated as absent so a
// 20:05 deposit cannot satisfy a 13:00 cycle.
func (s *Scanner) evaluateJob(ctx context.Context, p *pass, job *models.ExpectedJob) {
	key := reportKey{agent: job.AgentID().String(), database: job.DatabaseName}

	cand, ok := p.relevant[key]
	if ok && s.isRelevant(job, cand.rep.OperationEndTime) {
		logger.Info("Processing report for job",
			logger.JobID(job.ID),
			logger.Agent(key.agent),
			logger.Database(job.DatabaseName),
			logger.Report(cand.rep.FileName))
		s.evaluateReport(ctx, p, job, cand)
		return
	}

	if ok {
		logger.Debug("Report found but not relevant to job cycle",
			logger.JobID(job.ID),
			logger.Database(job.DatabaseName),
			"operation_end_time", cand.rep.OperationEndTime)
	} else {
		logger.Debug("No report found for job",
			logger.JobID(job.ID),
			logger.Database(job.DatabaseName))
	}

	s.evaluateAbsence(ctx, p, job)
}

// isRelevant reports whether end falls within +-W of the job's
// expected instant on end's own date. Both boundaries are inclusive.
func (s *Scanner) isRelevant(job *models.ExpectedJob, end time.Time) bool {
	end = end.UTC()
	expected := time.Date(end.Year(), end.Month(), end.Day(),
		job.ExpectedHourUTC, job.ExpectedMinuteUTC, 0, 0, time.UTC)

	diff := end.Sub(expected)
	if diff < 0 {
		diff = -diff
	}
	return diff <= s.window
}

// cycleAnchor returns the most recent cycle anchor at or before now:
// today's expected instant if now has reached it, otherwise
// yesterday's.
func cycleAnchor(now time.Time, job *models.ExpectedJob) time.Time {
	anchor := time.Date(now.Year(), now.Month(), now.Day(),
		job.ExpectedHourUTC, job.ExpectedMinuteUTC, 0, 0, time.UTC)
	if now.Before(anchor) {
		anchor = anchor.AddDate(0, 0, -1)
	}
	return anchor
}

// evaluateAbsence runs the deadline check for a job with no usable
// report this pass. A MISSING entry is appended only when the cycle
// runs on the anchor's weekday, the cycle deadline has passed, and
// history holds no entry covering the cycle.
func (s *Scanner) evaluateAbsence(ctx context.Context, p *pass, job *models.ExpectedJob) {
	anchor := cycleAnchor(p.now, job)
	deadline := anchor.Add(s.window)

	// Jobs without a days list are expected every day.
	if job.DaysOfWeek != "" && !job.ExpectedOn(anchor) {
		logger.Debug("No cycle expected on this weekday",
			logger.JobID(job.ID),
			logger.Database(job.DatabaseName),
			logger.Anchor(anchor))
		return
	}

	if !p.now.After(deadline) {
		logger.Debug("Job still in flight",
			logger.JobID(job.ID),
			logger.Database(job.DatabaseName),
			logger.Anchor(anchor),
			logger.Deadline(deadline))
		return
	}

	// Duplicate suppression: an entry at or after anchor-W in any
	// terminal status means this cycle is already recorded.
	since := anchor.Add(-s.window)
	handled, err := s.store.HasEntrySince(ctx, job.ID, since, terminalStatuses)
	if err != nil {
		logger.Error("Failed to query job history",
			logger.JobID(job.ID),
			logger.Err(err))
		p.stats.Failures++
		return
	}
	if handled {
		logger.Debug("Cycle already recorded",
			logger.JobID(job.ID),
			logger.Database(job.DatabaseName),
			logger.Anchor(anchor))
		return
	}

	entry := &models.BackupEntry{
		ExpectedJobID: job.ID,
		Timestamp:     p.now,
		Status:        models.EntryStatusMissing,
		Message: fmt.Sprintf("Backup missing for the cycle of %s at %s UTC",
			anchor.Format("2006-01-02"), job.AnchorClock()),
	}

	if s.persist(ctx, p, job, entry) {
		logger.Info("Job marked MISSING",
			logger.JobID(job.ID),
			logger.Database(job.DatabaseName),
			logger.Anchor(anchor),
			logger.Deadline(deadline))
	}
}

// persist commits one decision through the store and hands
// non-SUCCESS entries to the notifier. Store failures are absorbed
// into the pass stats; the job will be re-judged on a later pass.
func (s *Scanner) persist(ctx context.Context, p *pass, job *models.ExpectedJob, entry *models.BackupEntry) bool {
	if err := s.store.AppendEntryAndUpdateJob(ctx, job, entry); err != nil {
		logger.Error("Failed to persist entry",
			logger.JobID(job.ID),
			logger.Status(string(entry.Status)),
			logger.Err(err))
		p.stats.Failures++
		return false
	}

	p.stats.EntriesAppended++
	p.stats.EntriesByStatus[string(entry.Status)]++
	if s.metrics != nil {
		s.metrics.RecordEntry(string(entry.Status))
	}

	logger.Info("Job updated",
		logger.JobID(job.ID),
		logger.Database(job.DatabaseName),
		logger.Status(string(job.CurrentStatus)))

	if entry.Status != models.EntryStatusSuccess {
		if err := s.notifier.Notify(ctx, job, entry); err != nil {
			logger.Warn("Notification failed",
				logger.JobID(job.ID),
				logger.Status(string(entry.Status)),
				logger.Err(err))
		}
	}

	return true
}
