package scanner

import (
	"context"
	"path"

	"github.com/backmon-io/backmon/internal/logger"
)

// archive runs Phase 3: every report consumed during Collect is moved
// into its agent's _archive/ directory. Runs last so a crash mid-pass
// leaves unprocessed reports in place for the next pass. A file that
// cannot be moved stays where it is and is picked up again later;
// individual failures never abort the phase.
func (s *Scanner) archive(ctx context.Context, p *pass) error {
	for _, item := range p.toArchive {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.archiveOne(ctx, p, item)
	}
	return nil
}

func (s *Scanner) archiveOne(ctx context.Context, p *pass, item archiveItem) {
	// The source may be gone when two enqueued names collapsed onto the
	// same file. Nothing to do then.
	exists, err := s.staging.Exists(ctx, item.src)
	if err == nil && !exists {
		return
	}

	if err == nil {
		if err = s.staging.EnsureDir(ctx, path.Dir(item.dst)); err == nil {
			err = s.staging.Move(ctx, item.src, item.dst)
		}
	}

	if s.metrics != nil {
		s.metrics.RecordArchive(err)
	}
	if err != nil {
		logger.Warn("Failed to archive report",
			logger.OldPath(item.src),
			logger.NewPath(item.dst),
			logger.Err(err))
		p.stats.ArchiveFailures++
		return
	}

	p.stats.ReportsArchived++
	logger.Debug("Report archived",
		logger.OldPath(item.src),
		logger.NewPath(item.dst))
}
