package scanner

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/backmon-io/backmon/internal/logger"
	"github.com/backmon-io/backmon/pkg/backupfs"
	"github.com/backmon-io/backmon/pkg/layout"
	"github.com/backmon-io/backmon/pkg/report"
)

// collect walks every immediate child directory of the storage root
// and folds deposited reports into the pass state. Distinct agent
// directories are walked by a bounded worker pool; all pass mutations
// go through the mutex-guarded helpers on pass.
func (s *Scanner) collect(ctx context.Context, p *pass) error {
	entries, err := s.staging.ListDir(ctx, ".")
	if err != nil {
		return fmt.Errorf("failed to list storage root: %w", err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) == 0 {
		logger.Debug("Storage root has no agent directories", logger.Root(s.staging.Root()))
		return nil
	}

	workers := s.cfg.CollectWorkers
	if workers > len(dirs) {
		workers = len(dirs)
	}

	names := make(chan string)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range names {
				s.collectDir(ctx, p, name)
			}
		}()
	}

feed:
	for _, name := range dirs {
		select {
		case <-ctx.Done():
			break feed
		case names <- name:
		}
	}
	close(names)
	wg.Wait()

	return ctx.Err()
}

// collectDir processes one child of the storage root. Directories that
// do not canonicalize to an agent identity never have their reports
// parsed, but any JSON deposits in their log/ are still swept to the
// archive so they do not accumulate.
func (s *Scanner) collectDir(ctx context.Context, p *pass, dirName string) {
	agent, err := layout.ParseAgentID(dirName)
	if err != nil {
		logger.Warn("Unrecognized directory in storage root",
			logger.Filename(dirName),
			logger.Err(err))
		p.count(func(st *Stats) { st.UnrecognizedDirs++ })
		s.sweepUnrecognized(ctx, p, dirName)
		return
	}

	p.count(func(st *Stats) { st.AgentDirs++ })
	s.collectAgent(ctx, p, agent)
}

// sweepUnrecognized queues every JSON file in dirName/log for
// archival, pattern-matched or not.
func (s *Scanner) sweepUnrecognized(ctx context.Context, p *pass, dirName string) {
	logDir := path.Join(dirName, layout.LogDir)

	entries, err := s.staging.ListDir(ctx, logDir)
	if err != nil {
		if !backupfs.IsNotFound(err) {
			logger.Warn("Failed to list log directory",
				logger.Path(logDir),
				logger.Err(err))
			p.count(func(st *Stats) { st.Failures++ })
		}
		return
	}

	for _, e := range entries {
		if e.IsDir() || !layout.IsJSONFile(e.Name()) {
			continue
		}
		p.enqueueArchive(
			path.Join(logDir, e.Name()),
			path.Join(logDir, layout.ArchiveDir, e.Name()),
		)
	}
}

// collectAgent enumerates the recognized reports in one agent's log
// directory. Every recognized file is queued for archival before
// parsing: processed files never persist in log/, valid or not.
func (s *Scanner) collectAgent(ctx context.Context, p *pass, agent layout.AgentID) {
	entries, err := s.staging.ListDir(ctx, layout.LogPath(agent))
	if err != nil {
		if backupfs.IsNotFound(err) {
			logger.Debug("Agent has no log directory", logger.Agent(agent.String()))
			return
		}
		logger.Warn("Failed to list log directory",
			logger.Agent(agent.String()),
			logger.Err(err))
		p.count(func(st *Stats) { st.Failures++ })
		return
	}

	matcher := layout.NewReportMatcher(agent)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return
		}
		if e.IsDir() || !matcher.Match(e.Name()) {
			continue
		}

		p.enqueueArchive(
			layout.ReportPath(agent, e.Name()),
			layout.ArchivedReportPath(agent, e.Name()),
		)
		p.count(func(st *Stats) { st.ReportsDiscovered++ })

		s.collectReport(ctx, p, agent, e.Name())
	}
}

// collectReport parses one deposited report and folds its database
// sections into the per-key tie-break. Validation failures are logged
// and skipped; the file is already queued for archival.
func (s *Scanner) collectReport(ctx context.Context, p *pass, agent layout.AgentID, filename string) {
	abs, err := s.staging.Abs(layout.ReportPath(agent, filename))
	if err != nil {
		logger.Warn("Rejecting report with unresolvable path",
			logger.Agent(agent.String()),
			logger.Report(filename),
			logger.Err(err))
		p.count(func(st *Stats) { st.ReportsRejected++ })
		s.recordReport("invalid")
		return
	}

	rep, err := s.parser.ParseFile(abs, agent, p.now)
	if err != nil {
		result := "invalid"
		var stale *report.StaleError
		if errors.As(err, &stale) {
			result = "stale"
		}
		logger.Warn("Rejecting report",
			logger.Agent(agent.String()),
			logger.Report(filename),
			logger.Err(err))
		p.count(func(st *Stats) { st.ReportsRejected++ })
		s.recordReport(result)
		return
	}

	for dbName, db := range rep.Databases {
		p.fold(&candidate{rep: rep, agent: agent, dbName: dbName, db: db})
	}

	p.count(func(st *Stats) { st.ReportsParsed++ })
	s.recordReport("accepted")

	logger.Debug("Report collected",
		logger.Agent(agent.String()),
		logger.Report(filename),
		logger.OverallStatus(rep.OverallStatus),
		logger.Count(len(rep.Databases)))
}

func (s *Scanner) recordReport(result string) {
	if s.metrics != nil {
		s.metrics.RecordReport(result)
	}
}
