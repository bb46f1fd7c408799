// Package scanner implements the reconciliation pass that turns agent
// deposits into catalogue history.
//
// A pass is a three-phase pipeline over the backup storage root:
//
//  1. Collect - walk agent directories, parse and validate deposited
//     reports, retain the best report per (agent, database), and queue
//     every consumed file for archival.
//  2. Evaluate - for each active job, either judge the relevant report
//     (integrity decision, entry persistence, promotion on success) or
//     run the deadline check and record MISSING cycles.
//  3. Archive - move consumed report files into their agents'
//     log/_archive/ directories.
//
// One pass runs at a time; RunPass returns ErrPassInProgress when a
// pass is already active. Within a pass, Collect may walk distinct
// agent directories in parallel, while Evaluate serializes store
// writes (one transaction per job).
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/backmon-io/backmon/internal/logger"
	"github.com/backmon-io/backmon/internal/telemetry"
	"github.com/backmon-io/backmon/pkg/backupfs"
	"github.com/backmon-io/backmon/pkg/catalog/store"
	"github.com/backmon-io/backmon/pkg/clock"
	"github.com/backmon-io/backmon/pkg/digest"
	"github.com/backmon-io/backmon/pkg/metrics"
	"github.com/backmon-io/backmon/pkg/notify"
	"github.com/backmon-io/backmon/pkg/promote"
	"github.com/backmon-io/backmon/pkg/report"
)

// Defaults applied by New when the corresponding Config field is zero.
const (
	// DefaultWindowMinutes is the half-width W of the relevance window
	// around a cycle anchor, and the grace period after it.
	DefaultWindowMinutes = 60

	// DefaultCollectWorkers bounds the concurrent agent directory walks
	// during Collect.
	DefaultCollectWorkers = 4
)

// ErrPassInProgress is returned by RunPass when a pass is already
// running. Overlapping passes would double-archive reports and race on
// job updates, so the caller is expected to skip and retry later.
var ErrPassInProgress = errors.New("scan pass already in progress")

// Config holds the tunables of a Scanner.
type Config struct {
	// WindowMinutes is W: a report is relevant to a job when its
	// operation end time falls within +-W minutes of the job's expected
	// instant on the report's date, and a cycle is overdue once
	// anchor+W has passed. Default: 60.
	WindowMinutes int

	// CollectWorkers is the number of agent directories walked in
	// parallel during Collect. Default: 4.
	CollectWorkers int
}

func (c *Config) applyDefaults() {
	if c.WindowMinutes <= 0 {
		c.WindowMinutes = DefaultWindowMinutes
	}
	if c.CollectWorkers <= 0 {
		c.CollectWorkers = DefaultCollectWorkers
	}
}

// Deps carries the collaborators a Scanner drives during a pass.
type Deps struct {
	// Store is the catalogue of expected jobs and their history.
	// Required.
	Store store.Store

	// Staging is the gateway rooted at the backup storage root, where
	// agents deposit artifacts and reports. Required.
	Staging *backupfs.Gateway

	// Validated is the gateway rooted at the validated backups root,
	// the promotion destination. Required.
	Validated *backupfs.Gateway

	// Parser validates deposited report documents. Required.
	Parser *report.Parser

	// Hasher computes artifact digests. Defaults to digest.Direct.
	Hasher digest.Hasher

	// Promoter copies verified artifacts into validated storage.
	// Defaults to a promoter over Staging and Validated.
	Promoter *promote.Promoter

	// Notifier receives every non-SUCCESS entry. Defaults to
	// notify.NopNotifier. Notifier errors are logged, never propagated.
	Notifier notify.Notifier

	// Clock anchors deadline and relevance arithmetic. Defaults to the
	// system clock.
	Clock clock.Clock

	// Metrics collects pass observability. Nil disables collection.
	Metrics metrics.ScannerMetrics
}

// Scanner reconciles filesystem deposits against the catalogue.
//
// A Scanner is safe for concurrent use: RunPass guards itself against
// overlap, and all other methods are read-only.
type Scanner struct {
	cfg       Config
	window    time.Duration
	store     store.Store
	staging   *backupfs.Gateway
	validated *backupfs.Gateway
	parser    *report.Parser
	hasher    digest.Hasher
	promoter  *promote.Promoter
	notifier  notify.Notifier
	clock     clock.Clock
	metrics   metrics.ScannerMetrics

	running atomic.Bool

	mu       sync.Mutex
	lastPass *Stats
}

// New creates a Scanner. Missing optional dependencies are filled with
// their defaults; missing required ones are an error.
func New(cfg Config, deps Deps) (*Scanner, error) {
	cfg.applyDefaults()

	if deps.Store == nil {
		return nil, errors.New("scanner requires a store")
	}
	if deps.Staging == nil {
		return nil, errors.New("scanner requires a staging gateway")
	}
	if deps.Validated == nil {
		return nil, errors.New("scanner requires a validated gateway")
	}
	if deps.Parser == nil {
		return nil, errors.New("scanner requires a report parser")
	}
	if deps.Hasher == nil {
		deps.Hasher = digest.Direct{}
	}
	if deps.Promoter == nil {
		deps.Promoter = promote.New(deps.Staging, deps.Validated)
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NopNotifier{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}

	return &Scanner{
		cfg:       cfg,
		window:    time.Duration(cfg.WindowMinutes) * time.Minute,
		store:     deps.Store,
		staging:   deps.Staging,
		validated: deps.Validated,
		parser:    deps.Parser,
		hasher:    deps.Hasher,
		promoter:  deps.Promoter,
		notifier:  deps.Notifier,
		clock:     deps.Clock,
		metrics:   deps.Metrics,
	}, nil
}

// IsRunning reports whether a pass is currently executing.
func (s *Scanner) IsRunning() bool {
	return s.running.Load()
}

// LastPass returns the stats of the most recently completed pass, or
// nil when no pass has run yet. The returned value must not be
// modified.
func (s *Scanner) LastPass() *Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPass
}

// RunPass executes one full reconciliation pass and returns its stats.
//
// Returns ErrPassInProgress when another pass is active. On a pass
// failure (storage root unreadable, store unavailable, cancellation)
// the stats accumulated so far are returned alongside the error;
// per-file and per-job failures are counted, logged and do not abort
// the pass.
func (s *Scanner) RunPass(ctx context.Context) (*Stats, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrPassInProgress
	}
	defer s.running.Store(false)

	ctx, span := telemetry.StartPassSpan(ctx, s.cfg.WindowMinutes)
	defer span.End()

	now := s.clock.Now()
	p := &pass{
		now:      now,
		relevant: make(map[reportKey]*candidate),
		stats: Stats{
			StartedAt:       now,
			EntriesByStatus: make(map[string]int),
		},
	}

	logger.Info("Scan pass started",
		logger.Root(s.staging.Root()),
		logger.Window(s.cfg.WindowMinutes))

	start := time.Now()
	err := s.runPhases(ctx, p)
	p.stats.Duration = time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordPass(p.stats.Duration, err)
	}

	s.mu.Lock()
	s.lastPass = &p.stats
	s.mu.Unlock()

	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.Error("Scan pass aborted",
			logger.Err(err),
			logger.DurationMs(logger.Duration(start)))
		return &p.stats, err
	}

	span.SetAttributes(
		telemetry.ScanReports(p.stats.ReportsParsed),
		telemetry.ScanEvaluated(p.stats.JobsEvaluated),
		telemetry.ScanArchived(p.stats.ReportsArchived),
	)

	logger.Info("Scan pass completed",
		"jobs_evaluated", p.stats.JobsEvaluated,
		"entries", p.stats.EntriesAppended,
		logger.DurationMs(logger.Duration(start)))
	logger.Debug("Scan pass detail",
		"agent_dirs", p.stats.AgentDirs,
		"reports_parsed", p.stats.ReportsParsed,
		"reports_rejected", p.stats.ReportsRejected,
		"entries", p.stats.EntriesAppended,
		"promotions", p.stats.Promotions,
		"archived", p.stats.ReportsArchived,
		"failures", p.stats.Failures)

	return &p.stats, nil
}

// runPhases runs Collect, Evaluate and Archive in order. A phase error
// is fatal to the pass; work already committed stays committed.
func (s *Scanner) runPhases(ctx context.Context, p *pass) error {
	if err := s.runPhase(ctx, p, "collect", s.collect); err != nil {
		return fmt.Errorf("collect: %w", err)
	}
	if err := s.runPhase(ctx, p, "evaluate", s.evaluate); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if err := s.runPhase(ctx, p, "archive", s.archive); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	return nil
}

func (s *Scanner) runPhase(ctx context.Context, p *pass, name string, fn func(context.Context, *pass) error) error {
	ctx, span := telemetry.StartPhaseSpan(ctx, name)
	defer span.End()

	if err := fn(ctx, p); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	return nil
}
