package scanner

import (
	"sync"
	"time"

	"github.com/backmon-io/backmon/pkg/layout"
	"github.com/backmon-io/backmon/pkg/report"
)

// Stats summarizes one reconciliation pass.
type Stats struct {
	// StartedAt is the pass's "now": the clock instant every deadline
	// and relevance decision in the pass was anchored to.
	StartedAt time.Time `json:"started_at"`

	// Duration is the wall-clock time of the full pass.
	Duration time.Duration `json:"duration"`

	// AgentDirs counts recognized agent directories walked.
	AgentDirs int `json:"agent_dirs"`

	// UnrecognizedDirs counts root children whose name did not
	// canonicalize to an agent identity.
	UnrecognizedDirs int `json:"unrecognized_dirs"`

	// ReportsDiscovered counts recognized report files found in log/
	// directories. Each is queued for archival whether it parses or not.
	ReportsDiscovered int `json:"reports_discovered"`

	// ReportsParsed counts reports that passed validation.
	ReportsParsed int `json:"reports_parsed"`

	// ReportsRejected counts reports that failed validation. Rejected
	// reports are still archived.
	ReportsRejected int `json:"reports_rejected"`

	// JobsEvaluated is the number of active jobs examined.
	JobsEvaluated int `json:"jobs_evaluated"`

	// EntriesAppended is the number of catalogue entries persisted.
	EntriesAppended int `json:"entries_appended"`

	// EntriesByStatus breaks EntriesAppended down by entry status.
	EntriesByStatus map[string]int `json:"entries_by_status"`

	// Promotions counts artifacts copied into validated storage.
	Promotions int `json:"promotions"`

	// PromotionsFailed counts promotions that failed; each demoted the
	// pass decision for its job to FAILED.
	PromotionsFailed int `json:"promotions_failed"`

	// ReportsArchived counts consumed reports moved to _archive/.
	ReportsArchived int `json:"reports_archived"`

	// ArchiveFailures counts reports that could not be moved; they stay
	// in log/ and are retried next pass.
	ArchiveFailures int `json:"archive_failures"`

	// Failures counts non-fatal store and filesystem errors absorbed
	// during the pass.
	Failures int `json:"failures"`
}

// reportKey identifies the cycle stream a report section belongs to.
type reportKey struct {
	agent    string
	database string
}

// candidate is the best report section seen so far for one key.
type candidate struct {
	rep    *report.Report
	agent  layout.AgentID
	dbName string
	db     report.Database
}

// archiveItem is one consumed file queued for Phase 3.
type archiveItem struct {
	src string
	dst string
}

// pass is the private state of one reconciliation pass. Collect
// workers mutate it under mu; Evaluate and Archive run after Collect
// has fully completed and access it without locking.
type pass struct {
	now time.Time

	mu        sync.Mutex
	relevant  map[reportKey]*candidate
	toArchive []archiveItem
	stats     Stats
}

// enqueueArchive queues a consumed file for Phase 3.
func (p *pass) enqueueArchive(src, dst string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.toArchive = append(p.toArchive, archiveItem{src: src, dst: dst})
}

// fold retains the candidate with the latest operation end time per
// (agent, database). Ties keep the earlier arrival.
func (p *pass) fold(c *candidate) {
	key := reportKey{agent: c.rep.AgentID, database: c.dbName}

	p.mu.Lock()
	defer p.mu.Unlock()

	existing, ok := p.relevant[key]
	if !ok || c.rep.OperationEndTime.After(existing.rep.OperationEndTime) {
		p.relevant[key] = c
	}
}

// count mutates pass counters under the collect-phase lock.
func (p *pass) count(fn func(st *Stats)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(&p.stats)
}
