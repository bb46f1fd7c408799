//go:build integration

package scanner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/backmon-io/backmon/pkg/backupfs"
	"github.com/backmon-io/backmon/pkg/catalog/models"
	"github.com/backmon-io/backmon/pkg/catalog/store"
	"github.com/backmon-io/backmon/pkg/clock"
	"github.com/backmon-io/backmon/pkg/layout"
	"github.com/backmon-io/backmon/pkg/report"
)

// captureNotifier records every entry handed to it.
type captureNotifier struct {
	mu      sync.Mutex
	entries []*models.BackupEntry
}

func (n *captureNotifier) Notify(_ context.Context, _ *models.ExpectedJob, entry *models.BackupEntry) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries = append(n.entries, entry)
	return nil
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.entries)
}

// harness wires a scanner against an in-memory store, throwaway
// staging and validated roots, and a pinned clock.
type harness struct {
	t         *testing.T
	ctx       context.Context
	store     *store.GORMStore
	staging   *backupfs.Gateway
	validated *backupfs.Gateway
	clk       *clock.Fixed
	notified  *captureNotifier
	scanner   *Scanner
}

func newHarness(t *testing.T, now time.Time) *harness {
	t.Helper()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	h := &harness{
		t:         t,
		ctx:       context.Background(),
		store:     st,
		staging:   newGateway(t),
		validated: newGateway(t),
		clk:       clock.NewFixed(now),
		notified:  &captureNotifier{},
	}

	h.scanner, err = New(Config{}, Deps{
		Store:     st,
		Staging:   h.staging,
		Validated: h.validated,
		Parser:    report.NewParser(report.DefaultMaxReportAgeDays),
		Notifier:  h.notified,
		Clock:     h.clk,
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	return h
}

// createJob inserts the canonical acme_paris_nord/sales job anchored
// at 13:00 UTC, optionally mutated first.
func (h *harness) createJob(mutate func(*models.ExpectedJob)) *models.ExpectedJob {
	h.t.Helper()

	job := &models.ExpectedJob{
		Year:              2025,
		Company:           "acme",
		City:              "paris",
		Neighborhood:      "nord",
		DatabaseName:      "sales",
		ExpectedHourUTC:   13,
		ExpectedMinuteUTC: 0,
	}
	if mutate != nil {
		mutate(job)
	}

	id, err := h.store.CreateJob(h.ctx, job)
	if err != nil {
		h.t.Fatalf("CreateJob() failed: %v", err)
	}
	job.ID = id
	return job
}

func (h *harness) depositReport(filename string, doc map[string]any) {
	h.t.Helper()

	data, err := json.Marshal(doc)
	if err != nil {
		h.t.Fatalf("Marshal() failed: %v", err)
	}
	dir := filepath.Join(h.staging.Root(), "acme_paris_nord", layout.LogDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		h.t.Fatalf("MkdirAll() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, filename), data, 0o644); err != nil {
		h.t.Fatalf("WriteFile() failed: %v", err)
	}
}

func (h *harness) runPass() *Stats {
	h.t.Helper()
	stats, err := h.scanner.RunPass(h.ctx)
	if err != nil {
		h.t.Fatalf("RunPass() failed: %v", err)
	}
	return stats
}

func (h *harness) reloadJob(id uint) *models.ExpectedJob {
	h.t.Helper()
	job, err := h.store.GetJob(h.ctx, id)
	if err != nil {
		h.t.Fatalf("GetJob() failed: %v", err)
	}
	return job
}

func (h *harness) jobEntries(id uint) []*models.BackupEntry {
	h.t.Helper()
	entries, err := h.store.ListEntries(h.ctx, id, 0)
	if err != nil {
		h.t.Fatalf("ListEntries() failed: %v", err)
	}
	return entries
}

func (h *harness) mustExist(gw *backupfs.Gateway, rel string) {
	h.t.Helper()
	ok, err := gw.Exists(h.ctx, rel)
	if err != nil {
		h.t.Fatalf("Exists(%s) failed: %v", rel, err)
	}
	if !ok {
		h.t.Errorf("expected %s to exist under %s", rel, gw.Root())
	}
}

func (h *harness) mustNotExist(gw *backupfs.Gateway, rel string) {
	h.t.Helper()
	ok, err := gw.Exists(h.ctx, rel)
	if err != nil {
		h.t.Fatalf("Exists(%s) failed: %v", rel, err)
	}
	if ok {
		h.t.Errorf("expected %s to be absent under %s", rel, gw.Root())
	}
}

// reportDoc builds an agent report whose three stages succeeded and
// whose COMPRESS section promises hash and size for database db.
func reportDoc(end time.Time, db, staged, hash string, size int64) map[string]any {
	stamp := func(t time.Time) string { return t.UTC().Format(time.RFC3339) }

	stage := func() map[string]any {
		return map[string]any{
			"status":     true,
			"start_time": stamp(end.Add(-10 * time.Minute)),
			"end_time":   stamp(end),
		}
	}
	compress := stage()
	compress["sha256_checksum"] = hash
	compress["size"] = size

	return map[string]any{
		"operation_start_time": stamp(end.Add(-10 * time.Minute)),
		"operation_end_time":   stamp(end),
		"agent_id":             "acme_paris_nord",
		"overall_status":       "completed",
		"databases": map[string]any{
			db: map[string]any{
				"BACKUP":           stage(),
				"COMPRESS":         compress,
				"TRANSFER":         stage(),
				"staged_file_name": staged,
			},
		},
	}
}

func TestScanSuccess(t *testing.T) {
	now := time.Date(2025, 1, 15, 13, 30, 0, 0, time.UTC)
	h := newHarness(t, now)
	job := h.createJob(nil)

	hash := stageArtifact(t, h.staging, "sales.sql.gz", []byte("dump content"))
	end := time.Date(2025, 1, 15, 13, 10, 0, 0, time.UTC)
	h.depositReport("20250115_131000_acme_paris_nord.json",
		reportDoc(end, "sales", "sales.sql.gz", hash, 12))

	stats := h.runPass()

	if stats.AgentDirs != 1 || stats.ReportsDiscovered != 1 || stats.ReportsParsed != 1 {
		t.Errorf("collect stats = %+v", stats)
	}
	if stats.EntriesAppended != 1 || stats.Promotions != 1 || stats.ReportsArchived != 1 {
		t.Errorf("pass stats = %+v", stats)
	}

	entries := h.jobEntries(job.ID)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Status != models.EntryStatusSuccess {
		t.Fatalf("entry status = %s, want SUCCESS", e.Status)
	}
	if e.ServerCalculatedHash != hash {
		t.Errorf("ServerCalculatedHash = %q, want %q", e.ServerCalculatedHash, hash)
	}
	if e.HashComparisonResult == nil || !*e.HashComparisonResult {
		t.Error("HashComparisonResult should be true")
	}
	if !e.Timestamp.Equal(now) {
		t.Errorf("entry timestamp = %s, want scan time %s", e.Timestamp, now)
	}

	got := h.reloadJob(job.ID)
	if got.CurrentStatus != models.JobStatusOK {
		t.Errorf("job status = %s, want OK", got.CurrentStatus)
	}
	if got.PreviousSuccessfulHash != hash {
		t.Errorf("PreviousSuccessfulHash = %q, want %q", got.PreviousSuccessfulHash, hash)
	}
	if got.LastSuccessfulAt == nil || !got.LastSuccessfulAt.Equal(now) {
		t.Error("LastSuccessfulAt not advanced to scan time")
	}

	h.mustExist(h.validated, "2025/acme/paris/nord/sales/sales.sql.gz")
	h.mustExist(h.staging, "acme_paris_nord/log/_archive/20250115_131000_acme_paris_nord.json")
	h.mustNotExist(h.staging, "acme_paris_nord/log/20250115_131000_acme_paris_nord.json")

	if h.notified.count() != 0 {
		t.Errorf("SUCCESS must not notify, got %d notifications", h.notified.count())
	}
}

func TestScanUnchangedContent(t *testing.T) {
	now := time.Date(2025, 1, 15, 13, 30, 0, 0, time.UTC)
	h := newHarness(t, now)
	job := h.createJob(nil)

	hash := stageArtifact(t, h.staging, "sales.sql.gz", []byte("dump content"))
	h.depositReport("20250115_131000_acme_paris_nord.json",
		reportDoc(time.Date(2025, 1, 15, 13, 10, 0, 0, time.UTC), "sales", "sales.sql.gz", hash, 12))
	h.runPass()

	// Next day the agent deposits a fresh report for byte-identical
	// content.
	h.clk.Advance(24 * time.Hour)
	h.depositReport("20250116_131000_acme_paris_nord.json",
		reportDoc(time.Date(2025, 1, 16, 13, 10, 0, 0, time.UTC), "sales", "sales.sql.gz", hash, 12))

	stats := h.runPass()
	if stats.Promotions != 0 {
		t.Errorf("unchanged content must not promote, got %d promotions", stats.Promotions)
	}

	entries := h.jobEntries(job.ID)
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	e := entries[0] // newest first
	if e.Status != models.EntryStatusHashMismatch {
		t.Fatalf("entry status = %s, want HASH_MISMATCH", e.Status)
	}
	if e.HashComparisonResult == nil || *e.HashComparisonResult {
		t.Error("HashComparisonResult should be false")
	}

	got := h.reloadJob(job.ID)
	if got.CurrentStatus != models.JobStatusHashMismatch {
		t.Errorf("job status = %s, want HASH_MISMATCH", got.CurrentStatus)
	}
	if got.PreviousSuccessfulHash != hash {
		t.Error("PreviousSuccessfulHash must not change on HASH_MISMATCH")
	}
	if h.notified.count() != 1 {
		t.Errorf("got %d notifications, want 1", h.notified.count())
	}
}

func TestScanCorruptedArtifact(t *testing.T) {
	now := time.Date(2025, 1, 15, 13, 30, 0, 0, time.UTC)
	h := newHarness(t, now)
	job := h.createJob(nil)

	// The report promises a digest the staged bytes do not have.
	stageArtifact(t, h.staging, "sales.sql.gz", []byte("truncated dum"))
	promised := stageArtifact(t, h.staging, "sales-intact.sql.gz", []byte("dump content"))
	h.depositReport("20250115_131000_acme_paris_nord.json",
		reportDoc(time.Date(2025, 1, 15, 13, 10, 0, 0, time.UTC), "sales", "sales.sql.gz", promised, 12))

	h.runPass()

	entries := h.jobEntries(job.ID)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Status != models.EntryStatusTransferIntegrityFailed {
		t.Fatalf("entry status = %s, want TRANSFER_INTEGRITY_FAILED", e.Status)
	}
	if !strings.Contains(e.Message, "Transfer integrity failure for sales") {
		t.Errorf("Message = %q", e.Message)
	}

	got := h.reloadJob(job.ID)
	if got.CurrentStatus != models.JobStatusTransferIntegrityFailed {
		t.Errorf("job status = %s, want TRANSFER_INTEGRITY_FAILED", got.CurrentStatus)
	}
	if got.PreviousSuccessfulHash != "" {
		t.Error("PreviousSuccessfulHash must not advance on integrity failure")
	}
	h.mustNotExist(h.validated, "2025/acme/paris/nord/sales/sales.sql.gz")
	if h.notified.count() != 1 {
		t.Errorf("got %d notifications, want 1", h.notified.count())
	}
}

func TestScanMissingAfterDeadline(t *testing.T) {
	now := time.Date(2025, 1, 15, 14, 1, 0, 0, time.UTC)
	h := newHarness(t, now)
	job := h.createJob(nil)

	h.runPass()

	entries := h.jobEntries(job.ID)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Status != models.EntryStatusMissing {
		t.Fatalf("entry status = %s, want MISSING", e.Status)
	}
	if e.Message != "Backup missing for the cycle of 2025-01-15 at 13:00 UTC" {
		t.Errorf("Message = %q", e.Message)
	}
	if e.AgentID != "" || e.OperationLogFileName != "" {
		t.Error("MISSING entries must not carry agent fields")
	}

	got := h.reloadJob(job.ID)
	if got.CurrentStatus != models.JobStatusMissing {
		t.Errorf("job status = %s, want MISSING", got.CurrentStatus)
	}
	if h.notified.count() != 1 {
		t.Errorf("got %d notifications, want 1", h.notified.count())
	}

	// The same cycle must not be recorded twice.
	h.clk.Advance(10 * time.Minute)
	stats := h.runPass()
	if stats.EntriesAppended != 0 {
		t.Errorf("duplicate MISSING appended: %+v", stats)
	}
	if len(h.jobEntries(job.ID)) != 1 {
		t.Error("second pass duplicated the MISSING entry")
	}
}

func TestScanNoMissingOnRestDay(t *testing.T) {
	// 2025-01-19 is a Sunday; the job only runs Monday through Friday,
	// so the lapsed Sunday anchor must not produce a MISSING entry.
	now := time.Date(2025, 1, 19, 14, 1, 0, 0, time.UTC)
	h := newHarness(t, now)
	job := h.createJob(func(j *models.ExpectedJob) {
		j.DaysOfWeek = "Mo,Tu,We,Th,Fr"
	})

	stats := h.runPass()
	if stats.EntriesAppended != 0 {
		t.Errorf("entries appended on a rest day: %+v", stats)
	}
	if len(h.jobEntries(job.ID)) != 0 {
		t.Error("expected no entries for a rest-day cycle")
	}

	got := h.reloadJob(job.ID)
	if got.CurrentStatus != models.JobStatusUnknown {
		t.Errorf("job status = %s, want UNKNOWN", got.CurrentStatus)
	}
	if h.notified.count() != 0 {
		t.Errorf("got %d notifications, want 0", h.notified.count())
	}
}

func TestScanStillInFlight(t *testing.T) {
	now := time.Date(2025, 1, 15, 13, 30, 0, 0, time.UTC)
	h := newHarness(t, now)
	job := h.createJob(nil)

	stats := h.runPass()
	if stats.EntriesAppended != 0 {
		t.Errorf("in-flight job produced entries: %+v", stats)
	}

	got := h.reloadJob(job.ID)
	if got.CurrentStatus != models.JobStatusUnknown {
		t.Errorf("job status = %s, want UNKNOWN", got.CurrentStatus)
	}
	if got.LastCheckedAt != nil {
		t.Error("LastCheckedAt must not move without a decision")
	}
	if h.notified.count() != 0 {
		t.Errorf("got %d notifications, want 0", h.notified.count())
	}
}

func TestScanStaleReport(t *testing.T) {
	now := time.Date(2025, 1, 15, 13, 30, 0, 0, time.UTC)
	h := newHarness(t, now)
	job := h.createJob(nil)

	hash := stageArtifact(t, h.staging, "sales.sql.gz", []byte("dump content"))
	end := now.Add(-48 * time.Hour)
	h.depositReport("20250113_131000_acme_paris_nord.json",
		reportDoc(end, "sales", "sales.sql.gz", hash, 12))

	stats := h.runPass()

	if stats.ReportsRejected != 1 || stats.ReportsParsed != 0 {
		t.Errorf("stale report not rejected: %+v", stats)
	}
	// Rejected reports are still consumed.
	h.mustExist(h.staging, "acme_paris_nord/log/_archive/20250113_131000_acme_paris_nord.json")

	// 13:30 is before the 14:00 deadline, so the job is simply still
	// in flight this pass.
	if stats.EntriesAppended != 0 {
		t.Errorf("stale report produced entries: %+v", stats)
	}
	if got := h.reloadJob(job.ID); got.CurrentStatus != models.JobStatusUnknown {
		t.Errorf("job status = %s, want UNKNOWN", got.CurrentStatus)
	}
}

func TestScanTwoCyclesSameDatabase(t *testing.T) {
	now := time.Date(2025, 1, 15, 20, 30, 0, 0, time.UTC)
	h := newHarness(t, now)

	noon := h.createJob(nil) // 13:00
	evening := h.createJob(func(j *models.ExpectedJob) {
		j.ExpectedHourUTC = 20
	})

	hash := stageArtifact(t, h.staging, "sales.sql.gz", []byte("evening dump"))
	h.depositReport("20250115_200500_acme_paris_nord.json",
		reportDoc(time.Date(2025, 1, 15, 20, 5, 0, 0, time.UTC), "sales", "sales.sql.gz", hash, 12))

	h.runPass()

	// The 20:05 report satisfies only the 20:00 cycle.
	if e := h.jobEntries(evening.ID); len(e) != 1 || e[0].Status != models.EntryStatusSuccess {
		t.Errorf("evening job entries = %+v", e)
	}

	// The 13:00 cycle's deadline (14:00) has long passed unobserved.
	if e := h.jobEntries(noon.ID); len(e) != 1 || e[0].Status != models.EntryStatusMissing {
		t.Errorf("noon job entries = %+v", e)
	}
}

func TestScanPromotionFailureDemotes(t *testing.T) {
	now := time.Date(2025, 1, 15, 13, 30, 0, 0, time.UTC)
	h := newHarness(t, now)
	job := h.createJob(func(j *models.ExpectedJob) {
		j.FinalStorageTemplate = "{year}/{nonsense}"
	})

	hash := stageArtifact(t, h.staging, "sales.sql.gz", []byte("dump content"))
	h.depositReport("20250115_131000_acme_paris_nord.json",
		reportDoc(time.Date(2025, 1, 15, 13, 10, 0, 0, time.UTC), "sales", "sales.sql.gz", hash, 12))

	stats := h.runPass()
	if stats.PromotionsFailed != 1 || stats.Promotions != 0 {
		t.Errorf("promotion stats = %+v", stats)
	}

	entries := h.jobEntries(job.ID)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Status != models.EntryStatusFailed {
		t.Fatalf("entry status = %s, want FAILED", e.Status)
	}
	if !strings.HasPrefix(e.Message, "Promotion failed:") {
		t.Errorf("Message = %q", e.Message)
	}

	got := h.reloadJob(job.ID)
	if got.CurrentStatus != models.JobStatusFailed {
		t.Errorf("job status = %s, want FAILED", got.CurrentStatus)
	}
	if got.PreviousSuccessfulHash != "" {
		t.Error("PreviousSuccessfulHash must not advance when promotion failed")
	}
	if h.notified.count() != 1 {
		t.Errorf("got %d notifications, want 1", h.notified.count())
	}
}

func TestScanAgentDeclaredFailure(t *testing.T) {
	now := time.Date(2025, 1, 15, 13, 30, 0, 0, time.UTC)
	h := newHarness(t, now)
	job := h.createJob(nil)

	hash := stageArtifact(t, h.staging, "sales.sql.gz", []byte("dump content"))
	doc := reportDoc(time.Date(2025, 1, 15, 13, 10, 0, 0, time.UTC), "sales", "sales.sql.gz", hash, 12)
	dbs := doc["databases"].(map[string]any)
	section := dbs["sales"].(map[string]any)
	section["TRANSFER"].(map[string]any)["status"] = false
	section["logs_summary"] = "transfer aborted"
	h.depositReport("20250115_131000_acme_paris_nord.json", doc)

	h.runPass()

	entries := h.jobEntries(job.ID)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Status != models.EntryStatusFailed {
		t.Fatalf("entry status = %s, want FAILED", e.Status)
	}
	want := "Agent reported failure for sales: TRANSFER. Details: transfer aborted"
	if e.Message != want {
		t.Errorf("Message = %q, want %q", e.Message, want)
	}
	// The artifact itself is never touched in this branch.
	h.mustNotExist(h.validated, "2025/acme/paris/nord/sales/sales.sql.gz")
}

func TestScanLatestReportWins(t *testing.T) {
	now := time.Date(2025, 1, 15, 13, 40, 0, 0, time.UTC)
	h := newHarness(t, now)
	job := h.createJob(nil)

	hash := stageArtifact(t, h.staging, "sales.sql.gz", []byte("second dump"))
	stale := stageArtifact(t, h.staging, "old.sql.gz", []byte("first dump"))

	// Two reports for the same cycle stream; the later operation end
	// time must decide the job.
	h.depositReport("20250115_130500_acme_paris_nord.json",
		reportDoc(time.Date(2025, 1, 15, 13, 5, 0, 0, time.UTC), "sales", "old.sql.gz", stale, 10))
	h.depositReport("20250115_131500_acme_paris_nord.json",
		reportDoc(time.Date(2025, 1, 15, 13, 15, 0, 0, time.UTC), "sales", "sales.sql.gz", hash, 11))

	stats := h.runPass()

	if stats.ReportsParsed != 2 {
		t.Errorf("ReportsParsed = %d, want 2", stats.ReportsParsed)
	}
	if stats.ReportsArchived != 2 {
		t.Errorf("ReportsArchived = %d, want 2", stats.ReportsArchived)
	}

	entries := h.jobEntries(job.ID)
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].AgentStagedFileName != "sales.sql.gz" {
		t.Errorf("winning staged file = %q, want sales.sql.gz", entries[0].AgentStagedFileName)
	}
	h.mustExist(h.validated, "2025/acme/paris/nord/sales/sales.sql.gz")
	h.mustNotExist(h.validated, "2025/acme/paris/nord/sales/old.sql.gz")
}

func TestScanUnrecognizedDirectorySwept(t *testing.T) {
	now := time.Date(2025, 1, 15, 13, 30, 0, 0, time.UTC)
	h := newHarness(t, now)

	dir := filepath.Join(h.staging.Root(), "lost+found", "log")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "strange.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	stats := h.runPass()

	if stats.UnrecognizedDirs != 1 {
		t.Errorf("UnrecognizedDirs = %d, want 1", stats.UnrecognizedDirs)
	}
	if stats.ReportsArchived != 1 {
		t.Errorf("ReportsArchived = %d, want 1", stats.ReportsArchived)
	}
	h.mustExist(h.staging, "lost+found/log/_archive/strange.json")
	h.mustNotExist(h.staging, "lost+found/log/strange.json")
}

func TestRunnerLifecycle(t *testing.T) {
	now := time.Date(2025, 1, 15, 13, 30, 0, 0, time.UTC)
	h := newHarness(t, now)

	r := NewRunner(h.scanner, 10*time.Millisecond)
	r.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for h.scanner.LastPass() == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	r.Stop()

	if h.scanner.LastPass() == nil {
		t.Fatal("runner never completed a pass")
	}
	if h.scanner.IsRunning() {
		t.Error("pass still marked running after Stop")
	}
}
