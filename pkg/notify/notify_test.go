package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/backmon-io/backmon/pkg/catalog/models"
)

func alertJob() *models.ExpectedJob {
	return &models.ExpectedJob{
		ID:                42,
		Year:              2025,
		Company:           "acme",
		City:              "paris",
		Neighborhood:      "nord",
		DatabaseName:      "sales",
		ExpectedHourUTC:   13,
		ExpectedMinuteUTC: 0,
		CurrentStatus:     models.JobStatusTransferIntegrityFailed,
	}
}

func alertEntry() *models.BackupEntry {
	changed := false
	return &models.BackupEntry{
		ID:                            7,
		ExpectedJobID:                 42,
		Timestamp:                     time.Date(2025, 1, 15, 13, 30, 0, 0, time.UTC),
		Status:                        models.EntryStatusTransferIntegrityFailed,
		Message:                       "server hash does not match reported hash",
		AgentCompressHashPostCompress: "aaaa1111",
		ServerCalculatedHash:          "bbbb2222",
		HashComparisonResult:          &changed,
	}
}

func TestNopNotifier(t *testing.T) {
	var n NopNotifier
	if err := n.Notify(context.Background(), alertJob(), alertEntry()); err != nil {
		t.Errorf("NopNotifier.Notify() error = %v", err)
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Port != 587 {
		t.Errorf("Port = %d, expected 587", cfg.Port)
	}
	if cfg.SendTimeout != 30*time.Second {
		t.Errorf("SendTimeout = %v, expected 30s", cfg.SendTimeout)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, expected 3", cfg.MaxRetries)
	}
}

func TestConfig_Enabled(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		enabled bool
	}{
		{"complete", Config{Host: "smtp.example.com", From: "backmon@example.com"}, true},
		{"no host", Config{From: "backmon@example.com"}, false},
		{"no sender", Config{Host: "smtp.example.com"}, false},
		{"empty", Config{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.Enabled(); got != tt.enabled {
				t.Errorf("Enabled() = %v, want %v", got, tt.enabled)
			}
		})
	}
}

func TestDisabledNotifierSkipsSilently(t *testing.T) {
	n, err := NewSMTP(Config{})
	if err != nil {
		t.Fatalf("NewSMTP() error = %v", err)
	}

	if err := n.Notify(context.Background(), alertJob(), alertEntry()); err != nil {
		t.Errorf("disabled notifier must not fail, got %v", err)
	}
}

func TestNotifySkipsSuccess(t *testing.T) {
	n, err := NewSMTP(Config{}) // disabled, but SUCCESS exits first
	if err != nil {
		t.Fatal(err)
	}

	entry := alertEntry()
	entry.Status = models.EntryStatusSuccess
	if err := n.Notify(context.Background(), alertJob(), entry); err != nil {
		t.Errorf("SUCCESS entry must be skipped, got %v", err)
	}
}

func TestResolveRecipients(t *testing.T) {
	config := &Config{AdminRecipient: "admin@example.com"}

	t.Run("falls back to admin recipient", func(t *testing.T) {
		got := resolveRecipients(config, alertJob())
		if len(got) != 1 || got[0] != "admin@example.com" {
			t.Errorf("recipients = %v", got)
		}
	})

	t.Run("job override wins", func(t *testing.T) {
		job := alertJob()
		job.NotificationRecipients = "dba@acme.example, ops@acme.example"
		got := resolveRecipients(config, job)
		if len(got) != 2 || got[0] != "dba@acme.example" || got[1] != "ops@acme.example" {
			t.Errorf("recipients = %v", got)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		got := resolveRecipients(&Config{}, alertJob())
		if len(got) != 0 {
			t.Errorf("expected no recipients, got %v", got)
		}
	})
}

func TestBuildSubject(t *testing.T) {
	subject := buildSubject(alertJob(), alertEntry())
	expected := "BACKUP ALERT - sales - TRANSFER INTEGRITY FAILED"
	if subject != expected {
		t.Errorf("subject = %q, want %q", subject, expected)
	}
}

func TestBuildBody(t *testing.T) {
	body := buildBody(alertJob(), alertEntry())

	for _, want := range []string{
		`database "sales"`,
		"acme_paris_nord",
		"TRANSFER_INTEGRITY_FAILED",
		"aaaa1111",
		"bbbb2222",
		"2025-01-15T13:30:00Z",
		"13:00 UTC",
		"Content changed: no",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestBuildBodyMissingEntry(t *testing.T) {
	entry := &models.BackupEntry{
		Timestamp: time.Date(2025, 1, 15, 14, 1, 0, 0, time.UTC),
		Status:    models.EntryStatusMissing,
		Message:   "no report observed before the cycle deadline",
	}

	body := buildBody(alertJob(), entry)
	for _, want := range []string{
		"Reported hash:  n/a",
		"Server hash:    n/a",
		"Content changed: n/a",
		"no report observed",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}
