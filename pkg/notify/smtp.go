package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/wneessen/go-mail"

	"github.com/backmon-io/backmon/internal/logger"
	"github.com/backmon-io/backmon/pkg/catalog/models"
)

// Config contains SMTP notifier configuration.
type Config struct {
	// Host is the SMTP server. Empty disables the notifier.
	Host string
	// Port defaults to 587.
	Port int
	// Username and Password enable SMTP AUTH when both are set.
	Username string
	Password string
	// From is the sender address. Empty disables the notifier.
	From string
	// AdminRecipient receives alerts for jobs without their own
	// notification_recipients.
	AdminRecipient string
	// SendTimeout bounds one delivery attempt. Defaults to 30s.
	SendTimeout time.Duration
	// MaxRetries is the number of additional attempts after a failed
	// send. Defaults to 3.
	MaxRetries uint64
}

// ApplyDefaults fills in missing configuration with default values.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 587
	}
	if c.SendTimeout == 0 {
		c.SendTimeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Enabled reports whether the configuration is complete enough to
// deliver mail.
func (c *Config) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// SMTPNotifier delivers alerts by e-mail. When the configuration is
// incomplete it acts as a disabled sink: every Notify logs at debug
// and returns nil.
type SMTPNotifier struct {
	config Config
	client *mail.Client
}

// NewSMTP creates an SMTP notifier from the configuration. An
// incomplete configuration is not an error; the notifier starts
// disabled.
func NewSMTP(config Config) (*SMTPNotifier, error) {
	config.ApplyDefaults()

	n := &SMTPNotifier{config: config}
	if !config.Enabled() {
		logger.Warn("SMTP not configured, e-mail notifications disabled")
		return n, nil
	}

	opts := []mail.Option{
		mail.WithPort(config.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(config.SendTimeout),
	}
	if config.Username != "" && config.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(config.Username),
			mail.WithPassword(config.Password),
		)
	}

	client, err := mail.NewClient(config.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	n.client = client
	return n, nil
}

// Notify implements Notifier. SUCCESS entries and entries for jobs
// without any resolvable recipient are skipped silently.
func (n *SMTPNotifier) Notify(ctx context.Context, job *models.ExpectedJob, entry *models.BackupEntry) error {
	if entry.Status == models.EntryStatusSuccess {
		return nil
	}
	if n.client == nil {
		logger.Debug("Notification skipped, SMTP disabled",
			"Database", job.DatabaseName,
			"Status", entry.Status)
		return nil
	}

	recipients := resolveRecipients(&n.config, job)
	if len(recipients) == 0 {
		logger.Warn("No notification recipient configured, alert not sent",
			"Database", job.DatabaseName,
			"Status", entry.Status)
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(n.config.From); err != nil {
		return fmt.Errorf("invalid sender %q: %w", n.config.From, err)
	}
	if err := msg.To(recipients...); err != nil {
		return fmt.Errorf("invalid recipients %v: %w", recipients, err)
	}
	msg.Subject(buildSubject(job, entry))
	msg.SetBodyString(mail.TypeTextPlain, buildBody(job, entry))

	send := func() error {
		return n.client.DialAndSendWithContext(ctx, msg)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 15 * time.Second

	err := backoff.RetryNotify(send,
		backoff.WithContext(backoff.WithMaxRetries(bo, n.config.MaxRetries), ctx),
		func(err error, wait time.Duration) {
			logger.Warn("Notification send failed, retrying",
				"Database", job.DatabaseName,
				"Wait", wait,
				"Error", err)
		})
	if err != nil {
		return fmt.Errorf("failed to send notification for %q: %w", job.DatabaseName, err)
	}

	logger.Info("Notification sent",
		"Database", job.DatabaseName,
		"Status", entry.Status,
		"Recipients", len(recipients))
	return nil
}

// resolveRecipients returns the job's own recipients when set,
// otherwise the global admin recipient.
func resolveRecipients(config *Config, job *models.ExpectedJob) []string {
	raw := job.NotificationRecipients
	if raw == "" {
		raw = config.AdminRecipient
	}

	var recipients []string
	for _, addr := range strings.Split(raw, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	return recipients
}

func buildSubject(job *models.ExpectedJob, entry *models.BackupEntry) string {
	label := strings.ReplaceAll(string(entry.Status), "_", " ")
	return fmt.Sprintf("BACKUP ALERT - %s - %s", job.DatabaseName, label)
}

func buildBody(job *models.ExpectedJob, entry *models.BackupEntry) string {
	var b strings.Builder

	fmt.Fprintf(&b, "A backup anomaly was detected for database %q.\n\n", job.DatabaseName)

	fmt.Fprintf(&b, "Job:\n")
	fmt.Fprintf(&b, "  ID:             %d\n", job.ID)
	fmt.Fprintf(&b, "  Database:       %s\n", job.DatabaseName)
	fmt.Fprintf(&b, "  Agent:          %s\n", job.AgentID())
	fmt.Fprintf(&b, "  Company:        %s\n", job.Company)
	fmt.Fprintf(&b, "  City:           %s\n", job.City)
	fmt.Fprintf(&b, "  Expected at:    %s UTC\n", job.AnchorClock())
	fmt.Fprintf(&b, "  Current status: %s\n\n", job.CurrentStatus)

	fmt.Fprintf(&b, "Entry:\n")
	fmt.Fprintf(&b, "  Status:         %s\n", entry.Status)
	fmt.Fprintf(&b, "  Timestamp:      %s\n", entry.Timestamp.UTC().Format(time.RFC3339))
	if entry.Message != "" {
		fmt.Fprintf(&b, "  Message:        %s\n", entry.Message)
	}
	fmt.Fprintf(&b, "  Reported hash:  %s\n", orNA(entry.AgentCompressHashPostCompress))
	fmt.Fprintf(&b, "  Server hash:    %s\n", orNA(entry.ServerCalculatedHash))
	fmt.Fprintf(&b, "  Content changed: %s\n", comparisonLabel(entry.HashComparisonResult))

	fmt.Fprintf(&b, "\nPlease investigate and resolve the issue.\n")

	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}

func comparisonLabel(result *bool) string {
	switch {
	case result == nil:
		return "n/a"
	case *result:
		return "yes"
	default:
		return "no"
	}
}
