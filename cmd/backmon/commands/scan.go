package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/backmon-io/backmon/internal/cli/output"
	"github.com/backmon-io/backmon/pkg/backupfs"
	"github.com/backmon-io/backmon/pkg/catalog/store"
	"github.com/backmon-io/backmon/pkg/config"
	"github.com/backmon-io/backmon/pkg/digest"
	"github.com/backmon-io/backmon/pkg/notify"
	"github.com/backmon-io/backmon/pkg/report"
	"github.com/backmon-io/backmon/pkg/scanner"
)

var (
	scanStorageRoot string
	scanDryNotify   bool
	scanOutput      string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single reconciliation pass",
	Long: `Run one synchronous reconciliation pass over the backup storage root.

The pass walks every agent directory, evaluates all active jobs against
the collected reports, appends catalogue entries, promotes verified
artifacts and archives consumed reports, then prints the pass summary.

This runs in-process and does not require a running server, but it uses
the same catalogue database; do not run it while a server instance is
mid-pass on the same database.

Examples:
  # Run a pass with the configured storage root
  backmon scan

  # Run against a different deposit root
  backmon scan --storage-root /mnt/staging

  # Run without sending alert emails
  backmon scan --no-notify

  # Print the summary as JSON
  backmon scan -o json`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanStorageRoot, "storage-root", "", "Override the backup storage root for this pass")
	scanCmd.Flags().BoolVar(&scanDryNotify, "no-notify", false, "Skip alert delivery for this pass")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runScan(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(scanOutput)
	if err != nil {
		return err
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backupRoot := cfg.Storage.BackupRoot
	if scanStorageRoot != "" {
		backupRoot = scanStorageRoot
	}

	storeCfg, err := cfg.Database.StoreConfig()
	if err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}
	catalogStore, err := store.New(storeCfg)
	if err != nil {
		return fmt.Errorf("failed to open catalogue store: %w", err)
	}
	defer func() { _ = catalogStore.Close() }()

	staging, err := backupfs.New(backupfs.DefaultConfig(backupRoot))
	if err != nil {
		return fmt.Errorf("failed to open backup storage root: %w", err)
	}
	validated, err := backupfs.New(backupfs.DefaultConfig(cfg.Storage.ValidatedRoot))
	if err != nil {
		return fmt.Errorf("failed to open validated storage root: %w", err)
	}

	digestBuffer := int(cfg.Scanner.DigestBufferSize)
	var hasher digest.Hasher = digest.Direct{BufferSize: digestBuffer}
	if cfg.Scanner.DigestCachePath != "" {
		cache, err := digest.OpenCache(cfg.Scanner.DigestCachePath)
		if err != nil {
			return fmt.Errorf("failed to open digest cache: %w", err)
		}
		defer func() { _ = cache.Close() }()
		cache.BufferSize = digestBuffer
		hasher = cache
	}

	smtpCfg := notify.Config{
		Host:           cfg.SMTP.Host,
		Port:           cfg.SMTP.Port,
		Username:       cfg.SMTP.Username,
		Password:       cfg.SMTP.Password,
		From:           cfg.SMTP.Sender,
		AdminRecipient: cfg.SMTP.AdminRecipient,
		SendTimeout:    cfg.SMTP.SendTimeout,
	}
	if scanDryNotify {
		// An incomplete SMTP config yields a disabled notifier.
		smtpCfg = notify.Config{}
	}
	notifier, err := notify.NewSMTP(smtpCfg)
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}

	sc, err := scanner.New(scanner.Config{
		WindowMinutes:  cfg.Scanner.CollectionWindowMinutes,
		CollectWorkers: cfg.Scanner.Workers,
	}, scanner.Deps{
		Store:     catalogStore,
		Staging:   staging,
		Validated: validated,
		Parser:    report.NewParser(cfg.Scanner.MaxReportAgeDays),
		Hasher:    hasher,
		Notifier:  notifier,
	})
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Scanning %s ...\n", backupRoot)
	stats, err := sc.RunPass(ctx)
	if err != nil {
		return fmt.Errorf("scan pass failed: %w", err)
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, stats)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, stats)
	default:
		printScanStats(stats)
	}
	return nil
}

func printScanStats(stats *scanner.Stats) {
	fmt.Println()
	fmt.Println("Scan Pass Summary")
	fmt.Println("=================")
	fmt.Println()
	fmt.Printf("  Started:            %s\n", stats.StartedAt.Format(time.RFC3339))
	fmt.Printf("  Duration:           %s\n", stats.Duration.Round(time.Millisecond))
	fmt.Printf("  Agent directories:  %d (%d unrecognized)\n", stats.AgentDirs, stats.UnrecognizedDirs)
	fmt.Printf("  Reports discovered: %d (parsed %d, rejected %d)\n",
		stats.ReportsDiscovered, stats.ReportsParsed, stats.ReportsRejected)
	fmt.Printf("  Jobs evaluated:     %d\n", stats.JobsEvaluated)
	fmt.Printf("  Entries appended:   %d\n", stats.EntriesAppended)
	for status, n := range stats.EntriesByStatus {
		fmt.Printf("    %-17s %d\n", status+":", n)
	}
	fmt.Printf("  Promotions:         %d (%d failed)\n", stats.Promotions, stats.PromotionsFailed)
	fmt.Printf("  Reports archived:   %d (%d failed)\n", stats.ReportsArchived, stats.ArchiveFailures)
	if stats.Failures > 0 {
		fmt.Printf("  Absorbed errors:    %d\n", stats.Failures)
	}
	fmt.Println()
}
