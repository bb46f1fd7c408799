package commands

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/backmon-io/backmon/internal/logger"
	"github.com/backmon-io/backmon/internal/telemetry"
	"github.com/backmon-io/backmon/pkg/backupfs"
	"github.com/backmon-io/backmon/pkg/catalog/api"
	"github.com/backmon-io/backmon/pkg/catalog/store"
	"github.com/backmon-io/backmon/pkg/config"
	"github.com/backmon-io/backmon/pkg/digest"
	"github.com/backmon-io/backmon/pkg/metrics"
	metricsprom "github.com/backmon-io/backmon/pkg/metrics/prometheus"
	"github.com/backmon-io/backmon/pkg/notify"
	"github.com/backmon-io/backmon/pkg/report"
	"github.com/backmon-io/backmon/pkg/scanner"
)

var (
	foreground bool
	pidFile    string
	logFile    string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the backmon server",
	Long: `Start the backmon server with the specified configuration.

The server runs the reconciliation scanner on its configured interval and
serves the catalogue REST API. By default it runs in the background (daemon
mode). Use --foreground to run in the foreground for debugging or when
managed by a process supervisor.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/backmon/config.yaml.

Examples:
  # Start in background (default)
  backmon start

  # Start in foreground
  backmon start --foreground

  # Start with custom config file
  backmon start --config /etc/backmon/config.yaml

  # Start with environment variable overrides
  BACKMON_LOGGING_LEVEL=DEBUG backmon start --foreground`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground (default: background/daemon mode)")
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/backmon/backmon.pid)")
	startCmd.Flags().StringVar(&logFile, "log-file", "", "Path to log file for daemon mode (default: $XDG_STATE_HOME/backmon/backmon.log)")
}

func runStart(cmd *cobra.Command, args []string) error {
	// Handle daemon mode (background)
	if !foreground {
		return startDaemon()
	}

	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry (if enabled)
	telemetryCfg := telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "backmon",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	// Initialize Pyroscope profiling (if enabled)
	profilingCfg := telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "backmon",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	}
	profilingShutdown, err := telemetry.InitProfiling(profilingCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", "error", err)
		}
	}()

	fmt.Println("Backmon - Backup monitoring server")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	} else {
		logger.Info("Telemetry disabled")
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	} else {
		logger.Info("Profiling disabled")
	}

	// Initialize metrics FIRST (before creating collaborators that check
	// metrics.IsEnabled())
	var scannerMetrics metrics.ScannerMetrics
	var httpMetrics metrics.HTTPMetrics
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		scannerMetrics = metricsprom.NewScannerMetrics()
		httpMetrics = metricsprom.NewHTTPMetrics()
		logger.Info("Metrics enabled", "endpoint", "/metrics")
	} else {
		logger.Info("Metrics collection disabled")
	}

	// Open the catalogue store
	storeCfg, err := cfg.Database.StoreConfig()
	if err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}
	catalogStore, err := store.New(storeCfg)
	if err != nil {
		return fmt.Errorf("failed to open catalogue store: %w", err)
	}
	defer func() { _ = catalogStore.Close() }()
	logger.Info("Catalogue store opened", "type", storeCfg.Type)

	// Ensure admin user exists (generates random password on first run)
	adminPassword, err := catalogStore.EnsureAdminUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure admin user: %w", err)
	}
	if adminPassword != "" {
		logger.Info("Admin user created", "username", "admin")
		fmt.Printf("\n*** IMPORTANT: Admin user created with password: %s ***\n", adminPassword)
		fmt.Println("Please save this password. It will not be shown again.")
		fmt.Println()
	}

	// Open the storage gateways
	staging, err := backupfs.New(backupfs.DefaultConfig(cfg.Storage.BackupRoot))
	if err != nil {
		return fmt.Errorf("failed to open backup storage root: %w", err)
	}
	validated, err := backupfs.New(backupfs.DefaultConfig(cfg.Storage.ValidatedRoot))
	if err != nil {
		return fmt.Errorf("failed to open validated storage root: %w", err)
	}
	logger.Info("Storage roots opened",
		"backup_root", staging.Root(),
		"validated_root", validated.Root())

	// Digest hasher, optionally cached
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
		logger.Info("Digest cache enabled", "path", cfg.Scanner.DigestCachePath)
	}

	// Alert notifier
	notifier, err := notify.NewSMTP(notify.Config{
		Host:           cfg.SMTP.Host,
		Port:           cfg.SMTP.Port,
		Username:       cfg.SMTP.Username,
		Password:       cfg.SMTP.Password,
		From:           cfg.SMTP.Sender,
		AdminRecipient: cfg.SMTP.AdminRecipient,
		SendTimeout:    cfg.SMTP.SendTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}

	// Build the scanner
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
		Metrics:   scannerMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create scanner: %w", err)
	}

	// Start the scheduled pass loop
	runner := scanner.NewRunner(sc, time.Duration(cfg.Scanner.IntervalMinutes)*time.Minute)
	runner.Start(ctx)
	defer runner.Stop()

	// Create the API server
	apiServer, err := api.NewServer(cfg.API, api.RouterDeps{
		Store:       catalogStore,
		Staging:     staging,
		Validated:   validated,
		Scanner:     sc,
		BaseContext: ctx,
		HTTPMetrics: httpMetrics,
	})
	if err != nil {
		return fmt.Errorf("failed to create API server: %w", err)
	}
	logger.Info("API server configured", "port", apiServer.Port())

	// Write PID file if specified
	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	// Start API server in background
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- apiServer.Start(ctx)
	}()

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Wait for server to shut down gracefully
		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}

// startDaemon starts the server as a background daemon process.
func startDaemon() error {
	stateDir := GetDefaultStateDir()

	// Create state directory if it doesn't exist
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	// Set default PID file if not specified
	pidPath := pidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}

	// Check if already running
	if _, err := os.Stat(pidPath); err == nil {
		pidData, err := os.ReadFile(pidPath)
		if err == nil {
			var pid int
			if _, err := fmt.Sscanf(string(pidData), "%d", &pid); err == nil {
				// Check if process is still running
				if process, err := os.FindProcess(pid); err == nil {
					if err := process.Signal(syscall.Signal(0)); err == nil {
						return fmt.Errorf("backmon is already running (PID %d)\nUse 'backmon stop' to stop the running instance", pid)
					}
				}
			}
		}
		// Stale PID file, remove it
		_ = os.Remove(pidPath)
	}

	// Set default log file if not specified
	logPath := logFile
	if logPath == "" {
		logPath = GetDefaultLogFile()
	}

	// Get the executable path
	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	// Build arguments for the daemon process
	daemonArgs := []string{"start", "--foreground", "--pid-file", pidPath}
	if GetConfigFile() != "" {
		daemonArgs = append(daemonArgs, "--config", GetConfigFile())
	}

	// Create the daemon process
	cmd := exec.Command(executable, daemonArgs...)

	// Open log file for stdout/stderr
	logFileHandle, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	cmd.Stdout = logFileHandle
	cmd.Stderr = logFileHandle

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	// Start the daemon
	if err := cmd.Start(); err != nil {
		_ = logFileHandle.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	_ = logFileHandle.Close()

	fmt.Printf("Backmon started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", pidPath)
	fmt.Printf("  Log file: %s\n", logPath)
	fmt.Println("\nUse 'backmon stop' to stop the server")
	fmt.Println("Use 'backmon status' to check server status")

	return nil
}
