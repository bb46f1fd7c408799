package config

import (
	"strings"
	"time"

	"github.com/backmon-io/backmon/internal/bytesize"
	"github.com/backmon-io/backmon/pkg/catalog/models"
)

// Default storage roots, matching the paths the deposit agents are
// provisioned with.
const (
	DefaultBackupRoot    = "/mnt/backups"
	DefaultValidatedRoot = "/mnt/backups/validated"
)

// Default scanner tolerances.
const (
	DefaultScannerIntervalMinutes = 15
	DefaultCollectionWindow       = 60
	DefaultMaxReportAgeDays       = 1
	DefaultScannerWorkers         = 4
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyStorageDefaults(&cfg.Storage)
	applyScannerDefaults(&cfg.Scanner)
	applySMTPDefaults(&cfg.SMTP)
	applyAdminDefaults(&cfg.Admin)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)
	// No need to set, zero value is false

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	// Apply profiling defaults
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Enabled defaults to false (opt-in for profiling)
	// No need to set, zero value is false

	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	// Default profile types include CPU, memory allocation, and goroutines
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyShutdownTimeoutDefaults sets shutdown timeout defaults.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyStorageDefaults sets the storage root defaults.
func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.BackupRoot == "" {
		cfg.BackupRoot = DefaultBackupRoot
	}
	if cfg.ValidatedRoot == "" {
		cfg.ValidatedRoot = DefaultValidatedRoot
	}
}

// applyScannerDefaults sets the scanner cadence defaults.
func applyScannerDefaults(cfg *ScannerConfig) {
	if cfg.IntervalMinutes == 0 {
		cfg.IntervalMinutes = DefaultScannerIntervalMinutes
	}
	if cfg.CollectionWindowMinutes == 0 {
		cfg.CollectionWindowMinutes = DefaultCollectionWindow
	}
	if cfg.MaxReportAgeDays == 0 {
		cfg.MaxReportAgeDays = DefaultMaxReportAgeDays
	}
	if cfg.ExpectedDaysOfWeek == "" {
		cfg.ExpectedDaysOfWeek = models.DefaultDaysOfWeek
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultScannerWorkers
	}
	if cfg.DigestBufferSize == 0 {
		cfg.DigestBufferSize = 64 * bytesize.KiB
	}
	// DigestCachePath has no default - empty means the cache is off
}

// applySMTPDefaults sets alerting defaults.
// Host, sender and recipient have no defaults: alerting is opt-in.
func applySMTPDefaults(cfg *SMTPConfig) {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.SendTimeout == 0 {
		cfg.SendTimeout = 30 * time.Second
	}
}

// applyAdminDefaults sets admin user defaults.
func applyAdminDefaults(cfg *AdminConfig) {
	// Default username is "admin"
	if cfg.Username == "" {
		cfg.Username = "admin"
	}
	// Email and PasswordHash have no defaults - they're optional or set during init
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
