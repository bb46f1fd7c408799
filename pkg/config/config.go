// Package config loads, validates and persists the backmon server
// configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/backmon-io/backmon/internal/bytesize"
	"github.com/backmon-io/backmon/pkg/catalog/api"
	"github.com/backmon-io/backmon/pkg/catalog/store"
)

// Config represents the backmon configuration.
//
// This structure captures the static configuration of the backup
// monitoring server:
//   - Logging configuration
//   - Telemetry/tracing configuration
//   - Storage roots (agent deposits and validated backups)
//   - Scanner cadence and tolerances
//   - Database connection (catalogue persistence)
//   - SMTP alerting
//   - API server settings
//   - Admin user setup (for initial bootstrap)
//
// The catalogue itself (expected jobs, history, users) is managed
// through the REST API and stored in the database.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (BACKMON_* or the flat keys in legacyEnvBindings)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database configures the catalogue database (SQLite or PostgreSQL).
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Storage configures the filesystem roots the scanner works over.
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Scanner configures the reconciliation pass cadence and tolerances.
	Scanner ScannerConfig `mapstructure:"scanner" yaml:"scanner"`

	// SMTP configures the alert notifier. Leaving host or sender empty
	// disables alerting.
	SMTP SMTPConfig `mapstructure:"smtp" yaml:"smtp"`

	// Metrics contains Prometheus metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains REST API server configuration
	API api.Config `mapstructure:"api" yaml:"api"`

	// Admin contains initial admin user configuration for bootstrap
	// This is used by 'backmon init' to set up the first admin user
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector
// (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317" (standard OTLP gRPC port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	// Set to false in production with a TLS-enabled collector
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// 1.0 = sample all traces, 0.5 = sample 50%, 0.0 = no sampling
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
// When enabled, CPU and memory profiles are continuously sent to a Pyroscope server
// for flame graph visualization and performance analysis.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	// Default: false (opt-in for profiling)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040" (standard Pyroscope port)
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	// Valid values: cpu, alloc_objects, alloc_space, inuse_objects, inuse_space,
	//               goroutines, mutex_count, mutex_duration, block_count, block_duration
	// Default: ["cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"]
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// DatabaseConfig configures the catalogue database.
//
// The structured fields (type, sqlite, postgres) are the primary
// interface; URL exists for compatibility with deployments that carry
// a single DATABASE_URL value and overrides the structured fields when
// set.
type DatabaseConfig struct {
	// URL is a connection URL (sqlite:///path, postgres://...).
	// When set it takes precedence over Type/SQLite/Postgres.
	URL string `mapstructure:"url" yaml:"url,omitempty"`

	// Type selects the backend: "sqlite" (default) or "postgres".
	Type store.DatabaseType `mapstructure:"type" yaml:"type"`

	// SQLite configures the SQLite backend.
	SQLite store.SQLiteConfig `mapstructure:"sqlite" yaml:"sqlite"`

	// Postgres configures the PostgreSQL backend.
	Postgres store.PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// StoreConfig resolves the database configuration into the store
// layer's Config, honoring the URL override.
func (c *DatabaseConfig) StoreConfig() (*store.Config, error) {
	if c.URL != "" {
		return store.ParseDatabaseURL(c.URL)
	}
	cfg := &store.Config{
		Type:     c.Type,
		SQLite:   c.SQLite,
		Postgres: c.Postgres,
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// StorageConfig configures the filesystem roots.
type StorageConfig struct {
	// BackupRoot is the directory agents deposit into. Each immediate
	// child is one agent's directory (company_city_neighborhood).
	// Default: /mnt/backups
	BackupRoot string `mapstructure:"backup_root" validate:"required" yaml:"backup_root"`

	// ValidatedRoot is the permanent store verified artifacts are
	// promoted into.
	// Default: /mnt/backups/validated
	ValidatedRoot string `mapstructure:"validated_root" validate:"required" yaml:"validated_root"`
}

// ScannerConfig configures the reconciliation pass.
type ScannerConfig struct {
	// IntervalMinutes is the pause between scheduled passes.
	// Default: 15
	IntervalMinutes int `mapstructure:"interval_minutes" validate:"omitempty,min=1" yaml:"interval_minutes"`

	// CollectionWindowMinutes is W: a report counts for a cycle when
	// its end time falls within +-W minutes of the cycle anchor, and a
	// cycle is overdue once anchor+W has passed.
	// Default: 60
	CollectionWindowMinutes int `mapstructure:"collection_window_minutes" validate:"omitempty,min=1" yaml:"collection_window_minutes"`

	// MaxReportAgeDays rejects reports whose operation end time is
	// older than this many days.
	// Default: 1
	MaxReportAgeDays int `mapstructure:"max_report_age_days" validate:"omitempty,min=1" yaml:"max_report_age_days"`

	// ExpectedDaysOfWeek is the default days-of-week list applied to
	// seeded jobs that don't carry their own.
	// Default: Mo,Tu,We,Th,Fr,Sa
	ExpectedDaysOfWeek string `mapstructure:"expected_days_of_week" yaml:"expected_days_of_week"`

	// Workers bounds the concurrent agent directory walks during the
	// collect phase.
	// Default: 4
	Workers int `mapstructure:"workers" validate:"omitempty,min=1" yaml:"workers"`

	// DigestCachePath is the directory for the digest result cache.
	// Empty disables the cache and every pass re-hashes every artifact
	// it examines.
	DigestCachePath string `mapstructure:"digest_cache_path" yaml:"digest_cache_path,omitempty"`

	// DigestBufferSize is the read buffer used while hashing staged
	// artifacts. Supports human-readable values ("64KiB", "16KB").
	// Default: 64KiB
	DigestBufferSize bytesize.ByteSize `mapstructure:"digest_buffer_size" yaml:"digest_buffer_size,omitempty"`
}

// SMTPConfig configures the alert notifier.
// Host and Sender are both required for delivery; when either is
// empty the notifier degrades to a disabled sink.
type SMTPConfig struct {
	// Host is the SMTP server hostname.
	Host string `mapstructure:"host" yaml:"host,omitempty"`

	// Port is the SMTP server port.
	// Default: 587
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port,omitempty"`

	// Username and Password enable SMTP AUTH when both are set.
	Username string `mapstructure:"username" yaml:"username,omitempty"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// Sender is the From address of every alert.
	Sender string `mapstructure:"sender" yaml:"sender,omitempty"`

	// AdminRecipient receives alerts for jobs without their own
	// notification_recipients.
	AdminRecipient string `mapstructure:"admin_recipient" yaml:"admin_recipient,omitempty"`

	// SendTimeout bounds one delivery attempt.
	// Default: 30s
	SendTimeout time.Duration `mapstructure:"send_timeout" yaml:"send_timeout,omitempty"`
}

// MetricsConfig configures Prometheus metrics collection.
// When Enabled is false, no metrics are collected (zero overhead).
// The exposition endpoint is served on the API mux at /metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// AdminConfig contains initial admin user configuration for bootstrap.
// This is used by 'backmon init' to pre-configure the first admin user.
type AdminConfig struct {
	// Username is the admin username
	// Default: "admin"
	Username string `mapstructure:"username" yaml:"username"`

	// Email is the admin user's email address (optional)
	Email string `mapstructure:"email" yaml:"email,omitempty"`

	// PasswordHash is the bcrypt hash of the admin password
	// Generated during 'backmon init' or can be set manually
	// Use: htpasswd -nbB "" "password" | cut -d: -f2
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (BACKMON_* or legacy flat keys)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Configure viper
	setupViper(v, configPath)

	// Read configuration file if it exists
	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// Without a config file the environment bindings still apply, so
	// unmarshal either way.
	_ = configFileFound

	// Unmarshal into config struct with custom decode hooks
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply defaults for any missing values
	ApplyDefaults(&cfg)

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: User-friendly error with instructions if config not found
func MustLoad(configPath string) (*Config, error) {
	// Determine config path
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  backmon init\n\n"+
				"Or specify a custom config file:\n"+
				"  backmon <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  backmon init --config %s",
				configPath, configPath)
		}
	}

	// Load configuration
	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The configuration is saved in YAML format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	// Create parent directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use yaml.Marshal directly to respect yaml tags
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write to file with restricted permissions (0600 = owner read/write only).
	// This is important because config files may contain sensitive data like
	// SMTP credentials and password hashes.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// legacyEnvBindings maps config paths to the flat environment keys the
// original deployment used. Both spellings work; BACKMON_* wins when
// set because viper checks keys in order.
var legacyEnvBindings = map[string][]string{
	"database.url":                      {"DATABASE_URL"},
	"storage.backup_root":               {"BACKUP_STORAGE_ROOT"},
	"storage.validated_root":            {"VALIDATED_BACKUPS_BASE_PATH"},
	"scanner.interval_minutes":          {"SCANNER_INTERVAL_MINUTES"},
	"scanner.collection_window_minutes": {"SCANNER_REPORT_COLLECTION_WINDOW_MINUTES"},
	"scanner.max_report_age_days":       {"MAX_STATUS_FILE_AGE_DAYS"},
	"scanner.expected_days_of_week":     {"EXPECTED_BACKUP_DAYS_OF_WEEK"},
	"smtp.host":                         {"SMTP_HOST"},
	"smtp.port":                         {"SMTP_PORT"},
	"smtp.username":                     {"SMTP_USER"},
	"smtp.password":                     {"SMTP_PASSWORD"},
	"smtp.sender":                       {"EMAIL_SENDER"},
	"smtp.admin_recipient":              {"ADMIN_EMAIL_RECIPIENT"},
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Set up environment variable support
	// Environment variables use BACKMON_ prefix and underscores
	// Example: BACKMON_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("BACKMON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind the flat legacy keys the original deployment exported
	for key, envs := range legacyEnvBindings {
		prefixed := "BACKMON_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(append([]string{key, prefixed}, envs...)...)
	}

	// Configure config file search
	if configPath != "" {
		// Use explicitly specified config file
		v.SetConfigFile(configPath)
	} else {
		// Use default location: $XDG_CONFIG_HOME/backmon/config.yaml
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml") // Primary format
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		// Check if error is "config file not found"
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return false, nil
		}
		// Also check for os.PathError when explicit config file doesn't exist
		if os.IsNotExist(err) {
			// Config file not found is acceptable - use defaults
			return false, nil
		}
		// Other errors are problems
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
// This includes ByteSize and time.Duration parsing.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook returns a mapstructure decode hook that converts strings
// and integers to bytesize.ByteSize. This enables config files to use human-readable
// sizes like "64KiB", "1Mi", or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		// Only handle conversion to ByteSize
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			// Parse human-readable string like "64KiB", "1Mi", "100MB"
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook returns a mapstructure decode hook that converts strings
// to time.Duration. This enables config files to use human-readable durations
// like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		// Only handle conversion to time.Duration
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			// Parse duration string like "30s", "5m", "1h"
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	// Check XDG_CONFIG_HOME
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "backmon")
	}

	// Fall back to ~/.config
	home, err := os.UserHomeDir()
	if err != nil {
		// If we can't get home dir, use current directory as last resort
		return "."
	}

	return filepath.Join(home, ".config", "backmon")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
