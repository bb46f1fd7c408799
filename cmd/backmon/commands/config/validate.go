package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/backmon-io/backmon/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the backmon configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  backmon config validate

  # Validate specific config file
  backmon config validate --config /etc/backmon/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	// Get config path from parent's persistent flag
	configPath, _ := cmd.Flags().GetString("config")

	// Load and validate configuration
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	// Determine path for display
	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	// Additional validation checks
	var warnings []string

	// Check JWT secret is configured
	if !cfg.API.HasJWTSecret() {
		warnings = append(warnings, "JWT secret not configured - API authentication will fail")
	}

	// Check SMTP alerting is actually deliverable
	if cfg.SMTP.Host == "" || cfg.SMTP.Sender == "" {
		warnings = append(warnings, "SMTP host or sender not configured - alerting is disabled")
	}

	// Check digest cache is set
	if cfg.Scanner.DigestCachePath == "" {
		warnings = append(warnings, "Digest cache path not configured - artifacts are re-hashed every pass")
	}

	// Print results
	fmt.Printf("Configuration file: %s\n", displayPath)
	fmt.Println("Validation: OK")

	if len(warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
	}

	fmt.Printf("\nConfiguration summary:\n")
	fmt.Printf("  Database type:   %s\n", cfg.Database.Type)
	fmt.Printf("  API port:        %d\n", cfg.API.Port)
	fmt.Printf("  Log level:       %s\n", cfg.Logging.Level)
	fmt.Printf("  Backup root:     %s\n", cfg.Storage.BackupRoot)
	fmt.Printf("  Validated root:  %s\n", cfg.Storage.ValidatedRoot)
	fmt.Printf("  Scan interval:   %dm (window %dm)\n", cfg.Scanner.IntervalMinutes, cfg.Scanner.CollectionWindowMinutes)

	return nil
}
