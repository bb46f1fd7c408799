package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance. validator.Validate caches
// struct metadata, so a single instance serves the whole package.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration against the struct-tag rules plus
// the cross-field rules the tags cannot express.
//
// Violations are reported together, one line per failing field, so an
// operator fixes a broken config file in one round trip.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok {
			return fmt.Errorf("invalid configuration:\n%s", formatValidationErrors(verrs))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Database config carries its own backend-specific rules.
	storeCfg, err := cfg.Database.StoreConfig()
	if err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}
	if err := storeCfg.Validate(); err != nil {
		return fmt.Errorf("invalid database configuration: %w", err)
	}

	// The promotion target must not sit inside the deposit tree's agent
	// directories; sharing the exact root is tolerated because agents
	// never write to validated/.
	if cfg.Storage.BackupRoot == cfg.Storage.ValidatedRoot {
		return fmt.Errorf("invalid configuration: storage.backup_root and storage.validated_root must differ")
	}

	return nil
}

// asValidationErrors unwraps err into validator.ValidationErrors.
func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

// formatValidationErrors renders one human-readable line per violation.
func formatValidationErrors(verrs validator.ValidationErrors) string {
	var b strings.Builder
	for i, fe := range verrs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "  - %s: failed %q validation (value: %v)",
			fe.Namespace(), fe.Tag(), fe.Value())
	}
	return b.String()
}
