package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags plus custom
// rules that cannot be expressed in tags. Validation happens before any
// I/O: a config that fails here never reaches the network.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs cross-field validation.
func validateCustomRules(cfg *Config) error {
	if cfg.Pool.MinPerEndpoint > cfg.Pool.MaxPerEndpoint {
		return fmt.Errorf("pool: min_per_endpoint (%d) exceeds max_per_endpoint (%d)",
			cfg.Pool.MinPerEndpoint, cfg.Pool.MaxPerEndpoint)
	}

	seen := make(map[string]bool)
	for i, ep := range cfg.Trackers {
		if seen[ep] {
			return fmt.Errorf("trackers[%d]: duplicate endpoint %q", i, ep)
		}
		seen[ep] = true
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly
// messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
