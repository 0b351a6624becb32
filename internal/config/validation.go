package config

import (
	"fmt"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Level and mode normalization happens in ApplyDefaults, so Validate
// expects upper-case log levels and lower-case enum values.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if filepath.Clean(cfg.Mount.Point) == "/" {
		return fmt.Errorf("mount.point: refusing to mount over /")
	}

	sessionDir := filepath.Clean(cfg.Session.Dir)
	mountPoint := filepath.Clean(cfg.Mount.Point)
	if sessionDir == mountPoint {
		return fmt.Errorf("session.dir: must not be the mount point %q", mountPoint)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
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
