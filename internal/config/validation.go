package config

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	if c.Display.Screen < -1 {
		errs = append(errs, ValidationError{
			Field:   "display.screen",
			Message: fmt.Sprintf("invalid screen index %d", c.Display.Screen),
		})
	}

	for field, value := range map[string]string{
		"colors.idle":    c.Colors.Idle,
		"colors.typing":  c.Colors.Typing,
		"colors.failure": c.Colors.Failure,
		"colors.success": c.Colors.Success,
	} {
		if !hexColorRe.MatchString(value) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("%q is not a #rrggbb color", value),
			})
		}
	}

	if c.Colors.HoldMs < 0 || c.Colors.HoldMs > 10000 {
		errs = append(errs, ValidationError{
			Field:   "colors.hold_ms",
			Message: fmt.Sprintf("hold %dms out of range [0, 10000]", c.Colors.HoldMs),
		})
	}

	switch c.Auth.Backend {
	case "shadow", "pam":
	default:
		errs = append(errs, ValidationError{
			Field:   "auth.backend",
			Message: fmt.Sprintf("unknown backend %q (want shadow or pam)", c.Auth.Backend),
		})
	}

	if c.Auth.Backend == "pam" && c.Auth.PAMService == "" {
		errs = append(errs, ValidationError{
			Field:   "auth.pam_service",
			Message: "pam backend requires a service name",
		})
	}

	if c.Input.MaxLength < 1 || c.Input.MaxLength > 4096 {
		errs = append(errs, ValidationError{
			Field:   "input.max_length",
			Message: fmt.Sprintf("max_length %d out of range [1, 4096]", c.Input.MaxLength),
		})
	}

	if c.Session.UnlockAfterSec < 0 {
		errs = append(errs, ValidationError{
			Field:   "session.unlock_after_sec",
			Message: "must not be negative",
		})
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", c.Logging.Level),
		})
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q", c.Logging.Format),
		})
	}

	switch strings.ToLower(c.Logging.Output) {
	case "", "stdout", "stderr", "file":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("unknown output %q", c.Logging.Output),
		})
	}

	if strings.ToLower(c.Logging.Output) == "file" && c.Logging.FilePath == "" {
		errs = append(errs, ValidationError{
			Field:   "logging.file_path",
			Message: "file output requires a path",
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
