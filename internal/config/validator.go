package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/JeredArc/jeredmgr/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "confirm.interval_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateGit()...)
	errors = append(errors, c.validateContainer()...)
	errors = append(errors, c.validateConfirm()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateGit() []ValidationError {
	var errors []ValidationError

	if c.Git.Binary == "" {
		errors = append(errors, ValidationError{
			Field:   "git.binary",
			Value:   c.Git.Binary,
			Message: "must not be empty",
		})
	}
	if c.Git.DefaultRemote == "" {
		errors = append(errors, ValidationError{
			Field:   "git.default_remote",
			Value:   c.Git.DefaultRemote,
			Message: "must not be empty",
		})
	}
	for _, host := range c.Git.TrustedHosts {
		if strings.ContainsAny(host, "/@: ") {
			errors = append(errors, ValidationError{
				Field:   "git.trusted_hosts",
				Value:   host,
				Message: "must be a bare host name without scheme, path, or port",
			})
		}
	}

	return errors
}

func (c *Config) validateContainer() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Container.ComposeCommand) == "" {
		errors = append(errors, ValidationError{
			Field:   "container.compose_command",
			Value:   c.Container.ComposeCommand,
			Message: "must not be empty",
		})
	}
	if c.Container.DescriptorName == "" {
		errors = append(errors, ValidationError{
			Field:   "container.descriptor_name",
			Value:   c.Container.DescriptorName,
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateConfirm() []ValidationError {
	var errors []ValidationError

	if c.Confirm.IntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "confirm.interval_ms",
			Value:   c.Confirm.IntervalMs,
			Message: "must be positive",
		})
	}
	if c.Confirm.MaxAttempts < 0 {
		errors = append(errors, ValidationError{
			Field:   "confirm.max_attempts",
			Value:   c.Confirm.MaxAttempts,
			Message: "must be zero or positive (zero means a single immediate check)",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(logging.ValidLevels(), strings.ToUpper(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(logging.ValidLevels(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be zero or positive",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be zero or positive",
		})
	}

	return errors
}
