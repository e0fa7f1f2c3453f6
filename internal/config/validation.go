package config

import (
	"fmt"
	"net"
)

// Validate checks if the configuration is valid
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateTiming()...)
	errors = append(errors, c.validateInhibitor()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateCheckers()...)
	errors = append(errors, c.validateMetrics()...)

	return errors
}

func (c *Config) validateTiming() []ValidationError {
	var errors []ValidationError

	if c.CheckIntervalSeconds < 1 {
		errors = append(errors, ValidationError{
			Path:    "check_interval_seconds",
			Message: fmt.Sprintf("must be at least 1, got %d", c.CheckIntervalSeconds),
		})
	}

	if c.MaxInactiveSeconds < 0 {
		errors = append(errors, ValidationError{
			Path:    "max_inactive_seconds",
			Message: fmt.Sprintf("must be non-negative, got %d", c.MaxInactiveSeconds),
		})
	}

	return errors
}

func (c *Config) validateInhibitor() []ValidationError {
	validInhibitors := []string{InhibitorLogind, InhibitorSystemdInhibit}
	if contains(validInhibitors, c.Inhibitor) {
		return nil
	}
	return []ValidationError{{
		Path:    "inhibitor",
		Message: fmt.Sprintf("must be one of %v, got '%s'", validInhibitors, c.Inhibitor),
	}}
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	validLevels := []string{"debug", "info", "warn", "warning", "error"}
	if !contains(validLevels, c.Logging.Level) {
		errors = append(errors, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validLevels, c.Logging.Level),
		})
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, c.Logging.Format) {
		errors = append(errors, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("must be one of %v, got '%s'", validFormats, c.Logging.Format),
		})
	}

	return errors
}

func (c *Config) validateCheckers() []ValidationError {
	var errors []ValidationError

	if c.SSH.MaxReadCharsPerSecond < 0 {
		errors = append(errors, ValidationError{
			Path:    "ssh.max_read_chars_per_second",
			Message: fmt.Sprintf("must be non-negative, got %d", c.SSH.MaxReadCharsPerSecond),
		})
	}

	if c.NFS.ClientsDir == "" {
		errors = append(errors, ValidationError{
			Path:    "nfs.clients_dir",
			Message: "must not be empty",
		})
	}

	return errors
}

func (c *Config) validateMetrics() []ValidationError {
	if c.Metrics.Listen == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
		return []ValidationError{{
			Path:    "metrics.listen",
			Message: fmt.Sprintf("must be host:port, got '%s'", c.Metrics.Listen),
		}}
	}
	return nil
}

// contains checks if a string is in a slice
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
