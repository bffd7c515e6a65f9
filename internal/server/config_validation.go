// config_validation.go - Startup configuration validation.
//
// Every setting is checked before the server starts so a bad deployment
// fails fast with the complete list of problems.
package server

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ConfigValidationError represents a configuration validation error.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ConfigValidator collects validation errors.
type ConfigValidator struct {
	errors []ConfigValidationError
}

func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{
		errors: make([]ConfigValidationError, 0),
	}
}

func (v *ConfigValidator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{
		Field:   field,
		Message: message,
	})
}

func (v *ConfigValidator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *ConfigValidator) Errors() []ConfigValidationError {
	return v.errors
}

// ErrorString returns a formatted string of all errors.
func (v *ConfigValidator) ErrorString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Configuration validation failed with %d error(s):\n", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Err returns nil when no errors were collected.
func (v *ConfigValidator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return fmt.Errorf("%s", v.ErrorString())
}

func (v *ConfigValidator) ValidateRequired(key, value string) {
	if value == "" {
		v.AddError(key, "required setting not set")
	}
}

// ValidateURL validates that a value is an http(s) URL.
func (v *ConfigValidator) ValidateURL(key, value string) {
	if value == "" {
		return
	}

	parsed, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		v.AddError(key, "URL must use http or https scheme")
	}
}

// ValidateListenAddr validates "host:port" or ":port".
func (v *ConfigValidator) ValidateListenAddr(key, value string) {
	if value == "" {
		return
	}

	_, portStr, err := net.SplitHostPort(value)
	if err != nil {
		v.AddError(key, "must be host:port or :port")
		return
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}

	if port < 1 || port > 65535 {
		v.AddError(key, "port must be between 1 and 65535")
	}
}

// ValidateEnum validates that a value is one of allowed options.
func (v *ConfigValidator) ValidateEnum(key, value string, allowed []string) {
	if value == "" {
		return
	}

	for _, opt := range allowed {
		if value == opt {
			return
		}
	}

	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// ParseInt64 parses value, recording an error when it is not an integer
// or is below minValue. Empty values return def.
func (v *ConfigValidator) ParseInt64(key, value string, def, minValue int64) int64 {
	if value == "" {
		return def
	}

	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return def
	}

	if num < minValue {
		v.AddError(key, fmt.Sprintf("must be at least %d", minValue))
		return def
	}
	return num
}

// ParseDuration parses a positive Go duration such as "720h".
func (v *ConfigValidator) ParseDuration(key, value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		v.AddError(key, "must be a valid duration (e.g., 24h, 90m)")
		return def
	}
	if d <= 0 {
		v.AddError(key, "must be a positive duration")
		return def
	}
	return d
}
