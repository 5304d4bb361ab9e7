package config

import (
	"github.com/campusops/facultyhours/errors"
)

// Validate checks invariants that hold regardless of which handlers are
// requested. Handler-specific requirements are checked by
// ValidateForHandlers once the handler set is known.
func (c *Config) Validate() error {
	if c.Dispatch.HandlerTimeoutSeconds < 0 {
		return errors.New("dispatch.handler_timeout_seconds must not be negative")
	}
	if c.TimeTracking.RequestsPerSecond < 0 {
		return errors.New("time_tracking.requests_per_second must not be negative")
	}
	return nil
}

// ValidateForHandlers checks that the configuration carries everything
// the requested handlers need, before the pipeline runs. This keeps
// misconfiguration a fail-fast error rather than a mid-dispatch failure.
func (c *Config) ValidateForHandlers(names []string) error {
	for _, name := range names {
		switch name {
		case "csv":
			// Output dir defaults; nothing required.
		case "s3":
			if c.S3.Bucket == "" {
				return errors.WithHint(
					errors.New("s3 handler requested but s3.bucket is not configured"),
					"set FACULTYHOURS_S3_BUCKET or s3.bucket in facultyhours.toml")
			}
		case "timesync":
			if c.TimeTracking.APIKey == "" {
				return errors.WithHint(
					errors.New("timesync handler requested but time_tracking.api_key is not configured"),
					"set FACULTYHOURS_TIMETRACK_API_KEY")
			}
			if c.TimeTracking.BaseURL == "" {
				return errors.New("timesync handler requested but time_tracking.base_url is not configured")
			}
		}
	}
	return nil
}
