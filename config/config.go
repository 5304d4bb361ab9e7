// Package config loads the faculty hours pipeline configuration.
//
// Configuration is merged from, in increasing precedence: built-in
// defaults, a facultyhours.toml file found by walking up from the
// working directory, and FACULTYHOURS_* environment variables.
// Credentials are injected into collaborators at construction time;
// core pipeline code never reads the environment directly.
package config

// Config is the root configuration for the pipeline.
type Config struct {
	Database     DatabaseConfig     `mapstructure:"database"`
	S3           S3Config           `mapstructure:"s3"`
	CRM          CRMConfig          `mapstructure:"crm"`
	TimeTracking TimeTrackingConfig `mapstructure:"time_tracking"`
	Output       OutputConfig       `mapstructure:"output"`
	Dispatch     DispatchConfig     `mapstructure:"dispatch"`
}

// DatabaseConfig configures the operational calendar database.
type DatabaseConfig struct {
	CampusDSN string `mapstructure:"campus_dsn"` // postgres DSN for the campus calendar database
}

// S3Config configures the object storage sink.
type S3Config struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// CRMConfig configures the contact directory (CRM) client.
type CRMConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`

	// ReportLinkProperty is the CRM contact property that receives the
	// uploaded report URL after an S3 delivery.
	ReportLinkProperty string `mapstructure:"report_link_property"`
}

// TimeTrackingConfig configures the remote time-tracking sync client.
type TimeTrackingConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`

	// RequestsPerSecond caps outbound API calls during sync.
	// Values <= 0 default to 5.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// OutputConfig configures local report output.
type OutputConfig struct {
	Dir string `mapstructure:"dir"` // directory for CSV reports and side reports
}

// DispatchConfig configures the dispatch coordinator.
type DispatchConfig struct {
	// HandlerTimeoutSeconds bounds each handler's delivery time so one
	// unreachable sink cannot stall the run. Values <= 0 default to 120.
	HandlerTimeoutSeconds int `mapstructure:"handler_timeout_seconds"`
}
