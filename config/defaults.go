package config

import (
	"github.com/spf13/viper"
)

// Default values applied when neither the config file nor the
// environment provides a setting.
const (
	DefaultOutputDir             = "output"
	DefaultHandlerTimeoutSeconds = 120
	DefaultRequestsPerSecond     = 5.0
	DefaultS3Region              = "us-east-1"
)

// SetDefaults registers default configuration values on a Viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("output.dir", DefaultOutputDir)
	v.SetDefault("dispatch.handler_timeout_seconds", DefaultHandlerTimeoutSeconds)
	v.SetDefault("time_tracking.requests_per_second", DefaultRequestsPerSecond)
	v.SetDefault("s3.region", DefaultS3Region)
}

// BindSensitiveEnvVars binds credentials to environment variables so they
// never need to appear in a config file.
func BindSensitiveEnvVars(v *viper.Viper) {
	_ = v.BindEnv("database.campus_dsn", "FACULTYHOURS_CAMPUS_DB_CONN")
	_ = v.BindEnv("s3.access_key_id", "AWS_ACCESS_KEY_ID")
	_ = v.BindEnv("s3.secret_access_key", "AWS_SECRET_ACCESS_KEY")
	_ = v.BindEnv("s3.bucket", "FACULTYHOURS_S3_BUCKET")
	_ = v.BindEnv("crm.token", "FACULTYHOURS_CRM_TOKEN")
	_ = v.BindEnv("time_tracking.api_key", "FACULTYHOURS_TIMETRACK_API_KEY")
}
