package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/campusops/facultyhours/errors"
)

// ConfigFileName is the project configuration file searched for by Load.
const ConfigFileName = "facultyhours.toml"

var globalConfig *Config

// Load reads the pipeline configuration.
//
// The result is cached; call Reset to clear it (tests).
func Load() (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	v := newViper()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	globalConfig = &cfg
	return globalConfig, nil
}

// LoadWithViper loads configuration from a provided Viper instance.
// Used by tests to isolate from user config files and the environment.
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", path)
	}
	return &cfg, nil
}

// Reset clears the cached configuration (useful for testing).
func Reset() {
	globalConfig = nil
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetEnvPrefix("FACULTYHOURS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	BindSensitiveEnvVars(v)
	SetDefaults(v)

	if path := findProjectConfig(); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		// Missing or unreadable project config is not fatal; defaults
		// and environment variables still apply.
		_ = v.ReadInConfig()
	}

	return v
}

// findProjectConfig searches for facultyhours.toml by walking up the
// directory tree from the working directory. Returns the first match,
// or empty string if none is found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
