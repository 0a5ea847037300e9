package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete PAIFS client configuration.
//
// This structure captures all configurable aspects of the adapter including:
//   - Logging configuration
//   - Listing cache selection and configuration
//   - HTTP transport settings
//   - Cluster definitions (one per pai:// authority)
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (PAIFS_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Cache specifies the listing cache backend and backend-specific settings
	Cache CacheConfig `mapstructure:"cache"`

	// Transport contains HTTP client settings shared by all clusters
	Transport TransportConfig `mapstructure:"transport"`

	// Metrics controls Prometheus metrics collection
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Clusters defines the clusters addressable as pai://<name>/<path>
	Clusters []ClusterConfig `mapstructure:"clusters" validate:"dive"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// CacheConfig specifies the directory-listing cache backend.
//
// The Type field determines which implementation is used. Only the
// corresponding backend-specific section is consulted.
type CacheConfig struct {
	// Type specifies which cache implementation to use
	// Valid values: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger BadgerCacheConfig `mapstructure:"badger"`
}

// BadgerCacheConfig configures the persistent BadgerDB listing cache.
type BadgerCacheConfig struct {
	// Path is the directory holding the cache database
	Path string `mapstructure:"path"`
}

// TransportConfig contains HTTP client settings.
type TransportConfig struct {
	// Timeout bounds each HTTP request, including two-phase transfers
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`

	// RequestsPerSecond throttles requests toward each name node
	// 0 disables throttling
	RequestsPerSecond uint `mapstructure:"requests_per_second"`

	// Burst is the throttle's burst capacity
	Burst uint `mapstructure:"burst"`
}

// MetricsConfig controls metrics collection.
type MetricsConfig struct {
	// Enabled turns the Prometheus registry on. When false, components
	// run with zero-overhead no-op metrics.
	Enabled bool `mapstructure:"enabled"`
}

// ClusterConfig defines a single cluster.
type ClusterConfig struct {
	// Name is the authority component of pai:// locators for this cluster
	Name string `mapstructure:"name" validate:"required,excludes=/"`

	// Storage selects the storage flavor behind this cluster
	// Valid values: webhdfs, s3
	Storage string `mapstructure:"storage" validate:"required,oneof=webhdfs s3"`

	// APIURI is the WebHDFS base URI, e.g. "http://namenode:50070"
	// Required when Storage = "webhdfs"
	APIURI string `mapstructure:"api_uri"`

	// Username is sent as the user.name query parameter when set
	Username string `mapstructure:"username"`

	// Token is the bearer token attached to every request when set
	Token string `mapstructure:"token"`

	// S3 contains object-storage settings
	// Only used when Storage = "s3"
	S3 S3Config `mapstructure:"s3"`
}

// S3Config configures an S3-backed cluster.
type S3Config struct {
	// Region is the bucket's region
	Region string `mapstructure:"region"`

	// Bucket is the bucket name; required for s3 clusters
	Bucket string `mapstructure:"bucket"`

	// KeyPrefix is an optional prefix under which all paths live
	KeyPrefix string `mapstructure:"key_prefix"`

	// Endpoint overrides the AWS endpoint, for MinIO and friends
	Endpoint string `mapstructure:"endpoint"`

	// AccessKeyID and SecretAccessKey are static credentials. When empty
	// the ambient AWS credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (PAIFS_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the PAIFS_ prefix and underscores
	// Example: PAIFS_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("PAIFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/paifs/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Missing config file is acceptable, defaults apply
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "paifs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "paifs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// Cluster returns the cluster section named by authority, or nil.
func (c *Config) Cluster(authority string) *ClusterConfig {
	for i := range c.Clusters {
		if c.Clusters[i].Name == authority {
			return &c.Clusters[i]
		}
	}
	return nil
}
