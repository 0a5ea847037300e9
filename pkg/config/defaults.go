package config

import (
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyCacheDefaults(&cfg.Cache)
	applyTransportDefaults(&cfg.Transport)
	applyClusterDefaults(cfg.Clusters)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyCacheDefaults sets listing cache defaults.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Badger.Path == "" {
		cfg.Badger.Path = "/tmp/paifs-cache"
	}
}

// applyTransportDefaults sets HTTP transport defaults.
func applyTransportDefaults(cfg *TransportConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
}

// applyClusterDefaults sets per-cluster defaults.
func applyClusterDefaults(clusters []ClusterConfig) {
	for i := range clusters {
		cluster := &clusters[i]

		if cluster.Storage == "" {
			cluster.Storage = "webhdfs"
		}
		if cluster.Storage == "s3" && cluster.S3.Region == "" {
			cluster.S3.Region = "us-east-1"
		}
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Clusters: []ClusterConfig{
			{
				Name:   "pai",
				APIURI: "http://namenode:50070",
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
