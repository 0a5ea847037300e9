package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeConfigFile writes a YAML config into a temp dir and returns its path.
func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfigFile(t, `
logging:
  level: debug
  format: json
  output: stderr
cache:
  type: badger
  badger:
    path: /var/cache/paifs
transport:
  timeout: 30s
metrics:
  enabled: true
clusters:
  - name: prod
    storage: webhdfs
    api_uri: http://namenode:50070
    username: alice
    token: secret
  - name: archive
    storage: s3
    s3:
      bucket: team-archive
      region: eu-west-1
      key_prefix: pai/
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Logging.Level = %q, want DEBUG (normalized)", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Output != "stderr" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Cache.Type != "badger" || cfg.Cache.Badger.Path != "/var/cache/paifs" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Transport.Timeout != 30*time.Second {
		t.Errorf("Transport.Timeout = %v, want 30s", cfg.Transport.Timeout)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if len(cfg.Clusters) != 2 {
		t.Fatalf("len(Clusters) = %d, want 2", len(cfg.Clusters))
	}

	prod := cfg.Cluster("prod")
	if prod == nil || prod.APIURI != "http://namenode:50070" || prod.Username != "alice" || prod.Token != "secret" {
		t.Errorf("Cluster(prod) = %+v", prod)
	}
	archive := cfg.Cluster("archive")
	if archive == nil || archive.Storage != "s3" || archive.S3.Bucket != "team-archive" {
		t.Errorf("Cluster(archive) = %+v", archive)
	}
	if cfg.Cluster("nope") != nil {
		t.Error("Cluster(nope) should be nil")
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	path := writeConfigFile(t, `
clusters:
  - name: pai
    api_uri: http://namenode:50070
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "INFO" || cfg.Logging.Format != "text" || cfg.Logging.Output != "stdout" {
		t.Errorf("logging defaults not applied: %+v", cfg.Logging)
	}
	if cfg.Cache.Type != "memory" {
		t.Errorf("Cache.Type = %q, want memory", cfg.Cache.Type)
	}
	if cfg.Transport.Timeout != 60*time.Second {
		t.Errorf("Transport.Timeout = %v, want 60s", cfg.Transport.Timeout)
	}
	if cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = true by default, want false")
	}
	if cfg.Clusters[0].Storage != "webhdfs" {
		t.Errorf("Clusters[0].Storage = %q, want webhdfs", cfg.Clusters[0].Storage)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Setenv("PAIFS_LOGGING_LEVEL", "ERROR")

	path := writeConfigFile(t, `
logging:
  level: info
clusters:
  - name: pai
    api_uri: http://namenode:50070
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Logging.Level = %q, want ERROR from environment", cfg.Logging.Level)
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfigFile(t, "clusters: [unclosed")

	if _, err := Load(path); err == nil {
		t.Fatal("Load() succeeded on malformed YAML")
	}
}

func TestValidate_Rules(t *testing.T) {
	webhdfsCluster := ClusterConfig{Name: "pai", Storage: "webhdfs", APIURI: "http://namenode:50070"}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid",
			mutate:  func(cfg *Config) {},
			wantErr: "",
		},
		{
			name: "no clusters",
			mutate: func(cfg *Config) {
				cfg.Clusters = nil
			},
			wantErr: "at least one cluster",
		},
		{
			name: "duplicate names",
			mutate: func(cfg *Config) {
				cfg.Clusters = append(cfg.Clusters, webhdfsCluster)
			},
			wantErr: "duplicate cluster name",
		},
		{
			name: "cluster name with slash",
			mutate: func(cfg *Config) {
				cfg.Clusters[0].Name = "pai/prod"
			},
			wantErr: "excludes",
		},
		{
			name: "webhdfs without api_uri",
			mutate: func(cfg *Config) {
				cfg.Clusters[0].APIURI = ""
			},
			wantErr: "api_uri is required",
		},
		{
			name: "s3 without bucket",
			mutate: func(cfg *Config) {
				cfg.Clusters[0] = ClusterConfig{Name: "pai", Storage: "s3"}
			},
			wantErr: "s3.bucket is required",
		},
		{
			name: "s3 half credentials",
			mutate: func(cfg *Config) {
				cfg.Clusters[0] = ClusterConfig{
					Name:    "pai",
					Storage: "s3",
					S3:      S3Config{Bucket: "b", AccessKeyID: "AK"},
				}
			},
			wantErr: "static credentials",
		},
		{
			name: "badger cache without path",
			mutate: func(cfg *Config) {
				cfg.Cache.Type = "badger"
				cfg.Cache.Badger.Path = ""
			},
			wantErr: "badger.path",
		},
		{
			name: "bad log level",
			mutate: func(cfg *Config) {
				cfg.Logging.Level = "LOUD"
			},
			wantErr: "oneof",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Clusters: []ClusterConfig{webhdfsCluster}}
			ApplyDefaults(cfg)
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}
}
