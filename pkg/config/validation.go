package config

import (
	"fmt"
	"net/url"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// This function uses go-playground/validator for declarative validation
// via struct tags, with additional custom validation for complex rules
// that cannot be expressed in tags.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
//
// Returns an error describing validation failures.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	// At least one cluster must be addressable
	if len(cfg.Clusters) == 0 {
		return fmt.Errorf("clusters: at least one cluster must be configured")
	}

	// Cluster names are authorities and must be unique
	names := make(map[string]bool)
	for i, cluster := range cfg.Clusters {
		if names[cluster.Name] {
			return fmt.Errorf("clusters[%d]: duplicate cluster name %q", i, cluster.Name)
		}
		names[cluster.Name] = true

		switch cluster.Storage {
		case "webhdfs":
			if cluster.APIURI == "" {
				return fmt.Errorf("clusters[%d] (%s): api_uri is required for webhdfs storage", i, cluster.Name)
			}
			if _, err := url.Parse(cluster.APIURI); err != nil {
				return fmt.Errorf("clusters[%d] (%s): invalid api_uri: %w", i, cluster.Name, err)
			}
		case "s3":
			if cluster.S3.Bucket == "" {
				return fmt.Errorf("clusters[%d] (%s): s3.bucket is required for s3 storage", i, cluster.Name)
			}
			if (cluster.S3.AccessKeyID == "") != (cluster.S3.SecretAccessKey == "") {
				return fmt.Errorf("clusters[%d] (%s): s3 static credentials require both access_key_id and secret_access_key", i, cluster.Name)
			}
		}
	}

	if cfg.Cache.Type == "badger" && cfg.Cache.Badger.Path == "" {
		return fmt.Errorf("cache: badger.path is required for the badger cache")
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		// Return the first validation error with context
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
