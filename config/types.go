package config

import (
	"fmt"
	"io/fs"
	"strings"
	"time"
)

// Config holds all configuration for the storage layer. Instances are built
// by Load; nothing here is process-global, so tests can construct isolated
// configs directly.
type Config struct {
	// Core settings
	Environment string
	ServiceName string
	LogLevel    string

	Storage StorageConfig
}

// StorageConfig selects and configures a storage adapter.
type StorageConfig struct {
	// Adapter is one of "fs", "httpapi", or "s3".
	Adapter string

	// Timeout bounds a single storage operation.
	Timeout time.Duration

	// MaxRetries applies to backends with a retrying transport.
	MaxRetries int

	FS      FSConfig
	HTTPAPI HTTPAPIConfig
	S3      S3Config
}

// FSConfig configures the local filesystem adapter.
type FSConfig struct {
	// Root is the directory objects live under.
	Root string

	// Compression enables transparent gzip of payloads at rest.
	Compression bool

	// DirMode is the permission mode for directories created on demand.
	DirMode fs.FileMode

	// FileMode is the permission mode for data and sidecar files.
	FileMode fs.FileMode

	// LockTimeout bounds how long a mutating operation waits for a
	// contended key before failing with TIMEOUT.
	LockTimeout time.Duration

	// LockTTL is how long an unreleased lock stays live before the sweeper
	// reclaims it.
	LockTTL time.Duration

	// URLSecret signs locally generated time-limited URLs. Random when empty.
	URLSecret string
}

// HTTPAPIConfig configures the remote HTTP object-API adapter.
type HTTPAPIConfig struct {
	// BaseURL of the object service, without a trailing slash.
	BaseURL string

	// APIKey is sent on every request.
	APIKey string

	// Bucket is the container every per-object operation targets.
	Bucket string

	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// S3Config configures the AWS S3 adapter.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Endpoint        string
	UsePathStyle    bool
}

// Validate checks the configuration for the selected adapter. Unselected
// adapter sections are not validated.
func (c *Config) Validate() error {
	var problems []string

	if c.ServiceName == "" {
		problems = append(problems, "SERVICE_NAME is required")
	}
	if c.Storage.Timeout <= 0 {
		problems = append(problems, "STORAGE_TIMEOUT must be positive")
	}

	switch c.Storage.Adapter {
	case "fs":
		if c.Storage.FS.Root == "" {
			problems = append(problems, "STORAGE_FS_ROOT is required for the fs adapter")
		}
		if c.Storage.FS.LockTimeout <= 0 {
			problems = append(problems, "STORAGE_FS_LOCK_TIMEOUT must be positive")
		}
		if c.Storage.FS.LockTTL <= 0 {
			problems = append(problems, "STORAGE_FS_LOCK_TTL must be positive")
		}
	case "httpapi":
		if c.Storage.HTTPAPI.BaseURL == "" {
			problems = append(problems, "STORAGE_API_BASE_URL is required for the httpapi adapter")
		}
		if c.Storage.HTTPAPI.APIKey == "" {
			problems = append(problems, "STORAGE_API_KEY is required for the httpapi adapter")
		}
		if c.Storage.HTTPAPI.Bucket == "" {
			problems = append(problems, "STORAGE_API_BUCKET is required for the httpapi adapter")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			problems = append(problems, "S3_BUCKET is required for the s3 adapter")
		}
		if c.Storage.S3.Region == "" {
			problems = append(problems, "AWS_REGION is required for the s3 adapter")
		}
	case "":
		problems = append(problems, "STORAGE_ADAPTER is required")
	default:
		problems = append(problems, fmt.Sprintf("unknown STORAGE_ADAPTER %q", c.Storage.Adapter))
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsProduction reports whether the environment is a production deployment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
