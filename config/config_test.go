package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_FS_ROOT", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Environment)
	assert.Equal(t, "blobstore", cfg.ServiceName)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "fs", cfg.Storage.Adapter)
	assert.Equal(t, 30*time.Second, cfg.Storage.Timeout)
	assert.Equal(t, 3, cfg.Storage.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Storage.FS.LockTimeout)
	assert.Equal(t, 30*time.Second, cfg.Storage.FS.LockTTL)
	assert.False(t, cfg.Storage.FS.Compression)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SERVICE_NAME", "asset-store")
	t.Setenv("STORAGE_ADAPTER", "fs")
	t.Setenv("STORAGE_FS_ROOT", "/var/data/blobs")
	t.Setenv("STORAGE_FS_COMPRESSION", "true")
	t.Setenv("STORAGE_FS_FILE_MODE", "0600")
	t.Setenv("STORAGE_FS_LOCK_TIMEOUT", "2s")
	t.Setenv("STORAGE_TIMEOUT", "10s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "asset-store", cfg.ServiceName)
	assert.Equal(t, "/var/data/blobs", cfg.Storage.FS.Root)
	assert.True(t, cfg.Storage.FS.Compression)
	assert.Equal(t, uint32(0o600), uint32(cfg.Storage.FS.FileMode))
	assert.Equal(t, 2*time.Second, cfg.Storage.FS.LockTimeout)
	assert.Equal(t, 10*time.Second, cfg.Storage.Timeout)
	assert.True(t, cfg.IsProduction())
}

func TestLoadHTTPAPIAdapter(t *testing.T) {
	t.Setenv("STORAGE_ADAPTER", "httpapi")
	t.Setenv("STORAGE_API_BASE_URL", "https://objects.example.com/storage/v1")
	t.Setenv("STORAGE_API_KEY", "svc-key")
	t.Setenv("STORAGE_API_BUCKET", "assets")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "httpapi", cfg.Storage.Adapter)
	assert.Equal(t, "svc-key", cfg.Storage.HTTPAPI.APIKey)
	assert.Equal(t, cfg.Storage.Timeout, cfg.Storage.HTTPAPI.Timeout, "request timeout inherits the storage timeout")
}

func TestLoadRejectsMissingAdapterSection(t *testing.T) {
	t.Setenv("STORAGE_ADAPTER", "httpapi")
	t.Setenv("STORAGE_API_BASE_URL", "")
	t.Setenv("STORAGE_API_KEY", "")
	t.Setenv("STORAGE_API_BUCKET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORAGE_API_BASE_URL")
	assert.Contains(t, err.Error(), "STORAGE_API_KEY")
	assert.Contains(t, err.Error(), "STORAGE_API_BUCKET")
}

func TestLoadRejectsUnknownAdapter(t *testing.T) {
	t.Setenv("STORAGE_ADAPTER", "carrier-pigeon")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestValidateSkipsUnselectedSections(t *testing.T) {
	cfg := &Config{
		ServiceName: "svc",
		Storage:     DefaultStorageConfig(t.TempDir()),
	}
	// httpapi and s3 sections are empty but unselected
	require.NoError(t, cfg.Validate())
}

func TestValidateS3(t *testing.T) {
	cfg := &Config{
		ServiceName: "svc",
		Storage: StorageConfig{
			Adapter: "s3",
			Timeout: time.Second,
			S3:      S3Config{Region: "eu-west-1", Bucket: "my-bucket"},
		},
	}
	require.NoError(t, cfg.Validate())

	cfg.Storage.S3.Bucket = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "S3_BUCKET")
}

func TestHelperParsing(t *testing.T) {
	t.Setenv("X_STR", "value")
	t.Setenv("X_INT", "42")
	t.Setenv("X_BOOL", "true")
	t.Setenv("X_DUR", "150ms")
	t.Setenv("X_MODE", "0640")

	assert.Equal(t, "value", getEnv("X_STR", "fallback"))
	assert.Equal(t, "fallback", getEnv("X_UNSET", "fallback"))
	assert.Equal(t, 42, getInt("X_INT", 7))
	assert.Equal(t, 7, getInt("X_UNSET", 7))
	assert.True(t, getBool("X_BOOL", false))
	assert.Equal(t, 150*time.Millisecond, getDuration("X_DUR", "1s"))
	assert.Equal(t, time.Second, getDuration("X_UNSET", "1s"))
	assert.Equal(t, uint32(0o640), uint32(getFileMode("X_MODE", 0o644)))
	assert.Equal(t, uint32(0o644), uint32(getFileMode("X_UNSET", 0o644)))
}

func TestHelperParsingBadValues(t *testing.T) {
	t.Setenv("X_INT", "not-a-number")
	t.Setenv("X_DUR", "not-a-duration")
	t.Setenv("X_MODE", "not-octal")

	assert.Equal(t, 7, getInt("X_INT", 7))
	assert.Equal(t, time.Second, getDuration("X_DUR", "1s"))
	assert.Equal(t, uint32(0o644), uint32(getFileMode("X_MODE", 0o644)))
}
