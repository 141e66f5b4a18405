package config

// parse reads configuration from environment variables
func parse() *Config {
	return &Config{
		// Core
		Environment: getEnv("ENVIRONMENT", "local"),
		ServiceName: getEnv("SERVICE_NAME", "blobstore"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		Storage: StorageConfig{
			Adapter:    getEnv("STORAGE_ADAPTER", "fs"),
			Timeout:    getDuration("STORAGE_TIMEOUT", "30s"),
			MaxRetries: getInt("STORAGE_MAX_RETRIES", 3),

			FS: FSConfig{
				Root:        getEnv("STORAGE_FS_ROOT", ""),
				Compression: getBool("STORAGE_FS_COMPRESSION", false),
				DirMode:     getFileMode("STORAGE_FS_DIR_MODE", 0o755),
				FileMode:    getFileMode("STORAGE_FS_FILE_MODE", 0o644),
				LockTimeout: getDuration("STORAGE_FS_LOCK_TIMEOUT", "5s"),
				LockTTL:     getDuration("STORAGE_FS_LOCK_TTL", "30s"),
				URLSecret:   getEnv("STORAGE_FS_URL_SECRET", ""),
			},

			HTTPAPI: HTTPAPIConfig{
				BaseURL: getEnv("STORAGE_API_BASE_URL", ""),
				APIKey:  getEnv("STORAGE_API_KEY", ""),
				Bucket:  getEnv("STORAGE_API_BUCKET", ""),
				Timeout: getDuration("STORAGE_API_TIMEOUT", "30s"),
			},

			S3: S3Config{
				Region:          getEnv("AWS_REGION", "us-east-1"),
				Bucket:          getEnv("S3_BUCKET", ""),
				AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
				Endpoint:        getEnv("S3_ENDPOINT", ""),
				UsePathStyle:    getBool("S3_USE_PATH_STYLE", false),
			},
		},
	}
}
