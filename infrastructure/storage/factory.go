// Package infrastorage wires configuration to a concrete storage adapter.
// This is glue: callers get an ObjectStorage and never see adapter types.
package infrastorage

import (
	"fmt"

	"blobstore/config"
	"blobstore/domain/observability"
	"blobstore/domain/storage"
	"blobstore/infrastructure/storage/adapters/fs"
	"blobstore/infrastructure/storage/adapters/httpapi"
	"blobstore/infrastructure/storage/adapters/s3"
)

// Factory builds storage adapters from configuration.
type Factory struct {
	logger  observability.Logger
	metrics observability.Metrics
}

func NewFactory(logger observability.Logger, metrics observability.Metrics) *Factory {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	return &Factory{logger: logger, metrics: metrics}
}

// Create builds the adapter selected by cfg.Storage.Adapter.
func (f *Factory) Create(cfg *config.Config) (storage.ObjectStorage, error) {
	switch cfg.Storage.Adapter {
	case "fs":
		f.logger.Info("creating filesystem storage adapter",
			"root", cfg.Storage.FS.Root,
			"compression", cfg.Storage.FS.Compression)
		return fs.New(cfg.Storage.FS, f.logger, f.metrics)

	case "httpapi":
		f.logger.Info("creating HTTP API storage adapter",
			"base_url", cfg.Storage.HTTPAPI.BaseURL,
			"bucket", cfg.Storage.HTTPAPI.Bucket)
		return httpapi.New(cfg.Storage.HTTPAPI, f.logger, f.metrics)

	case "s3":
		f.logger.Info("creating S3 storage adapter",
			"bucket", cfg.Storage.S3.Bucket,
			"region", cfg.Storage.S3.Region)
		return s3.New(&cfg.Storage, f.logger, f.metrics)

	default:
		return nil, fmt.Errorf("unsupported storage adapter: %s", cfg.Storage.Adapter)
	}
}
