package storage

import (
	"fmt"
	"log/slog"

	"github.com/jittakal/ringstore/pkg/record"
	"github.com/jittakal/ringstore/pkg/storage"
)

// BackendConfig selects and configures one storage backend.
type BackendConfig struct {
	Backend  string
	BasePath string
	File     FileConfig
	S3       S3Config
	GCS      GCSConfig
	Azure    AzureConfig
}

// Protocol returns the URI scheme used in routed paths for the backend.
func (c BackendConfig) Protocol() string {
	switch c.Backend {
	case "s3":
		return "s3"
	case "azure":
		return "wasbs"
	case "gcs":
		return "gs"
	default:
		return "file"
	}
}

// Bucket returns the bucket or container name used in routed paths.
// The file backend keeps its base path in the writer instead.
func (c BackendConfig) Bucket() string {
	switch c.Backend {
	case "s3":
		return c.S3.Bucket
	case "azure":
		return c.Azure.ContainerName
	case "gcs":
		return c.GCS.Bucket
	default:
		return ""
	}
}

// NewRouterFor builds the router matching the backend.
func NewRouterFor(cfg BackendConfig) *DefaultRouter {
	basePath := cfg.BasePath
	if cfg.Backend == "file" {
		basePath = ""
	}
	return NewRouter(cfg.Protocol(), cfg.Bucket(), basePath)
}

// NewWriter creates the writer for the configured backend.
func NewWriter(
	cfg BackendConfig,
	format record.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (storage.Writer, error) {
	switch cfg.Backend {
	case "file":
		w, err := NewFileWriter(cfg.File, format, compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem writer: %w", err)
		}
		return w, nil
	case "s3":
		w, err := NewS3Writer(cfg.S3, format, compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 writer: %w", err)
		}
		return w, nil
	case "gcs":
		w, err := NewGCSWriter(cfg.GCS, format, compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS writer: %w", err)
		}
		return w, nil
	case "azure":
		w, err := NewAzureWriter(cfg.Azure, format, compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Blob writer: %w", err)
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (supported: file, s3, azure, gcs)", cfg.Backend)
	}
}
