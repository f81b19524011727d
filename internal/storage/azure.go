package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	pkgencoder "github.com/jittakal/ringstore/pkg/encoder"
	"github.com/jittakal/ringstore/pkg/record"
	"github.com/jittakal/ringstore/pkg/storage"
)

var _ storage.Writer = (*AzureWriter)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Endpoint      string
}

// Validate checks required fields.
func (c AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account_name is required")
	}
	if c.AccountKey == "" {
		return fmt.Errorf("azure account_key is required")
	}
	if c.ContainerName == "" {
		return fmt.Errorf("azure container_name is required")
	}
	return nil
}

// ConnectionString builds the account connection string.
func (c AzureConfig) ConnectionString() string {
	if c.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			c.AccountName, c.AccountKey, c.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		c.AccountName, c.AccountKey)
}

// AzureWriter uploads staged batches as block blobs.
type AzureWriter struct {
	batchWriter
	client        *azblob.Client
	containerName string
}

// NewAzureWriter connects with the account key.
func NewAzureWriter(
	cfg AzureConfig,
	format record.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*AzureWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	w := &AzureWriter{client: client, containerName: cfg.ContainerName}
	if err := w.setup("azure", format, compression, logger, metrics,
		"container", cfg.ContainerName, "account", cfg.AccountName); err != nil {
		return nil, err
	}
	return w, nil
}

// Write stages the batch and uploads it into the container.
func (w *AzureWriter) Write(ctx context.Context, records []record.Record, path string, format record.FileFormat) (int64, error) {
	return w.write(records, path, format, func(enc pkgencoder.Encoder, name string) (string, *record.FileStats, error) {
		blobPath := objectKey(path, "wasbs", name)
		stats, err := w.upload(enc, records, blobPath, func(body *os.File) error {
			_, err := w.client.UploadFile(ctx, w.containerName, blobPath, body, nil)
			return err
		})
		if err != nil {
			return "", nil, err
		}
		return "wasbs://" + w.containerName + "/" + blobPath, stats, nil
	})
}

// Close rejects further writes.
func (w *AzureWriter) Close() error {
	return w.close(nil)
}
