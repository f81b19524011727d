package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	pkgencoder "github.com/jittakal/ringstore/pkg/encoder"
	"github.com/jittakal/ringstore/pkg/record"
	pkgstorage "github.com/jittakal/ringstore/pkg/storage"
)

var _ pkgstorage.Writer = (*GCSWriter)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
	// WithoutAuthentication is for emulators.
	WithoutAuthentication bool
}

// Validate checks required fields.
func (c GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	if c.CredentialsFile != "" && c.CredentialsJSON != "" {
		return fmt.Errorf("gcs credentials_file and credentials_json are mutually exclusive")
	}
	return nil
}

// clientOptions turns the configuration into GCS client options.
func (c GCSConfig) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}

	switch {
	case c.WithoutAuthentication:
		opts = append(opts, option.WithoutAuthentication())
	case c.UseDefaultCredential:
	case c.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(c.CredentialsJSON)))
	case c.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	return opts
}

// GCSWriter streams staged batches into a bucket.
type GCSWriter struct {
	batchWriter
	client *storage.Client
	bucket string
}

// NewGCSWriter creates the client from the configured credentials.
func NewGCSWriter(
	cfg GCSConfig,
	format record.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*GCSWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := storage.NewClient(context.Background(), cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	w := &GCSWriter{client: client, bucket: cfg.Bucket}
	if err := w.setup("gcs", format, compression, logger, metrics,
		"bucket", cfg.Bucket, "project_id", cfg.ProjectID); err != nil {
		client.Close()
		return nil, err
	}
	return w, nil
}

// contentType returns the object content type for a format.
func contentType(format record.FileFormat) string {
	switch format {
	case record.FormatAvro:
		return "application/avro"
	case record.FormatCSV:
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// Write stages the batch and copies it into a new object.
func (w *GCSWriter) Write(ctx context.Context, records []record.Record, path string, format record.FileFormat) (int64, error) {
	return w.write(records, path, format, func(enc pkgencoder.Encoder, name string) (string, *record.FileStats, error) {
		objectPath := objectKey(path, "gs", name)
		stats, err := w.upload(enc, records, objectPath, func(body *os.File) error {
			obj := w.client.Bucket(w.bucket).Object(objectPath).NewWriter(ctx)
			obj.ContentType = contentType(format)
			if _, err := io.Copy(obj, body); err != nil {
				obj.Close()
				return err
			}
			return obj.Close()
		})
		if err != nil {
			return "", nil, err
		}
		return "gs://" + w.bucket + "/" + objectPath, stats, nil
	})
}

// Close rejects further writes and closes the client.
func (w *GCSWriter) Close() error {
	return w.close(w.client.Close)
}
