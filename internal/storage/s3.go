package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	pkgencoder "github.com/jittakal/ringstore/pkg/encoder"
	"github.com/jittakal/ringstore/pkg/record"
	"github.com/jittakal/ringstore/pkg/storage"
)

var _ storage.Writer = (*S3Writer)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// Validate checks required fields.
func (c S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// S3Writer uploads batches through the multipart upload manager.
type S3Writer struct {
	batchWriter
	uploader    *manager.Uploader
	bucket      string
	sseEnabled  bool
	sseKMSKeyID string
}

// NewS3Writer loads the default AWS credential chain for the region.
func NewS3Writer(
	cfg S3Config,
	format record.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*S3Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	awsConfig, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	w := &S3Writer{
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = 10 * 1024 * 1024
			u.Concurrency = 5
		}),
		bucket:      cfg.Bucket,
		sseEnabled:  cfg.SSEEnabled,
		sseKMSKeyID: cfg.SSEKMSKeyID,
	}
	if err := w.setup("s3", format, compression, logger, metrics,
		"bucket", cfg.Bucket, "region", cfg.Region, "sse_enabled", cfg.SSEEnabled); err != nil {
		return nil, err
	}
	return w, nil
}

// putInput builds the upload request, with server-side encryption when
// enabled. A KMS key selects aws:kms, otherwise AES256.
func (w *S3Writer) putInput(key string, body io.Reader) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if !w.sseEnabled {
		return input
	}
	if w.sseKMSKeyID != "" {
		input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
		input.SSEKMSKeyId = aws.String(w.sseKMSKeyID)
	} else {
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	}
	return input
}

// Write stages the batch and uploads it below the routed key prefix.
func (w *S3Writer) Write(ctx context.Context, records []record.Record, path string, format record.FileFormat) (int64, error) {
	return w.write(records, path, format, func(enc pkgencoder.Encoder, name string) (string, *record.FileStats, error) {
		key := objectKey(path, "s3", name)
		stats, err := w.upload(enc, records, key, func(body *os.File) error {
			_, err := w.uploader.Upload(ctx, w.putInput(key, body))
			return err
		})
		if err != nil {
			return "", nil, err
		}
		return "s3://" + w.bucket + "/" + key, stats, nil
	})
}

// Close rejects further writes.
func (w *S3Writer) Close() error {
	return w.close(nil)
}
