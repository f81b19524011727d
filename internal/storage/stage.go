package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jittakal/ringstore/internal/encoder"
	apperrors "github.com/jittakal/ringstore/internal/errors"
	pkgencoder "github.com/jittakal/ringstore/pkg/encoder"
	"github.com/jittakal/ringstore/pkg/record"
)

// MetricsCollector defines metrics operations for storage.
type MetricsCollector interface {
	IncFilesWritten(topic string, partition int32, format string, status string)
	ObserveFileSize(topic string, partition int32, format string, size float64)
	ObserveStorageWriteDuration(topic string, partition int32, duration float64)
	IncStorageErrors(backend string, operation string)
}

// batchWriter is embedded by every backend. It owns the encoder for the
// configured format and serialises writes.
type batchWriter struct {
	backend string
	factory *encoder.Factory
	logger  *slog.Logger
	metrics MetricsCollector

	mu     sync.Mutex
	closed bool
}

func (b *batchWriter) setup(
	backend string,
	format record.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
	attrs ...any,
) error {
	factory := encoder.NewFactory(format, compression)
	if _, err := factory.CreateEncoder(); err != nil {
		return fmt.Errorf("failed to create encoder: %w", err)
	}
	b.backend = backend
	b.factory = factory
	b.logger = logger
	b.metrics = metrics

	logger.Info("storage writer created",
		append([]any{"backend", backend, "format", format, "compression", compression}, attrs...)...)
	return nil
}

// putFunc stores one encoded batch under the object name and reports where
// it went.
type putFunc func(enc pkgencoder.Encoder, name string) (string, *record.FileStats, error)

// write runs put for a non-empty batch and records the outcome.
func (b *batchWriter) write(records []record.Record, path string, format record.FileFormat, put putFunc) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, apperrors.ErrWriterClosed
	}
	if len(records) == 0 {
		return 0, fmt.Errorf("no records to write")
	}

	start := time.Now()
	enc, err := b.factory.CreateEncoder()
	if err != nil {
		return 0, b.fail("encoder_create", path, err)
	}

	location, stats, err := put(enc, objectName(records, start, enc.FileExtension()))
	if err != nil {
		return 0, err
	}

	duration := time.Since(start)
	first := records[0]
	b.logger.Info("wrote records",
		"backend", b.backend,
		"location", location,
		"stream", first.Stream.String(),
		"first_sequence", first.Sequence,
		"record_count", stats.RecordCount,
		"file_size", stats.SizeBytes,
		"format", format,
		"total_duration_ms", duration.Milliseconds(),
	)

	observeWrite(b.metrics, records, format, stats.SizeBytes, duration)
	return stats.SizeBytes, nil
}

// upload encodes records into a temporary file and hands it to send. The
// temporary file is removed afterwards.
func (b *batchWriter) upload(enc pkgencoder.Encoder, records []record.Record, key string, send func(*os.File) error) (*record.FileStats, error) {
	batch, err := stage(b.backend, enc, records, b.metrics)
	if err != nil {
		return nil, err
	}
	defer batch.remove()

	file, err := os.Open(batch.path)
	if err != nil {
		return nil, b.fail("file_open", batch.path, err)
	}
	defer file.Close()

	if err := send(file); err != nil {
		return nil, b.fail("upload", key, err)
	}
	return batch.stats, nil
}

// close marks the writer closed and calls release once.
func (b *batchWriter) close(release func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.logger.Info("storage writer closed", "backend", b.backend)
	if release != nil {
		return release()
	}
	return nil
}

func (b *batchWriter) fail(operation, path string, err error) error {
	return fail(b.metrics, b.backend, operation, path, err)
}

// objectName builds a file name from the sequence range of the batch, so
// successive batches of one stream sort in pull order.
// Format: objects_<first>-<last>_<YYYYMMDD_HHMMSS><ext>
func objectName(records []record.Record, now time.Time, ext string) string {
	first, last := records[0].Sequence, records[len(records)-1].Sequence
	return fmt.Sprintf("objects_%012d-%012d_%s%s", first, last, now.UTC().Format("20060102_150405"), ext)
}

// objectKey strips scheme://bucket/ from a routed path and appends name.
func objectKey(path, scheme, name string) string {
	key := path
	if rest, ok := strings.CutPrefix(path, scheme+"://"); ok {
		if _, after, found := strings.Cut(rest, "/"); found {
			key = after
		} else {
			key = ""
		}
	}
	return strings.TrimPrefix(key+name, "/")
}

// staged is an encoded batch waiting in a temporary file for upload.
type staged struct {
	path  string
	stats *record.FileStats
}

func (s staged) remove() {
	os.Remove(s.path)
}

// stage encodes records into a temporary file.
func stage(backend string, enc pkgencoder.Encoder, records []record.Record, metrics MetricsCollector) (staged, error) {
	tempFile := filepath.Join(os.TempDir(), fmt.Sprintf("%s-upload-%d%s", backend, time.Now().UnixNano(), enc.FileExtension()))

	stats, err := enc.Encode(tempFile, records)
	if err != nil {
		os.Remove(tempFile)
		if metrics != nil {
			metrics.IncStorageErrors(backend, "encode")
		}
		return staged{}, &apperrors.StorageError{Operation: "encode", Path: tempFile, Err: err}
	}
	return staged{path: tempFile, stats: stats}, nil
}

// observeWrite records a successful write.
func observeWrite(metrics MetricsCollector, records []record.Record, format record.FileFormat, size int64, duration time.Duration) {
	if metrics == nil || len(records) == 0 {
		return
	}
	stream := records[0].Stream
	metrics.IncFilesWritten(stream.Topic, stream.Partition, string(format), "success")
	metrics.ObserveFileSize(stream.Topic, stream.Partition, string(format), float64(size))
	metrics.ObserveStorageWriteDuration(stream.Topic, stream.Partition, duration.Seconds())
}

// fail records a storage error and wraps it.
func fail(metrics MetricsCollector, backend, operation, path string, err error) error {
	if metrics != nil {
		metrics.IncStorageErrors(backend, operation)
	}
	return &apperrors.StorageError{Operation: operation, Path: path, Err: err}
}
