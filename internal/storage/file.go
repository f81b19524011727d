// Package storage writes batches of pulled records to local disk or object
// storage, laid out by the router.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	pkgencoder "github.com/jittakal/ringstore/pkg/encoder"
	"github.com/jittakal/ringstore/pkg/record"
	"github.com/jittakal/ringstore/pkg/storage"
)

var _ storage.Writer = (*FileWriter)(nil)

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileWriter writes each batch to its own file below BasePath, in the
// directory named by the routed file:// path.
type FileWriter struct {
	batchWriter
	basePath string
}

// NewFileWriter creates the base directory and a writer for it.
func NewFileWriter(
	config FileConfig,
	format record.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*FileWriter, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	w := &FileWriter{basePath: config.BasePath}
	if err := w.setup("file", format, compression, logger, metrics, "base_path", config.BasePath); err != nil {
		return nil, err
	}
	return w, nil
}

// Write encodes records straight into the target directory.
func (w *FileWriter) Write(ctx context.Context, records []record.Record, path string, format record.FileFormat) (int64, error) {
	return w.write(records, path, format, func(enc pkgencoder.Encoder, name string) (string, *record.FileStats, error) {
		dir := filepath.Join(w.basePath, strings.TrimPrefix(path, "file://"))
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", nil, w.fail("create", dir, err)
		}

		fullPath := filepath.Join(dir, name)
		stats, err := enc.Encode(fullPath, records)
		if err != nil {
			return "", nil, w.fail("write", fullPath, err)
		}
		return fullPath, stats, nil
	})
}

// Close rejects further writes.
func (w *FileWriter) Close() error {
	return w.close(nil)
}
